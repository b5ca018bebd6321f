// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
)

// MasterSeedSize is the length of the master seed header field.
const MasterSeedSize = 32

// HeaderHMACIndex is the block index used when keying the header HMAC.
const HeaderHMACIndex uint64 = math.MaxUint64

// keyChainService is the private implementation of [KeyChainService].
type keyChainService struct {
	// rand is the source of every seed, IV and key. crypto/rand in
	// production, a deterministic reader in tests.
	rand io.Reader
}

// NewKeyChainService constructs a [KeyChainService] backed by the OS CSPRNG.
func NewKeyChainService() KeyChainService {
	return &keyChainService{rand: rand.Reader}
}

// NewKeyChainServiceWithRand constructs a [KeyChainService] that draws all
// random bytes from r.
func NewKeyChainServiceWithRand(r io.Reader) KeyChainService {
	return &keyChainService{rand: r}
}

// GenerateMasterSeed implements [KeyChainService].
func (k *keyChainService) GenerateMasterSeed() ([]byte, error) {
	return k.GenerateKey(MasterSeedSize)
}

// GenerateIV implements [KeyChainService].
func (k *keyChainService) GenerateIV(c CipherID) ([]byte, error) {
	if c.UUID() == uuid.Nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCipher, c)
	}
	return k.GenerateKey(c.IVSize())
}

// GenerateKey implements [KeyChainService]. It reads n bytes from the
// random source and returns an error if the read comes up short.
func (k *keyChainService) GenerateKey(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(k.rand, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// RandomizeKDF implements [KeyChainService].
func (k *keyChainService) RandomizeKDF(kdf KDF) error {
	if err := kdf.Randomize(k.rand); err != nil {
		return fmt.Errorf("randomize kdf: %w", err)
	}
	return nil
}

// Encrypt implements [KeyChainService].
func (k *keyChainService) Encrypt(c CipherID, key, iv, plaintext []byte) ([]byte, error) {
	return c.Encrypt(key, iv, plaintext)
}

// Decrypt implements [KeyChainService].
func (k *keyChainService) Decrypt(c CipherID, key, iv, ciphertext []byte) ([]byte, error) {
	return c.Decrypt(key, iv, ciphertext)
}

// TransformKey implements [KeyChainService]. The raw key is wiped once the
// KDF has consumed it.
func (k *keyChainService) TransformKey(key *CompositeKey, kdf KDF) ([]byte, error) {
	raw, err := key.RawKey()
	if err != nil {
		return nil, err
	}
	defer Wipe(raw)

	return kdf.Transform(raw)
}

// CipherKey implements [KeyChainService]. It computes
// SHA-256(masterSeed ‖ crResponse ‖ transformedKey).
func (k *keyChainService) CipherKey(masterSeed, transformedKey, crResponse []byte) []byte {
	h := sha256.New()
	h.Write(masterSeed)
	h.Write(crResponse)
	h.Write(transformedKey)
	return h.Sum(nil)
}

// HMACBaseKey implements [KeyChainService]. It computes
// SHA-512(masterSeed ‖ transformedKey ‖ 0x01).
func (k *keyChainService) HMACBaseKey(masterSeed, transformedKey []byte) []byte {
	h := sha512.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	h.Write([]byte{0x01})
	return h.Sum(nil)
}

// HMACBlockKey derives the key of one HMAC-protected block:
// SHA-512(uint64 LE index ‖ baseKey). The header uses [HeaderHMACIndex].
func HMACBlockKey(baseKey []byte, index uint64) []byte {
	h := sha512.New()
	_ = binary.Write(h, binary.LittleEndian, index)
	h.Write(baseKey)
	return h.Sum(nil)
}

// HeaderHMAC computes the HMAC-SHA256 that follows the Gen4 header.
func HeaderHMAC(baseKey, header []byte) []byte {
	mac := hmac.New(sha256.New, HMACBlockKey(baseKey, HeaderHMACIndex))
	mac.Write(header)
	return mac.Sum(nil)
}
