// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/twofish"
)

// CipherID identifies one of the outer ciphers a container can be
// encrypted with. The zero value is not a valid cipher.
type CipherID int

const (
	CipherAES256 CipherID = iota + 1
	CipherTwofish
	CipherChaCha20
)

// Header UUIDs of the supported ciphers.
var (
	CipherAES256UUID   = uuid.MustParse("31c1f2e6-bf71-4350-be58-05216afc5aff")
	CipherTwofishUUID  = uuid.MustParse("ad68f29f-576f-4bb9-a36a-d47af965346c")
	CipherChaCha20UUID = uuid.MustParse("d6038a2b-8b6f-4cb5-a524-339a31dbb59a")
)

// KeySize is the key length of every supported cipher.
const KeySize = 32

// CipherFromUUID resolves the cipher advertised in a container header.
func CipherFromUUID(id uuid.UUID) (CipherID, error) {
	switch id {
	case CipherAES256UUID:
		return CipherAES256, nil
	case CipherTwofishUUID:
		return CipherTwofish, nil
	case CipherChaCha20UUID:
		return CipherChaCha20, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCipher, id)
	}
}

// ParseCipher resolves a cipher by its configuration name
// ("aes256", "twofish" or "chacha20").
func ParseCipher(name string) (CipherID, error) {
	switch name {
	case "aes256", "aes":
		return CipherAES256, nil
	case "twofish":
		return CipherTwofish, nil
	case "chacha20":
		return CipherChaCha20, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
	}
}

// UUID returns the header identifier of the cipher.
func (c CipherID) UUID() uuid.UUID {
	switch c {
	case CipherAES256:
		return CipherAES256UUID
	case CipherTwofish:
		return CipherTwofishUUID
	case CipherChaCha20:
		return CipherChaCha20UUID
	default:
		return uuid.Nil
	}
}

// IVSize returns the expected length of the encryption IV.
func (c CipherID) IVSize() int {
	if c == CipherChaCha20 {
		return chacha20.NonceSize
	}
	return aes.BlockSize
}

func (c CipherID) String() string {
	switch c {
	case CipherAES256:
		return "AES-256"
	case CipherTwofish:
		return "Twofish"
	case CipherChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("CipherID(%d)", int(c))
	}
}

// Encrypt encrypts plaintext. Block ciphers run in CBC mode with PKCS#7
// padding; ChaCha20 is a plain stream cipher.
func (c CipherID) Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	if err := c.check(key, iv); err != nil {
		return nil, err
	}

	if c == CipherChaCha20 {
		return chachaXOR(key, iv, plaintext)
	}

	block, err := c.block(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt reverses [CipherID.Encrypt].
func (c CipherID) Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if err := c.check(key, iv); err != nil {
		return nil, err
	}

	if c == CipherChaCha20 {
		return chachaXOR(key, iv, ciphertext)
	}

	block, err := c.block(key)
	if err != nil {
		return nil, err
	}

	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidCiphertext, len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, bs)
}

func (c CipherID) check(key, iv []byte) error {
	if c.UUID() == uuid.Nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedCipher, c)
	}
	if len(key) != KeySize {
		return fmt.Errorf("%w: %d", ErrInvalidKeySize, len(key))
	}
	if len(iv) != c.IVSize() {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidIVSize, c, c.IVSize(), len(iv))
	}
	return nil
}

func (c CipherID) block(key []byte) (cipher.Block, error) {
	if c == CipherTwofish {
		return twofish.NewCipher(key)
	}
	return aes.NewCipher(key)
}

func chachaXOR(key, nonce, in []byte) ([]byte, error) {
	s, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	s.XORKeyStream(out, in)
	return out, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
