// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/sha256"
	"fmt"
	"io"
	"math"

	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
	"github.com/google/uuid"
	argon2d "github.com/tobischo/argon2"
	"golang.org/x/crypto/argon2"
)

// KDF UUIDs. Both AES-KDF identifiers name the same algorithm; Gen4
// containers written by this package use [KDFAESKDBX4UUID].
var (
	KDFAESKDBX3UUID = uuid.MustParse("c9d9f39a-628a-4460-bf74-0d08c18a4fea")
	KDFAESKDBX4UUID = uuid.MustParse("7c02bb82-79a7-4ac0-927d-114a00648238")
	KDFArgon2dUUID  = uuid.MustParse("ef636ddf-8c29-444b-91f7-a9a403e30a0c")
	KDFArgon2idUUID = uuid.MustParse("9e298b19-56db-4773-b23d-fc3ec6f0a1e6")
)

const (
	argon2Version13  uint32 = 0x13
	argon2MaxLanes   uint32 = 255
	argon2MinSaltLen        = 8
)

// Variant map keys of the KDF parameters.
const (
	kdfParamUUID        = "$UUID"
	kdfParamRounds      = "R"
	kdfParamSeed        = "S"
	kdfParamParallelism = "P"
	kdfParamMemory      = "M"
	kdfParamIterations  = "I"
	kdfParamVersion     = "V"
	kdfParamSecret      = "K"
	kdfParamAssocData   = "A"
)

// Defaults used for newly created databases.
const (
	DefaultAESRounds         = 100_000
	DefaultArgon2Memory      = 64 << 20
	DefaultArgon2Iterations  = 10
	DefaultArgon2Parallelism = 2
	seedSize                 = 32
)

// MaxAESRounds is the largest AES-KDF round count Validate accepts.
const MaxAESRounds uint64 = 1 << 31

// KDF is a key derivation function that turns the 32-byte raw composite
// key into the transformed key. The set of implementations is closed:
// [*AESKDF] and [*Argon2KDF].
type KDF interface {
	// UUID is the identifier written to the $UUID parameter.
	UUID() uuid.UUID

	// Transform derives the 32-byte transformed key. It validates the
	// parameters first and fails with [ErrKDF] when they are out of range.
	Transform(rawKey []byte) ([]byte, error)

	// Validate checks the parameters without running the transform.
	Validate() error

	// VariantMap serializes the parameters for the Gen4 header.
	VariantMap() *variantmap.Map

	// Randomize replaces the seed or salt with fresh bytes from r.
	Randomize(r io.Reader) error

	// Clone returns a deep copy.
	Clone() KDF

	sealed()
}

// AESKDF repeatedly encrypts the raw key with AES-256 in ECB mode.
type AESKDF struct {
	Seed   []byte
	Rounds uint64
}

// NewAESKDF returns an AES-KDF with default rounds and an empty seed;
// call Randomize before use.
func NewAESKDF() *AESKDF {
	return &AESKDF{Seed: make([]byte, seedSize), Rounds: DefaultAESRounds}
}

func (*AESKDF) sealed() {}

func (*AESKDF) UUID() uuid.UUID { return KDFAESKDBX4UUID }

func (k *AESKDF) Validate() error {
	if k.Rounds == 0 {
		return fmt.Errorf("%w: AES-KDF rounds must be positive", ErrKDF)
	}
	if err := k.CheckRounds(MaxAESRounds); err != nil {
		return err
	}
	if len(k.Seed) != seedSize {
		return fmt.Errorf("%w: AES-KDF seed must be %d bytes, got %d", ErrKDF, seedSize, len(k.Seed))
	}
	return nil
}

// CheckRounds fails with [ErrKDF] when Rounds exceeds limit.
func (k *AESKDF) CheckRounds(limit uint64) error {
	if k.Rounds > limit {
		return fmt.Errorf("%w: AES-KDF rounds %d exceed limit %d", ErrKDF, k.Rounds, limit)
	}
	return nil
}

// Transform encrypts each 16-byte half of rawKey Rounds times and hashes
// the result with SHA-256.
func (k *AESKDF) Transform(rawKey []byte) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if len(rawKey) != KeySize {
		return nil, fmt.Errorf("%w: raw key must be %d bytes", ErrKDF, KeySize)
	}

	block, err := aes.NewCipher(k.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKDF, err)
	}

	key := bytes.Clone(rawKey)
	lo, hi := key[:aes.BlockSize], key[aes.BlockSize:]
	for range k.Rounds {
		block.Encrypt(lo, lo)
		block.Encrypt(hi, hi)
	}

	sum := sha256.Sum256(key)
	Wipe(key)
	return sum[:], nil
}

func (k *AESKDF) VariantMap() *variantmap.Map {
	m := variantmap.New()
	id := k.UUID()
	m.SetBytes(kdfParamUUID, id[:])
	m.SetUInt64(kdfParamRounds, k.Rounds)
	m.SetBytes(kdfParamSeed, k.Seed)
	return m
}

func (k *AESKDF) Randomize(r io.Reader) error {
	seed := make([]byte, seedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return err
	}
	k.Seed = seed
	return nil
}

func (k *AESKDF) Clone() KDF {
	return &AESKDF{Seed: bytes.Clone(k.Seed), Rounds: k.Rounds}
}

// Argon2Variant selects the Argon2 flavour.
type Argon2Variant int

const (
	Argon2d Argon2Variant = iota + 1
	Argon2id
)

func (v Argon2Variant) String() string {
	switch v {
	case Argon2d:
		return "argon2d"
	case Argon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("Argon2Variant(%d)", int(v))
	}
}

// Argon2KDF holds the Argon2 parameters as they appear in the header.
// Memory is in bytes.
type Argon2KDF struct {
	Variant     Argon2Variant
	Salt        []byte
	Memory      uint64
	Iterations  uint64
	Parallelism uint32
	Version     uint32
	Secret      []byte
	AssocData   []byte
}

// NewArgon2KDF returns an Argon2 KDF with default costs and an empty salt;
// call Randomize before use.
func NewArgon2KDF(variant Argon2Variant) *Argon2KDF {
	return &Argon2KDF{
		Variant:     variant,
		Salt:        make([]byte, seedSize),
		Memory:      DefaultArgon2Memory,
		Iterations:  DefaultArgon2Iterations,
		Parallelism: DefaultArgon2Parallelism,
		Version:     argon2Version13,
	}
}

func (*Argon2KDF) sealed() {}

func (k *Argon2KDF) UUID() uuid.UUID {
	if k.Variant == Argon2id {
		return KDFArgon2idUUID
	}
	return KDFArgon2dUUID
}

func (k *Argon2KDF) Validate() error {
	switch {
	case k.Variant != Argon2d && k.Variant != Argon2id:
		return fmt.Errorf("%w: unknown argon2 variant %d", ErrKDF, k.Variant)
	case k.Version != argon2Version13:
		return fmt.Errorf("%w: argon2 version 0x%x is not supported", ErrKDF, k.Version)
	case k.Iterations < 1 || k.Iterations > math.MaxUint32:
		return fmt.Errorf("%w: argon2 iterations %d out of range", ErrKDF, k.Iterations)
	case k.Parallelism < 1 || k.Parallelism > argon2MaxLanes:
		return fmt.Errorf("%w: argon2 parallelism %d out of range", ErrKDF, k.Parallelism)
	case k.Memory%1024 != 0:
		return fmt.Errorf("%w: argon2 memory %d is not a multiple of 1 KiB", ErrKDF, k.Memory)
	case k.Memory/1024 < 8*uint64(k.Parallelism) || k.Memory/1024 > math.MaxUint32:
		return fmt.Errorf("%w: argon2 memory %d out of range", ErrKDF, k.Memory)
	case len(k.Salt) < argon2MinSaltLen:
		return fmt.Errorf("%w: argon2 salt too short", ErrKDF)
	case len(k.Secret) > 0 || len(k.AssocData) > 0:
		return fmt.Errorf("%w: argon2 secret and associated data are not supported", ErrKDF)
	}
	return nil
}

// Transform runs Argon2 over rawKey with the stored salt.
func (k *Argon2KDF) Transform(rawKey []byte) ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}

	memKiB := uint32(k.Memory / 1024)
	iter := uint32(k.Iterations)
	lanes := uint8(k.Parallelism)

	if k.Variant == Argon2id {
		return argon2.IDKey(rawKey, k.Salt, iter, memKiB, lanes, KeySize), nil
	}
	return argon2d.DKey(rawKey, k.Salt, iter, memKiB, lanes, KeySize), nil
}

func (k *Argon2KDF) VariantMap() *variantmap.Map {
	m := variantmap.New()
	id := k.UUID()
	m.SetBytes(kdfParamUUID, id[:])
	m.SetBytes(kdfParamSeed, k.Salt)
	m.SetUInt32(kdfParamParallelism, k.Parallelism)
	m.SetUInt64(kdfParamMemory, k.Memory)
	m.SetUInt64(kdfParamIterations, k.Iterations)
	m.SetUInt32(kdfParamVersion, k.Version)
	if len(k.Secret) > 0 {
		m.SetBytes(kdfParamSecret, k.Secret)
	}
	if len(k.AssocData) > 0 {
		m.SetBytes(kdfParamAssocData, k.AssocData)
	}
	return m
}

func (k *Argon2KDF) Randomize(r io.Reader) error {
	salt := make([]byte, seedSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return err
	}
	k.Salt = salt
	return nil
}

func (k *Argon2KDF) Clone() KDF {
	c := *k
	c.Salt = bytes.Clone(k.Salt)
	c.Secret = bytes.Clone(k.Secret)
	c.AssocData = bytes.Clone(k.AssocData)
	return &c
}

// KDFFromVariantMap decodes the KdfParameters header field.
func KDFFromVariantMap(m *variantmap.Map) (KDF, error) {
	raw, ok := m.Bytes(kdfParamUUID)
	if !ok || len(raw) != 16 {
		return nil, fmt.Errorf("%w: missing or malformed %s", ErrKDF, kdfParamUUID)
	}
	id, _ := uuid.FromBytes(raw)

	switch id {
	case KDFAESKDBX3UUID, KDFAESKDBX4UUID:
		rounds, ok := m.UInt64(kdfParamRounds)
		if !ok {
			return nil, fmt.Errorf("%w: AES-KDF rounds missing", ErrKDF)
		}
		seed, ok := m.Bytes(kdfParamSeed)
		if !ok {
			return nil, fmt.Errorf("%w: AES-KDF seed missing", ErrKDF)
		}
		k := &AESKDF{Seed: bytes.Clone(seed), Rounds: rounds}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		return k, nil

	case KDFArgon2dUUID, KDFArgon2idUUID:
		k := &Argon2KDF{Variant: Argon2d}
		if id == KDFArgon2idUUID {
			k.Variant = Argon2id
		}

		salt, ok1 := m.Bytes(kdfParamSeed)
		par, ok2 := m.UInt32(kdfParamParallelism)
		mem, ok3 := m.UInt64(kdfParamMemory)
		iter, ok4 := m.UInt64(kdfParamIterations)
		ver, ok5 := m.UInt32(kdfParamVersion)
		if !(ok1 && ok2 && ok3 && ok4 && ok5) {
			return nil, fmt.Errorf("%w: argon2 parameters incomplete", ErrKDF)
		}
		k.Salt = bytes.Clone(salt)
		k.Parallelism = par
		k.Memory = mem
		k.Iterations = iter
		k.Version = ver
		if secret, ok := m.Bytes(kdfParamSecret); ok {
			k.Secret = bytes.Clone(secret)
		}
		if ad, ok := m.Bytes(kdfParamAssocData); ok {
			k.AssocData = bytes.Clone(ad)
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		return k, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKDF, id)
	}
}

// ParseKDF builds a KDF from its configuration name
// ("aes", "argon2d" or "argon2id").
func ParseKDF(name string) (KDF, error) {
	switch name {
	case "aes", "aes-kdf":
		return NewAESKDF(), nil
	case "argon2d", "argon2":
		return NewArgon2KDF(Argon2d), nil
	case "argon2id":
		return NewArgon2KDF(Argon2id), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, name)
	}
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	clear(b)
}
