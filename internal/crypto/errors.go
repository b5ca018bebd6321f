package crypto

import "errors"

// Cipher errors.
var (
	// ErrUnsupportedCipher is returned when a cipher UUID is not one of
	// AES-256, Twofish-256 or ChaCha20.
	ErrUnsupportedCipher = errors.New("unsupported cipher")

	// ErrInvalidIVSize is returned when the IV length does not match the
	// cipher (16 bytes for block ciphers, 12 for ChaCha20).
	ErrInvalidIVSize = errors.New("invalid IV size")

	// ErrInvalidKeySize is returned when a cipher key is not 32 bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidCiphertext is returned when a block-cipher ciphertext is not
	// a non-empty multiple of the block size.
	ErrInvalidCiphertext = errors.New("invalid ciphertext length")

	// ErrInvalidPadding is returned when PKCS#7 padding is broken after
	// decryption. With a well-formed file this almost always means the key
	// is wrong.
	ErrInvalidPadding = errors.New("invalid padding")
)

// KDF errors.
var (
	ErrUnsupportedKDF = errors.New("unsupported key derivation function")
	ErrKDF            = errors.New("invalid key derivation parameters")
)

// Key errors.
var (
	ErrEmptyKeyFile        = errors.New("key file is empty")
	ErrKeyFileHashMismatch = errors.New("key file hash mismatch")
	ErrInvalidKeyFile      = errors.New("invalid key file")

	// ErrNoKey is returned when a composite key has no components at all.
	ErrNoKey = errors.New("composite key has no components")

	// ErrChallengeResponse wraps failures of a [ChallengeResponder].
	ErrChallengeResponse = errors.New("challenge-response failed")
)

// ErrUnsupportedStream is returned for an unknown inner random stream id.
var ErrUnsupportedStream = errors.New("unsupported inner random stream")
