package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/keychain_service_mock.go -package=mock

// KeyChainService owns every secret-producing operation of the container
// format. It holds the random source and nothing else, so an instance can
// be shared between goroutines.
//
// Keying scheme for one container:
//
//	raw         = SHA-256(passwordKey ‖ keyFileKey...)          (CompositeKey)
//	transformed = KDF(raw)                                       (TransformKey)
//	cipherKey   = SHA-256(masterSeed ‖ [crResponse] ‖ transformed) (CipherKey)
//	hmacBase    = SHA-512(masterSeed ‖ transformed ‖ 0x01)          (HMACBaseKey)
type KeyChainService interface {
	// GenerateMasterSeed returns 32 fresh random bytes. A new master seed
	// is generated on every save.
	GenerateMasterSeed() ([]byte, error)

	// GenerateIV returns a fresh IV sized for the given cipher.
	GenerateIV(c CipherID) ([]byte, error)

	// GenerateKey returns n fresh random bytes. Used for the protected
	// stream key and the Gen3 stream start bytes.
	GenerateKey(n int) ([]byte, error)

	// RandomizeKDF replaces the KDF seed/salt. Called before every save so
	// that a re-saved file never reuses a transformed key.
	RandomizeKDF(kdf KDF) error

	// Encrypt encrypts the container body with the outer cipher.
	Encrypt(c CipherID, key, iv, plaintext []byte) ([]byte, error)

	// Decrypt decrypts the container body. A padding failure is reported
	// as [ErrInvalidPadding].
	Decrypt(c CipherID, key, iv, ciphertext []byte) ([]byte, error)

	// TransformKey runs kdf over the raw composite key.
	TransformKey(key *CompositeKey, kdf KDF) ([]byte, error)

	// CipherKey derives the outer cipher key. crResponse is the hashed
	// challenge-response secret and may be nil.
	CipherKey(masterSeed, transformedKey, crResponse []byte) []byte

	// HMACBaseKey derives the base key of the Gen4 header and block HMACs.
	HMACBaseKey(masterSeed, transformedKey []byte) []byte
}

// ChallengeResponder answers a challenge with a secret response, the way a
// hardware token does. The response is mixed into the cipher key.
type ChallengeResponder interface {
	Challenge(challenge []byte) ([]byte, error)
}
