package kdbx

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
)

// Error categories. Every error returned by this package matches exactly
// one of them with errors.Is, next to the specific sentinel of the layer
// that failed.
var (
	// ErrFormat covers corrupt or tampered input.
	ErrFormat = errors.New("invalid database format")

	// ErrCredentials means the composite key does not open the database.
	ErrCredentials = errors.New("invalid credentials")

	// ErrUnsupported covers versions, ciphers, KDFs and streams this
	// package does not implement.
	ErrUnsupported = errors.New("unsupported database feature")

	// ErrCapacity is returned when the database does not fit the limits
	// of the container format.
	ErrCapacity = errors.New("database exceeds format limits")
)

var (
	// ErrIncompatibleFormat is returned when a database uses state that
	// the requested format version cannot represent.
	ErrIncompatibleFormat = errors.New("database is incompatible with the requested format")

	// ErrStreamStartMismatch is returned when the first decrypted bytes of
	// a KDBX 3 body differ from the header. It is the usual outcome of a
	// wrong key.
	ErrStreamStartMismatch = errors.New("stream start bytes mismatch")

	// ErrAttachmentTooLarge is returned for an attachment above
	// [MaxAttachmentSize].
	ErrAttachmentTooLarge = errors.New("attachment too large")
)

var categories = []error{ErrFormat, ErrCredentials, ErrUnsupported, ErrCapacity}

var credentialErrors = []error{
	ErrStreamStartMismatch,
	crypto.ErrInvalidPadding,
	crypto.ErrNoKey,
	crypto.ErrChallengeResponse,
	crypto.ErrEmptyKeyFile,
	crypto.ErrInvalidKeyFile,
	crypto.ErrKeyFileHashMismatch,
	header.ErrHeaderHMACMismatch,
}

var unsupportedErrors = []error{
	ErrIncompatibleFormat,
	header.ErrUnsupportedVersion,
	header.ErrUnsupportedCompression,
	crypto.ErrUnsupportedCipher,
	crypto.ErrUnsupportedKDF,
	crypto.ErrUnsupportedStream,
	variantmap.ErrUnsupportedVersion,
}

var capacityErrors = []error{
	ErrAttachmentTooLarge,
}

// categorize tags err with its category unless it already carries one.
func categorize(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range categories {
		if errors.Is(err, c) {
			return err
		}
	}

	category := ErrFormat
	switch {
	case isAny(err, credentialErrors):
		category = ErrCredentials
	case isAny(err, unsupportedErrors):
		category = ErrUnsupported
	case isAny(err, capacityErrors):
		category = ErrCapacity
	}
	return fmt.Errorf("%w: %w", category, err)
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// IsCredentialsError reports whether err means the key was wrong rather
// than the file being damaged.
func IsCredentialsError(err error) bool {
	return errors.Is(err, ErrCredentials)
}
