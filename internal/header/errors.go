package header

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned when the file does not start with the
	// container signatures.
	ErrInvalidSignature = errors.New("not a KeePass 2 database")

	// ErrUnsupportedVersion is returned for KeePass 1 files and for major
	// versions other than 3 and 4.
	ErrUnsupportedVersion = errors.New("unsupported database version")

	// ErrUnsupportedCompression is returned for a compression flag other
	// than none or gzip.
	ErrUnsupportedCompression = errors.New("unsupported compression algorithm")

	// ErrInvalidHeaderField is matched by every [InvalidFieldError].
	ErrInvalidHeaderField = errors.New("invalid header field")

	// ErrMissingHeaderField is returned when a required field is absent.
	ErrMissingHeaderField = errors.New("missing header field")

	// ErrTruncated is returned when the input ends inside the header.
	ErrTruncated = errors.New("truncated header")
)

// Integrity errors. A SHA-256 mismatch means the bytes were corrupted; an
// HMAC mismatch means either tampering or a wrong key.
var (
	ErrHeaderHashMismatch = errors.New("header hash mismatch")
	ErrHeaderSHAMismatch  = errors.New("header checksum mismatch")
	ErrHeaderHMACMismatch = errors.New("header HMAC mismatch")
)

// InvalidFieldError describes a header field that cannot be accepted:
// an unknown id, a wrong length, a duplicate or a field that does not
// belong to the file's generation.
type InvalidFieldError struct {
	FieldID FieldID
	Reason  string
	Err     error
}

func (e *InvalidFieldError) Error() string {
	msg := fmt.Sprintf("invalid header field %s: %s", e.FieldID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes every InvalidFieldError match [ErrInvalidHeaderField].
func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidHeaderField
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

func invalidField(id FieldID, reason string, err error) error {
	return &InvalidFieldError{FieldID: id, Reason: reason, Err: err}
}
