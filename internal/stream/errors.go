package stream

import "errors"

var (
	// ErrBlockHashMismatch is returned when a Gen3 block does not match its
	// SHA-256.
	ErrBlockHashMismatch = errors.New("block hash mismatch")

	// ErrBlockIndexMismatch is returned when a Gen3 block carries an
	// unexpected sequence number.
	ErrBlockIndexMismatch = errors.New("block index mismatch")

	// ErrBlockHMACMismatch is returned when a Gen4 block fails
	// authentication.
	ErrBlockHMACMismatch = errors.New("block HMAC mismatch")

	// ErrMalformedBlock is returned for a negative or oversized block length
	// and for input that ends before the terminating block.
	ErrMalformedBlock = errors.New("malformed block stream")

	// ErrDecompress wraps gzip failures on the read side.
	ErrDecompress = errors.New("corrupt compressed payload")
)
