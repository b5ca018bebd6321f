package variantmap

import "errors"

var (
	// ErrMalformed is returned when the serialized map is truncated, has a
	// length that disagrees with its type, an unknown type tag, a duplicate
	// name or trailing data.
	ErrMalformed = errors.New("malformed variant map")

	// ErrUnsupportedVersion is returned when the critical part of the map
	// version is newer than the one this package understands.
	ErrUnsupportedVersion = errors.New("unsupported variant map version")
)
