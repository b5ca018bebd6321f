package xmltree

import (
	"errors"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// Decoding errors. Every error returned by Decode wraps one of these.
var (
	// ErrMalformedXML is returned for XML syntax errors and documents that
	// do not have the KeePassFile structure.
	ErrMalformedXML = errors.New("malformed XML document")

	// ErrNullUUID is returned for groups or entries without an id.
	ErrNullUUID = models.ErrNullUUID

	// ErrDuplicateUUID is returned when two objects share an id.
	ErrDuplicateUUID = models.ErrDuplicateUUID

	// ErrDuplicateAttribute is returned when an entry repeats a string key
	// or an attachment name.
	ErrDuplicateAttribute = errors.New("duplicate entry attribute")

	// ErrHistoryUUIDMismatch is returned when a history item has a
	// different id than its entry.
	ErrHistoryUUIDMismatch = errors.New("history item UUID does not match entry")

	ErrInvalidBoolValue   = errors.New("invalid bool value")
	ErrInvalidDateValue   = errors.New("invalid date value")
	ErrInvalidNumberValue = errors.New("invalid number value")
	ErrInvalidUUIDValue   = errors.New("invalid UUID value")
	ErrInvalidColorValue  = errors.New("invalid color value")

	// ErrInvalidBinaryReference is returned when an attachment points to a
	// missing pool item.
	ErrInvalidBinaryReference = errors.New("invalid binary reference")
)
