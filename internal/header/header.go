// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package header reads and writes the plaintext header of a KDBX container
// and the inner header that precedes the XML document in Gen4 files.
//
// The outer header is a sequence of TLV fields after three fixed words:
//
//	signature1 uint32 | signature2 uint32 | version uint32
//	{ id byte | length (uint16 in Gen3, uint32 in Gen4) | data }*
//
// The raw bytes as read or written are returned alongside the parsed
// header because every integrity check is computed over them.
package header

import (
	"fmt"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
)

const (
	Signature1 uint32 = 0x9AA2D903
	Signature2 uint32 = 0xB54BFB67

	// signature2KeePass1 marks a KeePass 1 (KDB) file.
	signature2KeePass1 uint32 = 0xB54BFB65

	versionCriticalMask uint32 = 0xFFFF0000
)

// Version is the container format version.
type Version uint32

const (
	Version31 Version = 0x00030001
	Version40 Version = 0x00040000
	Version41 Version = 0x00040001
)

// Major returns the critical part of the version.
func (v Version) Major() uint16 {
	return uint16(uint32(v) >> 16)
}

// IsGen4 reports whether the version uses the Gen4 layout.
func (v Version) IsGen4() bool {
	return v.Major() == 4
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), uint16(v))
}

// ParseVersion resolves "3.1", "4.0" or "4.1".
func ParseVersion(s string) (Version, error) {
	switch s {
	case "3", "3.1":
		return Version31, nil
	case "4", "4.0":
		return Version40, nil
	case "4.1":
		return Version41, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
}

// Compression is the body compression flag.
type Compression uint32

const (
	CompressionNone Compression = 0
	CompressionGzip Compression = 1
)

// FieldID identifies one outer header field.
type FieldID byte

const (
	FieldEnd                 FieldID = 0
	FieldComment             FieldID = 1
	FieldCipherID            FieldID = 2
	FieldCompression         FieldID = 3
	FieldMasterSeed          FieldID = 4
	FieldTransformSeed       FieldID = 5
	FieldTransformRounds     FieldID = 6
	FieldEncryptionIV        FieldID = 7
	FieldProtectedStreamKey  FieldID = 8
	FieldStreamStartBytes    FieldID = 9
	FieldInnerRandomStreamID FieldID = 10
	FieldKdfParameters       FieldID = 11
	FieldPublicCustomData    FieldID = 12
)

var fieldNames = map[FieldID]string{
	FieldEnd:                 "End",
	FieldComment:             "Comment",
	FieldCipherID:            "CipherID",
	FieldCompression:         "Compression",
	FieldMasterSeed:          "MasterSeed",
	FieldTransformSeed:       "TransformSeed",
	FieldTransformRounds:     "TransformRounds",
	FieldEncryptionIV:        "EncryptionIV",
	FieldProtectedStreamKey:  "ProtectedStreamKey",
	FieldStreamStartBytes:    "StreamStartBytes",
	FieldInnerRandomStreamID: "InnerRandomStreamID",
	FieldKdfParameters:       "KdfParameters",
	FieldPublicCustomData:    "PublicCustomData",
}

func (f FieldID) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", byte(f))
}

// Field sizes.
const (
	MasterSeedSize       = 32
	TransformSeedSize    = 32
	StreamStartBytesSize = 32
	ProtectedKeySize     = 32
	InnerStreamKeySize   = 64
	HashSize             = 32

	// maxFieldSize caps the length of a single Gen4 field.
	maxFieldSize = 16 << 20
)

var endOfHeader = []byte("\r\n\r\n")

// Header is the parsed outer header.
type Header struct {
	Version      Version
	Comment      []byte
	Cipher       crypto.CipherID
	Compression  Compression
	MasterSeed   []byte
	EncryptionIV []byte

	// KDF is built from TransformSeed/TransformRounds in Gen3 (always an
	// [crypto.AESKDF]) and from KdfParameters in Gen4.
	KDF crypto.KDF

	// Gen3 only.
	ProtectedStreamKey []byte
	StreamStartBytes   []byte
	InnerRandomStream  crypto.StreamID

	// Gen4 only. Nil when the field is absent.
	PublicCustomData *variantmap.Map
}

func (h *Header) gen3Fields() []FieldID {
	return []FieldID{
		FieldTransformSeed, FieldTransformRounds, FieldProtectedStreamKey,
		FieldStreamStartBytes, FieldInnerRandomStreamID,
	}
}

func isGen3Only(id FieldID) bool {
	switch id {
	case FieldTransformSeed, FieldTransformRounds, FieldProtectedStreamKey,
		FieldStreamStartBytes, FieldInnerRandomStreamID:
		return true
	}
	return false
}

func isGen4Only(id FieldID) bool {
	return id == FieldKdfParameters || id == FieldPublicCustomData
}
