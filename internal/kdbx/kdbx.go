// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package kdbx opens and saves KeePass 2 containers. It ties the layers
// together: the outer header, key derivation, the outer cipher, the block
// stream, compression, the inner header and the XML tree.
//
// Reading accepts KDBX 3.1 and KDBX 4.x. Writing produces either
// generation; a database is written as 4.1 only when it uses fields that
// 4.0 cannot carry.
package kdbx

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/stream"
)

// FormatVersion selects the container generation to write.
type FormatVersion int

const (
	// Gen4 writes KDBX 4.0 or 4.1.
	Gen4 FormatVersion = iota
	// Gen3 writes KDBX 3.1.
	Gen3
)

func (v FormatVersion) String() string {
	switch v {
	case Gen3:
		return "KDBX 3.1"
	case Gen4:
		return "KDBX 4"
	default:
		return fmt.Sprintf("FormatVersion(%d)", int(v))
	}
}

// ParseFormatVersion accepts "3", "3.1", "4", "4.0" and "4.1".
func ParseFormatVersion(s string) (FormatVersion, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "3", "3.1", "kdbx3":
		return Gen3, nil
	case "4", "4.0", "4.1", "kdbx4":
		return Gen4, nil
	default:
		return 0, fmt.Errorf("%w: format version %q", ErrUnsupported, s)
	}
}

// FormatVersionOf maps a header version to its generation.
func FormatVersionOf(v header.Version) FormatVersion {
	if v.IsGen4() {
		return Gen4
	}
	return Gen3
}

// MaxAttachmentSize is the largest attachment a container can hold.
const MaxAttachmentSize = 256 << 20

type options struct {
	keys         crypto.KeyChainService
	blockSize    int
	maxAESRounds uint64
}

// Option configures Open and Save.
type Option func(*options)

// WithKeyChainService replaces the key service, mostly to supply a
// deterministic random source.
func WithKeyChainService(k crypto.KeyChainService) Option {
	return func(o *options) {
		o.keys = k
	}
}

// WithBlockSize sets the payload size of written body blocks.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// WithMaxAESRounds makes Open and Save refuse an AES-KDF with more than n
// rounds before deriving any key. Zero keeps [crypto.MaxAESRounds].
func WithMaxAESRounds(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAESRounds = n
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{blockSize: stream.DefaultBlockSize, maxAESRounds: crypto.MaxAESRounds}
	for _, opt := range opts {
		opt(o)
	}
	if o.keys == nil {
		o.keys = crypto.NewKeyChainService()
	}
	return o
}
