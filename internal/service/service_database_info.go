package service

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
)

// DatabaseInfo is what the outer header of a file tells without
// credentials.
type DatabaseInfo struct {
	Path    string
	Size    int
	Version header.Version
	Format  kdbx.FormatVersion

	Cipher      crypto.CipherID
	Compression bool
	KDF         crypto.KDF

	// PublicCustomData holds the number of unencrypted custom data items
	// (Gen4 only).
	PublicCustomData int
}

func newDatabaseInfo(path string, size int, h *header.Header) DatabaseInfo {
	info := DatabaseInfo{
		Path:        path,
		Size:        size,
		Version:     h.Version,
		Format:      kdbx.FormatVersionOf(h.Version),
		Cipher:      h.Cipher,
		Compression: h.Compression == header.CompressionGzip,
		KDF:         h.KDF,
	}
	if h.PublicCustomData != nil {
		info.PublicCustomData = h.PublicCustomData.Len()
	}
	return info
}

func (i DatabaseInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File:        %s (%d bytes)\n", i.Path, i.Size)
	fmt.Fprintf(&b, "Format:      %s (%s)\n", i.Format, i.Version)
	fmt.Fprintf(&b, "Cipher:      %s\n", i.Cipher)
	fmt.Fprintf(&b, "Compression: %t\n", i.Compression)
	fmt.Fprintf(&b, "KDF:         %s", describeKDF(i.KDF))
	if i.PublicCustomData > 0 {
		fmt.Fprintf(&b, "\nPublic data: %d item(s)", i.PublicCustomData)
	}
	return b.String()
}

func describeKDF(kdf crypto.KDF) string {
	switch k := kdf.(type) {
	case *crypto.AESKDF:
		return fmt.Sprintf("AES-KDF, %d rounds", k.Rounds)
	case *crypto.Argon2KDF:
		return fmt.Sprintf("%s, %d MiB, %d iterations, %d lanes, version 0x%x",
			k.Variant, k.Memory>>20, k.Iterations, k.Parallelism, k.Version)
	case nil:
		return "none"
	default:
		return fmt.Sprintf("%T", kdf)
	}
}
