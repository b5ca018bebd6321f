package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const keyFileKeySize = 32

type xmlKeyFile struct {
	XMLName xml.Name `xml:"KeyFile"`
	Meta    struct {
		Version string `xml:"Version"`
	} `xml:"Meta"`
	Key struct {
		Data struct {
			Hash  string `xml:"Hash,attr,omitempty"`
			Value string `xml:",chardata"`
		} `xml:"Data"`
	} `xml:"Key"`
}

// LoadKeyFile extracts the 32-byte key from a key file. Recognized formats,
// tried in order:
//
//   - XML version 1.0: base64 key in KeyFile/Key/Data
//   - XML version 2.0: hex key in KeyFile/Key/Data, checked against the
//     first 4 bytes of its SHA-256 in the Hash attribute
//   - exactly 32 raw bytes
//   - exactly 64 hex characters
//   - anything else: SHA-256 of the whole content
func LoadKeyFile(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, ErrEmptyKeyFile
	}

	if key, ok, err := loadXMLKeyFile(content); ok || err != nil {
		return key, err
	}

	if len(content) == keyFileKeySize {
		return bytes.Clone(content), nil
	}

	if len(content) == 2*keyFileKeySize {
		if key, err := hex.DecodeString(string(content)); err == nil {
			return key, nil
		}
	}

	sum := sha256.Sum256(content)
	return sum[:], nil
}

// loadXMLKeyFile reports ok=false when content is not an XML key file so
// that the caller can fall back to the other formats.
func loadXMLKeyFile(content []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(content)
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return nil, false, nil
	}

	var kf xmlKeyFile
	if err := xml.Unmarshal(trimmed, &kf); err != nil {
		return nil, false, nil
	}

	data := strings.Join(strings.Fields(kf.Key.Data.Value), "")
	switch {
	case strings.HasPrefix(kf.Meta.Version, "1."):
		key, err := base64.StdEncoding.DecodeString(data)
		if err != nil || len(key) != keyFileKeySize {
			return nil, true, fmt.Errorf("%w: bad v1 key data", ErrInvalidKeyFile)
		}
		return key, true, nil

	case strings.HasPrefix(kf.Meta.Version, "2."):
		key, err := hex.DecodeString(data)
		if err != nil || len(key) != keyFileKeySize {
			return nil, true, fmt.Errorf("%w: bad v2 key data", ErrInvalidKeyFile)
		}
		if kf.Key.Data.Hash != "" {
			want, err := hex.DecodeString(kf.Key.Data.Hash)
			sum := sha256.Sum256(key)
			if err != nil || !bytes.Equal(want, sum[:4]) {
				return nil, true, ErrKeyFileHashMismatch
			}
		}
		return key, true, nil

	default:
		return nil, true, fmt.Errorf("%w: unsupported version %q", ErrInvalidKeyFile, kf.Meta.Version)
	}
}

// GenerateKeyFile writes a new version 2.0 XML key file with a random key
// drawn from r and returns the file content.
func GenerateKeyFile(r io.Reader) ([]byte, error) {
	key := make([]byte, keyFileKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	sum := sha256.Sum256(key)

	hexKey := strings.ToUpper(hex.EncodeToString(key))
	var groups []string
	for i := 0; i < len(hexKey); i += 8 {
		groups = append(groups, hexKey[i:i+8])
	}

	var kf xmlKeyFile
	kf.Meta.Version = "2.0"
	kf.Key.Data.Hash = strings.ToUpper(hex.EncodeToString(sum[:4]))
	kf.Key.Data.Value = strings.Join(groups, " ")

	out, err := xml.MarshalIndent(kf, "", "\t")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
