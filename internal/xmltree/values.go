package xmltree

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// Element and attribute names shared by the decoder and the encoder.
const (
	elemKeePassFile    = "KeePassFile"
	elemMeta           = "Meta"
	elemRoot           = "Root"
	elemGroup          = "Group"
	elemEntry          = "Entry"
	elemTimes          = "Times"
	elemString         = "String"
	elemBinary         = "Binary"
	elemBinaries       = "Binaries"
	elemKey            = "Key"
	elemValue          = "Value"
	elemHistory        = "History"
	elemCustomData     = "CustomData"
	elemItem           = "Item"
	elemDeletedObjects = "DeletedObjects"
	elemDeletedObject  = "DeletedObject"

	attrProtected       = "Protected"
	attrProtectInMemory = "ProtectInMemory"
	attrRef             = "Ref"
	attrID              = "ID"
	attrCompressed      = "Compressed"

	valueTrue  = "True"
	valueFalse = "False"
)

// secondsToUnixEpoch is the number of seconds between 0001-01-01 and
// 1970-01-01, the offset of the binary time encoding.
const secondsToUnixEpoch = 62135596800

const isoTimeLayout = "2006-01-02T15:04:05Z"

func formatBool(v bool) string {
	if v {
		return valueTrue
	}
	return valueFalse
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBoolValue, s)
}

func formatTriState(v models.TriState) string {
	switch v {
	case models.Enabled:
		return valueTrue
	case models.Disabled:
		return valueFalse
	default:
		return "null"
	}
}

func parseTriState(s string) (models.TriState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "":
		return models.Inherit, nil
	case "true", "1":
		return models.Enabled, nil
	case "false", "0":
		return models.Disabled, nil
	}
	return models.Inherit, fmt.Errorf("%w: %q", ErrInvalidBoolValue, s)
}

func parseInt(s string, bits int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumberValue, s)
	}
	return v, nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumberValue, s)
	}
	return v, nil
}

// formatTime writes KDBX 4 times as base64 of the little-endian seconds
// since 0001-01-01 and KDBX 3 times as ISO 8601.
func formatTime(t time.Time, binaryTimes bool) string {
	t = models.NormalizeTime(t)
	if !binaryTimes {
		return t.Format(isoTimeLayout)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.Unix()+secondsToUnixEpoch))
	return base64.StdEncoding.EncodeToString(buf[:])
}

// parseTime accepts both encodings.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return models.NormalizeTime(t), nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateValue, s)
	}
	secs := int64(binary.LittleEndian.Uint64(raw))
	return time.Unix(secs-secondsToUnixEpoch, 0).UTC(), nil
}

func formatUUID(u models.UUID) string {
	return base64.StdEncoding.EncodeToString(u[:])
}

// parseUUID maps empty text to the null UUID.
func parseUUID(s string) (models.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NilUUID, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != len(models.UUID{}) {
		return models.NilUUID, fmt.Errorf("%w: %q", ErrInvalidUUIDValue, s)
	}
	return models.UUID(raw), nil
}

// parseColor accepts "" or "#RRGGBB".
func parseColor(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) != 7 || s[0] != '#' {
		return "", fmt.Errorf("%w: %q", ErrInvalidColorValue, s)
	}
	if _, err := strconv.ParseUint(s[1:], 16, 32); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidColorValue, s)
	}
	return s, nil
}

func parseTags(s string) []string {
	var tags []string
	for _, tag := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func formatTags(tags []string) string {
	return strings.Join(tags, ";")
}
