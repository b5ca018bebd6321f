package header

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailer_ReadAndVerify(t *testing.T) {
	raw, err := gen4Header().Marshal()
	require.NoError(t, err)
	base := bytes.Repeat([]byte{0x10}, 64)

	trailer := Trailer(raw, base)
	require.Len(t, trailer, 64)

	mac, err := ReadTrailer(bytes.NewReader(trailer), raw)
	require.NoError(t, err)
	require.NoError(t, VerifyHMAC(raw, mac, base))

	wrongKey := bytes.Repeat([]byte{0x11}, 64)
	assert.ErrorIs(t, VerifyHMAC(raw, mac, wrongKey), ErrHeaderHMACMismatch)

	tampered := bytes.Clone(raw)
	tampered[len(tampered)-10] ^= 0x01
	_, err = ReadTrailer(bytes.NewReader(trailer), tampered)
	assert.ErrorIs(t, err, ErrHeaderSHAMismatch)

	_, err = ReadTrailer(bytes.NewReader(trailer[:40]), raw)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestVerifyHash(t *testing.T) {
	raw := []byte("header")
	require.NoError(t, VerifyHash(raw, Hash(raw)))
	require.NoError(t, VerifyHash(raw, nil))
	assert.ErrorIs(t, VerifyHash(append(raw, 'x'), Hash(raw)), ErrHeaderHashMismatch)
}
