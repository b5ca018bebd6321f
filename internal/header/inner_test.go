package header

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInnerHeader_RoundTrip(t *testing.T) {
	h := &InnerHeader{
		StreamID:  crypto.StreamChaCha20,
		StreamKey: bytes.Repeat([]byte{9}, InnerStreamKeySize),
		Binaries: []Binary{
			{Protected: true, Data: []byte("secret attachment")},
			{Data: []byte{}},
			{Data: bytes.Repeat([]byte{0xFF}, 4096)},
		},
	}

	raw, err := h.Marshal()
	require.NoError(t, err)

	xml := []byte("<?xml version=\"1.0\"?><KeePassFile/>")
	r := bytes.NewReader(append(raw, xml...))

	got, err := ReadInner(r)
	require.NoError(t, err)
	assert.Equal(t, h.StreamID, got.StreamID)
	assert.Equal(t, h.StreamKey, got.StreamKey)
	require.Len(t, got.Binaries, 3)
	assert.True(t, got.Binaries[0].Protected)
	assert.Equal(t, h.Binaries[0].Data, got.Binaries[0].Data)
	assert.Empty(t, got.Binaries[1].Data)
	assert.Equal(t, h.Binaries[2].Data, got.Binaries[2].Data)

	rest := make([]byte, len(xml))
	_, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, xml, rest)
}

func TestReadInner_Errors(t *testing.T) {
	field := func(id InnerFieldID, data []byte) []byte {
		out := []byte{byte(id)}
		out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
		return append(out, data...)
	}
	join := func(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

	streamID := field(InnerFieldStreamID, uint32Bytes(uint32(crypto.StreamChaCha20)))
	streamKey := field(InnerFieldStreamKey, []byte{1, 2, 3})
	end := field(InnerFieldEnd, nil)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "missing key", data: join(streamID, end), wantErr: ErrMissingHeaderField},
		{name: "unknown field", data: join(streamID, streamKey, field(9, []byte{1}), end), wantErr: ErrInvalidHeaderField},
		{name: "binary without flags", data: join(streamID, streamKey, field(InnerFieldBinary, nil), end), wantErr: ErrInvalidHeaderField},
		{name: "duplicate stream id", data: join(streamID, streamID, streamKey, end), wantErr: ErrInvalidHeaderField},
		{name: "unsupported stream", data: join(field(InnerFieldStreamID, uint32Bytes(7)), streamKey, end), wantErr: crypto.ErrUnsupportedStream},
		{name: "truncated", data: join(streamID, streamKey)[:7], wantErr: ErrTruncated},
		{name: "no end", data: join(streamID, streamKey), wantErr: ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInner(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInnerHeader_MarshalRequiresKey(t *testing.T) {
	_, err := (&InnerHeader{StreamID: crypto.StreamSalsa20}).Marshal()
	assert.ErrorIs(t, err, ErrMissingHeaderField)
}
