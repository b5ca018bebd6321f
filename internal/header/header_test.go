package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gen3Header() *Header {
	return &Header{
		Version:            Version31,
		Cipher:             crypto.CipherAES256,
		Compression:        CompressionGzip,
		MasterSeed:         bytes.Repeat([]byte{1}, 32),
		EncryptionIV:       bytes.Repeat([]byte{2}, 16),
		KDF:                &crypto.AESKDF{Seed: bytes.Repeat([]byte{3}, 32), Rounds: 6000},
		ProtectedStreamKey: bytes.Repeat([]byte{4}, 32),
		StreamStartBytes:   bytes.Repeat([]byte{5}, 32),
		InnerRandomStream:  crypto.StreamSalsa20,
	}
}

func gen4Header() *Header {
	custom := variantmap.New()
	custom.SetString("plugin", "value")

	kdf := crypto.NewArgon2KDF(crypto.Argon2id)
	kdf.Salt = bytes.Repeat([]byte{6}, 32)

	return &Header{
		Version:          Version41,
		Cipher:           crypto.CipherChaCha20,
		Compression:      CompressionNone,
		MasterSeed:       bytes.Repeat([]byte{1}, 32),
		EncryptionIV:     bytes.Repeat([]byte{2}, 12),
		KDF:              kdf,
		PublicCustomData: custom,
	}
}

// rawField builds one TLV field in the layout of the given generation.
func rawField(gen4 bool, id FieldID, data []byte) []byte {
	out := []byte{byte(id)}
	if gen4 {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	} else {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(data)))
	}
	return append(out, data...)
}

// insertBeforeEnd splices an extra field in front of the End field.
func insertBeforeEnd(t *testing.T, raw []byte, gen4 bool, field []byte) []byte {
	t.Helper()
	end := rawField(gen4, FieldEnd, endOfHeader)
	require.True(t, bytes.HasSuffix(raw, end))
	head := raw[:len(raw)-len(end)]
	return append(append(append([]byte{}, head...), field...), end...)
}

func TestHeader_RoundTrip(t *testing.T) {
	for name, h := range map[string]*Header{"gen3": gen3Header(), "gen4": gen4Header()} {
		t.Run(name, func(t *testing.T) {
			raw, err := h.Marshal()
			require.NoError(t, err)

			trailing := []byte("encrypted body follows")
			r := bytes.NewReader(append(bytes.Clone(raw), trailing...))

			got, gotRaw, err := Read(r)
			require.NoError(t, err)
			assert.Equal(t, raw, gotRaw)
			assert.Equal(t, h.Version, got.Version)
			assert.Equal(t, h.Cipher, got.Cipher)
			assert.Equal(t, h.Compression, got.Compression)
			assert.Equal(t, h.MasterSeed, got.MasterSeed)
			assert.Equal(t, h.EncryptionIV, got.EncryptionIV)
			assert.Equal(t, h.KDF, got.KDF)
			assert.Equal(t, h.ProtectedStreamKey, got.ProtectedStreamKey)
			assert.Equal(t, h.StreamStartBytes, got.StreamStartBytes)
			assert.Equal(t, h.InnerRandomStream, got.InnerRandomStream)
			assert.True(t, h.PublicCustomData.Equal(got.PublicCustomData))

			rest := make([]byte, len(trailing))
			_, err = r.Read(rest)
			require.NoError(t, err)
			assert.Equal(t, trailing, rest, "reader must stop right after the End field")

			again, err := got.Marshal()
			require.NoError(t, err)
			assert.Equal(t, raw, again)
		})
	}
}

func TestHeader_CommentIsKept(t *testing.T) {
	h := gen3Header()
	h.Comment = []byte("written by tests")

	raw, err := h.Marshal()
	require.NoError(t, err)

	got, _, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, h.Comment, got.Comment)
}

func TestReadVersion_Errors(t *testing.T) {
	word := func(vs ...uint32) []byte {
		var b []byte
		for _, v := range vs {
			b = binary.LittleEndian.AppendUint32(b, v)
		}
		return b
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "empty", data: nil, wantErr: ErrTruncated},
		{name: "short", data: word(Signature1), wantErr: ErrTruncated},
		{name: "bad signature", data: word(0xDEADBEEF, Signature2, uint32(Version31)), wantErr: ErrInvalidSignature},
		{name: "keepass 1", data: word(Signature1, 0xB54BFB65, 0x00030002), wantErr: ErrUnsupportedVersion},
		{name: "major 5", data: word(Signature1, Signature2, 0x00050000), wantErr: ErrUnsupportedVersion},
		{name: "major 2", data: word(Signature1, Signature2, 0x00020000), wantErr: ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadVersion(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRead_FieldErrors(t *testing.T) {
	g3, err := gen3Header().Marshal()
	require.NoError(t, err)
	g4, err := gen4Header().Marshal()
	require.NoError(t, err)

	kdfMap, err := gen4Header().KDF.VariantMap().Encode()
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		wantID  FieldID
	}{
		{
			name:    "unknown field id",
			data:    insertBeforeEnd(t, g3, false, rawField(false, 42, []byte{1})),
			wantErr: ErrInvalidHeaderField,
			wantID:  42,
		},
		{
			name:    "duplicate master seed",
			data:    insertBeforeEnd(t, g3, false, rawField(false, FieldMasterSeed, make([]byte, 32))),
			wantErr: ErrInvalidHeaderField,
			wantID:  FieldMasterSeed,
		},
		{
			name:    "kdf parameters in gen3",
			data:    insertBeforeEnd(t, g3, false, rawField(false, FieldKdfParameters, kdfMap)),
			wantErr: ErrInvalidHeaderField,
			wantID:  FieldKdfParameters,
		},
		{
			name:    "transform rounds in gen4",
			data:    insertBeforeEnd(t, g4, true, rawField(true, FieldTransformRounds, make([]byte, 8))),
			wantErr: ErrInvalidHeaderField,
			wantID:  FieldTransformRounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var fe *InvalidFieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.wantID, fe.FieldID)
		})
	}
}

func TestRead_WrongFixedWidth(t *testing.T) {
	var raw []byte
	raw = binary.LittleEndian.AppendUint32(raw, Signature1)
	raw = binary.LittleEndian.AppendUint32(raw, Signature2)
	raw = binary.LittleEndian.AppendUint32(raw, uint32(Version31))
	raw = append(raw, rawField(false, FieldCompression, []byte{1, 0})...)
	raw = append(raw, rawField(false, FieldEnd, endOfHeader)...)

	_, _, err := Read(bytes.NewReader(raw))
	var fe *InvalidFieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FieldCompression, fe.FieldID)
}

func TestRead_MissingAndUnsupported(t *testing.T) {
	build := func(version Version, fields ...[]byte) []byte {
		var raw []byte
		raw = binary.LittleEndian.AppendUint32(raw, Signature1)
		raw = binary.LittleEndian.AppendUint32(raw, Signature2)
		raw = binary.LittleEndian.AppendUint32(raw, uint32(version))
		for _, f := range fields {
			raw = append(raw, f...)
		}
		return append(raw, rawField(version.IsGen4(), FieldEnd, endOfHeader)...)
	}
	aesID := crypto.CipherAES256UUID

	_, _, err := Read(bytes.NewReader(build(Version31, rawField(false, FieldCipherID, aesID[:]))))
	assert.ErrorIs(t, err, ErrMissingHeaderField)

	unknownCipher := bytes.Repeat([]byte{0xEE}, 16)
	_, _, err = Read(bytes.NewReader(build(Version40, rawField(true, FieldCipherID, unknownCipher))))
	assert.ErrorIs(t, err, crypto.ErrUnsupportedCipher)

	_, _, err = Read(bytes.NewReader(build(Version40, rawField(true, FieldCompression, uint32Bytes(2)))))
	assert.ErrorIs(t, err, ErrUnsupportedCompression)

	_, _, err = Read(bytes.NewReader(build(Version31, rawField(false, FieldInnerRandomStreamID, uint32Bytes(1)))))
	assert.ErrorIs(t, err, crypto.ErrUnsupportedStream)

	_, _, err = Read(bytes.NewReader(build(Version40, rawField(true, FieldKdfParameters, []byte{0, 1}))))
	assert.ErrorIs(t, err, ErrInvalidHeaderField)

	huge := append([]byte{byte(FieldComment)}, binary.LittleEndian.AppendUint32(nil, 1<<30)...)
	_, _, err = Read(bytes.NewReader(build(Version40, huge)))
	assert.ErrorIs(t, err, ErrInvalidHeaderField)
}

func TestRead_Truncated(t *testing.T) {
	raw, err := gen4Header().Marshal()
	require.NoError(t, err)

	for _, n := range []int{13, 20, len(raw) - 1} {
		_, _, err := Read(bytes.NewReader(raw[:n]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", n)
	}
}

func TestRead_IVMustMatchCipher(t *testing.T) {
	h := gen4Header()
	h.Cipher = crypto.CipherAES256
	h.EncryptionIV = bytes.Repeat([]byte{2}, 16)
	raw, err := h.Marshal()
	require.NoError(t, err)

	// Re-label the cipher as ChaCha20 so the stored 16-byte IV is wrong.
	aesID, chachaID := crypto.CipherAES256UUID, crypto.CipherChaCha20UUID
	tampered := bytes.Replace(raw, aesID[:], chachaID[:], 1)

	_, _, err = Read(bytes.NewReader(tampered))
	assert.ErrorIs(t, err, ErrInvalidHeaderField)
	assert.ErrorIs(t, err, crypto.ErrInvalidIVSize)
}

func TestMarshal_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *Header)
		wantErr error
	}{
		{name: "argon2 in gen3", mutate: func(h *Header) { h.KDF = crypto.NewArgon2KDF(crypto.Argon2d) }, wantErr: ErrInvalidHeaderField},
		{name: "custom data in gen3", mutate: func(h *Header) {
			h.PublicCustomData = variantmap.New()
			h.PublicCustomData.SetBool("x", true)
		}, wantErr: ErrInvalidHeaderField},
		{name: "short master seed", mutate: func(h *Header) { h.MasterSeed = []byte{1} }, wantErr: ErrInvalidHeaderField},
		{name: "iv size", mutate: func(h *Header) { h.EncryptionIV = []byte{1} }, wantErr: crypto.ErrInvalidIVSize},
		{name: "no kdf", mutate: func(h *Header) { h.KDF = nil }, wantErr: ErrMissingHeaderField},
		{name: "bad rounds", mutate: func(h *Header) { h.KDF = &crypto.AESKDF{Seed: make([]byte, 32)} }, wantErr: crypto.ErrKDF},
		{name: "bad stream", mutate: func(h *Header) { h.InnerRandomStream = crypto.StreamArcFour }, wantErr: crypto.ErrUnsupportedStream},
		{name: "bad version", mutate: func(h *Header) { h.Version = 0x00020000 }, wantErr: ErrUnsupportedVersion},
		{name: "bad cipher", mutate: func(h *Header) { h.Cipher = 0 }, wantErr: crypto.ErrUnsupportedCipher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := gen3Header()
			tt.mutate(h)
			_, err := h.Marshal()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVersion(t *testing.T) {
	assert.True(t, Version40.IsGen4())
	assert.False(t, Version31.IsGen4())
	assert.Equal(t, "4.1", Version41.String())

	v, err := ParseVersion("3.1")
	require.NoError(t, err)
	assert.Equal(t, Version31, v)

	_, err = ParseVersion("2.0")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
