package crypto_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// ── CompositeKey ─────────────────────────────────────────────────────────────

func TestCompositeKey_RawKey(t *testing.T) {
	pw := sha256.Sum256([]byte("pw"))
	fileKey := bytes.Repeat([]byte{0xAB}, 32)

	k := crypto.NewPasswordKey("pw")
	require.NoError(t, k.AddKeyFile(fileKey))

	raw, err := k.RawKey()
	require.NoError(t, err)

	want := sha256.Sum256(append(pw[:], fileKey...))
	assert.Equal(t, want[:], raw)
}

func TestCompositeKey_EmptyPasswordCounts(t *testing.T) {
	raw, err := crypto.NewPasswordKey("").RawKey()
	require.NoError(t, err)

	empty := sha256.Sum256(nil)
	want := sha256.Sum256(empty[:])
	assert.Equal(t, want[:], raw)

	_, err = crypto.NewCompositeKey().RawKey()
	assert.ErrorIs(t, err, crypto.ErrNoKey)
}

func TestCompositeKey_ChallengeResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	seed := bytes.Repeat([]byte{0x01}, 32)
	responder := mock.NewMockChallengeResponder(ctrl)

	gomock.InOrder(
		responder.EXPECT().Challenge(seed).Return([]byte("response"), nil),
		responder.EXPECT().Challenge(seed).Return(nil, errors.New("token removed")),
	)

	k := crypto.NewPasswordKey("pw").SetChallengeResponder(responder)

	got, err := k.ChallengeResponse(seed)
	require.NoError(t, err)
	want := sha256.Sum256([]byte("response"))
	assert.Equal(t, want[:], got)

	_, err = k.ChallengeResponse(seed)
	assert.ErrorIs(t, err, crypto.ErrChallengeResponse)

	none, err := crypto.NewPasswordKey("pw").ChallengeResponse(seed)
	require.NoError(t, err)
	assert.Nil(t, none)
}

// ── Key files ────────────────────────────────────────────────────────────────

func TestLoadKeyFile_Formats(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 32)
	sum := sha256.Sum256(key)

	v1 := []byte(`<?xml version="1.0" encoding="utf-8"?>
<KeyFile><Meta><Version>1.00</Version></Meta><Key><Data>` + base64.StdEncoding.EncodeToString(key) + `</Data></Key></KeyFile>`)

	v2 := []byte(`<?xml version="1.0" encoding="utf-8"?>
<KeyFile>
	<Meta><Version>2.0</Version></Meta>
	<Key>
		<Data Hash="` + hex.EncodeToString(sum[:4]) + `">
			` + hex.EncodeToString(key[:16]) + `
			` + hex.EncodeToString(key[16:]) + `
		</Data>
	</Key>
</KeyFile>`)

	arbitrary := []byte("just some file contents")
	arbitrarySum := sha256.Sum256(arbitrary)

	tests := []struct {
		name    string
		content []byte
		want    []byte
	}{
		{name: "xml v1", content: v1, want: key},
		{name: "xml v2", content: v2, want: key},
		{name: "raw 32 bytes", content: key, want: key},
		{name: "64 hex chars", content: []byte(hex.EncodeToString(key)), want: key},
		{name: "hashed", content: arbitrary, want: arbitrarySum[:]},
		{name: "malformed xml falls back to hash", content: []byte("<KeyFile>"), want: func() []byte {
			s := sha256.Sum256([]byte("<KeyFile>"))
			return s[:]
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := crypto.LoadKeyFile(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadKeyFile_Errors(t *testing.T) {
	_, err := crypto.LoadKeyFile(nil)
	assert.ErrorIs(t, err, crypto.ErrEmptyKeyFile)

	key := bytes.Repeat([]byte{0x5A}, 32)
	badHash := []byte(`<KeyFile><Meta><Version>2.0</Version></Meta><Key><Data Hash="00000000">` +
		hex.EncodeToString(key) + `</Data></Key></KeyFile>`)
	_, err = crypto.LoadKeyFile(badHash)
	assert.ErrorIs(t, err, crypto.ErrKeyFileHashMismatch)

	badVersion := []byte(`<KeyFile><Meta><Version>3.0</Version></Meta><Key><Data>AA==</Data></Key></KeyFile>`)
	_, err = crypto.LoadKeyFile(badVersion)
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyFile)
}

func TestGenerateKeyFile_Loads(t *testing.T) {
	content, err := crypto.GenerateKeyFile(bytes.NewReader(bytes.Repeat([]byte{0x77}, 32)))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<Version>2.0</Version>")

	key, err := crypto.LoadKeyFile(content)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x77}, 32), key)
}
