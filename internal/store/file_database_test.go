package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
)

func TestFileStorage_SaveLoad(t *testing.T) {
	s := NewFileStorage(config.Files{}, logger.Nop())
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "db.kdbx")

	require.NoError(t, s.Save(ctx, path, []byte("first")))
	got, err := s.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	require.NoError(t, s.Save(ctx, path, []byte("second")))
	got, err = s.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = os.Stat(path + backupSuffix)
	assert.True(t, os.IsNotExist(err), "no backup without the setting")
}

func TestFileStorage_Backup(t *testing.T) {
	s := NewFileStorage(config.Files{Backup: true}, logger.Nop())
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.kdbx")

	// first save has nothing to back up
	require.NoError(t, s.Save(ctx, path, []byte("v1")))
	_, err := os.Stat(path + backupSuffix)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Save(ctx, path, []byte("v2")))
	bak, err := os.ReadFile(path + backupSuffix)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), bak)

	cur, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), cur)
}

func TestFileStorage_NoTempFilesLeft(t *testing.T) {
	s := NewFileStorage(config.Files{Backup: true}, logger.Nop())
	dir := t.TempDir()
	path := filepath.Join(dir, "db.kdbx")

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(context.Background(), path, []byte(v)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"db.kdbx", "db.kdbx.bak"}, names)
}

func TestFileStorage_Errors(t *testing.T) {
	s := NewFileStorage(config.Files{}, logger.Nop())
	ctx := context.Background()

	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyPath)
	assert.ErrorIs(t, s.Save(ctx, "", nil), ErrEmptyPath)

	_, err = s.Load(ctx, filepath.Join(t.TempDir(), "missing.kdbx"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Save(cancelled, filepath.Join(t.TempDir(), "x.kdbx"), []byte("x")), context.Canceled)
}
