package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
)

const backupSuffix = ".bak"

// fileStorage is the local filesystem implementation of [FileStorage].
//
// Save writes to a temporary file in the destination directory, syncs it and
// renames it over the target, so an interrupted save leaves the previous
// file in place. With backups enabled the previous file is first copied to
// "<path>.bak".
type fileStorage struct {
	backup bool
	logger *logger.Logger
}

func NewFileStorage(cfg config.Files, logger *logger.Logger) FileStorage {
	logger.Debug().Bool("backup", cfg.Backup).Msg("creating file storage")
	return &fileStorage{
		backup: cfg.Backup,
		logger: logger,
	}
}

func (s *fileStorage) Load(ctx context.Context, path string) ([]byte, error) {
	log := logger.FromContext(ctx)

	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		log.Err(err).Str("func", "*fileStorage.Load").Str("path", path).Msg("error reading database file")
		return nil, fmt.Errorf("read database file: %w", err)
	}

	log.Debug().Str("func", "*fileStorage.Load").Str("path", path).Int("bytes", len(data)).Msg("database file loaded")
	return data, nil
}

func (s *fileStorage) Save(ctx context.Context, path string, data []byte) error {
	log := logger.FromContext(ctx)

	if path == "" {
		return ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	if s.backup {
		if err := copyFile(path, path+backupSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Err(err).Str("func", "*fileStorage.Save").Str("path", path).Msg("error writing backup")
			return fmt.Errorf("write backup: %w", err)
		}
	}

	if err := writeFileAtomic(path, data); err != nil {
		log.Err(err).Str("func", "*fileStorage.Save").Str("path", path).Msg("error writing database file")
		return err
	}

	log.Debug().Str("func", "*fileStorage.Save").Str("path", path).Int("bytes", len(data)).Msg("database file saved")
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace database file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}
