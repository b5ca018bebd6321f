package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
)

type Storages struct {
	Files   FileStorage
	Journal MergeJournal

	db *DB
}

// NewStorages builds the file storage and, when a DSN is configured, opens
// and migrates the merge journal. Without a DSN merges are not journaled.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	s := &Storages{
		Files:   NewFileStorage(cfg.Files, log),
		Journal: nopJournal{},
	}

	if cfg.Journal.DSN == "" {
		return s, nil
	}

	db, err := NewConnectSQLite(ctx, cfg.Journal, log)
	if err != nil {
		return nil, err
	}
	if err = db.Migrate(); err != nil {
		log.Err(err).Str("func", "NewStorages").Msg("error migrating journal")
		return nil, errors.Join(fmt.Errorf("migrate journal: %w", err), db.Close())
	}

	s.db = db
	s.Journal = NewMergeJournal(db, log)
	return s, nil
}

// Close releases the journal connection, if any.
func (s *Storages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
