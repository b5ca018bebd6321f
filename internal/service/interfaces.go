package service

import (
	"context"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/merge"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// DatabaseService is the application layer over database files: it loads
// and stores them through the file storage, runs the KDF-heavy codec off
// the caller's goroutine and journals merges.
type DatabaseService interface {
	// Create returns a new empty database with the configured format
	// settings and history bounds. Nothing is written.
	Create(ctx context.Context, name string) (*models.Database, error)

	// Open loads and decrypts the file at path.
	Open(ctx context.Context, path string, key *crypto.CompositeKey) (*models.Database, error)

	// Save validates db, encrypts it as version and replaces the file at path.
	Save(ctx context.Context, path string, db *models.Database, key *crypto.CompositeKey, version kdbx.FormatVersion) error

	// Merge folds source into target and journals the report. target is
	// left untouched when the merge or the validation of its result fails.
	Merge(ctx context.Context, req MergeRequest, target, source *models.Database) (merge.Report, error)

	// Convert re-encrypts the file at src as version into dst.
	Convert(ctx context.Context, src, dst string, key *crypto.CompositeKey, version kdbx.FormatVersion) error

	// Info reads the outer header of the file at path without credentials.
	Info(ctx context.Context, path string) (DatabaseInfo, error)

	// Journal lists up to limit journaled merges, newest first.
	Journal(ctx context.Context, limit uint64) ([]models.MergeRecord, error)

	// JournalChanges returns the report lines of one journaled merge.
	JournalChanges(ctx context.Context, mergeID int64) ([]models.MergeChange, error)
}
