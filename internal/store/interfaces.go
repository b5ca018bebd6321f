// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// FileStorage reads and writes serialized database files.
type FileStorage interface {
	// Load returns the whole file at path.
	Load(ctx context.Context, path string) ([]byte, error)

	// Save replaces the file at path with data. A reader of path sees either
	// the old or the new content, never a partial write.
	Save(ctx context.Context, path string, data []byte) error
}

// MergeJournal keeps a history of merges and the changes each one applied.
type MergeJournal interface {
	// Record stores rec with its changes and returns the assigned id.
	Record(ctx context.Context, rec models.MergeRecord) (int64, error)

	// List returns up to limit merges, newest first, without their changes.
	// A zero limit returns every merge.
	List(ctx context.Context, limit uint64) ([]models.MergeRecord, error)

	// Changes returns the changes of one merge in report order.
	Changes(ctx context.Context, mergeID int64) ([]models.MergeChange, error)
}
