// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func validDatabase(t *testing.T) (*models.Database, *models.Entry) {
	t.Helper()
	db := models.NewDatabase()

	icon := models.CustomIcon{UUID: models.NewUUID(), Data: []byte{1}}
	db.Meta.CustomIcons = append(db.Meta.CustomIcons, icon)

	bin := models.NewGroup("Recycle Bin")
	require.NoError(t, db.AddGroup(db.RootUUID(), bin))
	db.Meta.RecycleBinUUID = bin.UUID

	e := models.NewEntry()
	e.Attributes.Set(models.TitleKey, "Mail", false)
	e.CustomIcon = icon.UUID
	e.ForegroundColor = "#A0B1C2"
	require.NoError(t, db.AddEntry(db.RootUUID(), e))
	require.NoError(t, db.UpdateEntry(e.UUID, func(e *models.Entry) {
		e.Attributes.Set(models.PasswordKey, "new", true)
	}))
	return db, e
}

// ---------------------------------------------------------------------------
// TestValidate_Dispatch
// ---------------------------------------------------------------------------

func TestValidate_Dispatch(t *testing.T) {
	v := NewDatabaseValidator()
	ctx := context.Background()
	db, e := validDatabase(t)

	t.Run("unsupported type", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(ctx, "a string"), ErrUnsupportedType)
	})

	t.Run("database", func(t *testing.T) {
		require.NoError(t, v.Validate(ctx, db))
	})

	t.Run("nil database", func(t *testing.T) {
		var nilDB *models.Database
		require.ErrorIs(t, v.Validate(ctx, nilDB), ErrNoRoot)
	})

	t.Run("entry value and pointer", func(t *testing.T) {
		require.NoError(t, v.Validate(ctx, e))
		require.NoError(t, v.Validate(ctx, *e.Clone()))
	})

	t.Run("group value and pointer", func(t *testing.T) {
		g := models.NewGroup("x")
		require.NoError(t, v.Validate(ctx, g))
		require.NoError(t, v.Validate(ctx, *g))
	})

	t.Run("meta", func(t *testing.T) {
		require.NoError(t, v.Validate(ctx, db.Meta))
		require.NoError(t, v.Validate(ctx, &db.Meta))
	})

	t.Run("unknown field", func(t *testing.T) {
		require.ErrorIs(t, v.Validate(ctx, db, "nope"), ErrUnknownField)
		require.ErrorIs(t, v.Validate(ctx, e, "nope"), ErrUnknownField)
	})
}

// ---------------------------------------------------------------------------
// TestValidateDatabase
// ---------------------------------------------------------------------------

func TestValidateDatabase(t *testing.T) {
	v := NewDatabaseValidator()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(db *models.Database, e *models.Entry)
		fields []string
		want   error
	}{
		{
			name:   "no root",
			mutate: func(db *models.Database, _ *models.Entry) { *db = *models.NewEmptyDatabase() },
			want:   ErrNoRoot,
		},
		{
			name:   "missing recycle bin",
			mutate: func(db *models.Database, _ *models.Entry) { db.Meta.RecycleBinUUID = models.NewUUID() },
			fields: []string{FieldMeta},
			want:   ErrUnknownRecycleBin,
		},
		{
			name:   "recycle bin points at entry",
			mutate: func(db *models.Database, e *models.Entry) { db.Meta.RecycleBinUUID = e.UUID },
			fields: []string{FieldMeta},
			want:   ErrUnknownRecycleBin,
		},
		{
			name: "duplicate custom icon",
			mutate: func(db *models.Database, _ *models.Entry) {
				db.Meta.CustomIcons = append(db.Meta.CustomIcons, db.Meta.CustomIcons[0])
			},
			want: ErrDuplicateCustomIcon,
		},
		{
			name:   "history bounds",
			mutate: func(db *models.Database, _ *models.Entry) { db.Meta.HistoryMaxItems = -5 },
			want:   ErrInvalidHistoryBounds,
		},
		{
			name:   "meta color",
			mutate: func(db *models.Database, _ *models.Entry) { db.Meta.Color = "red" },
			want:   ErrInvalidColor,
		},
		{
			name:   "entry color",
			mutate: func(_ *models.Database, e *models.Entry) { e.BackgroundColor = "#12345G" },
			fields: []string{FieldEntries},
			want:   ErrInvalidColor,
		},
		{
			name:   "unknown entry icon",
			mutate: func(_ *models.Database, e *models.Entry) { e.CustomIcon = models.NewUUID() },
			want:   ErrUnknownCustomIcon,
		},
		{
			name: "unknown group icon",
			mutate: func(db *models.Database, _ *models.Entry) {
				db.Root().CustomIcon = models.NewUUID()
			},
			fields: []string{FieldGroups},
			want:   ErrUnknownCustomIcon,
		},
		{
			name:   "history uuid",
			mutate: func(_ *models.Database, e *models.Entry) { e.History[0].UUID = models.NewUUID() },
			want:   ErrHistoryUUIDMismatch,
		},
		{
			name: "nested history",
			mutate: func(_ *models.Database, e *models.Entry) {
				e.History[0].History = []*models.Entry{e.Snapshot()}
			},
			want: ErrNestedHistory,
		},
		{
			name: "empty attachment name",
			mutate: func(_ *models.Database, e *models.Entry) {
				e.Attachments.Set(models.Attachment{Data: []byte("x")})
			},
			want: ErrEmptyAttachmentName,
		},
		{
			name: "tombstone without time",
			mutate: func(db *models.Database, _ *models.Entry) {
				db.DeletedObjects = append(db.DeletedObjects, models.DeletedObject{UUID: models.NewUUID()})
			},
			fields: []string{FieldDeletedObjects},
			want:   ErrInvalidTombstone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, e := validDatabase(t)
			tt.mutate(db, e)
			require.ErrorIs(t, v.Validate(ctx, db, tt.fields...), tt.want)
		})
	}
}

func TestValidateDatabase_DisabledRecycleBinIgnoresUUID(t *testing.T) {
	v := NewDatabaseValidator()
	db, _ := validDatabase(t)
	db.Meta.RecycleBinEnabled = false
	db.Meta.RecycleBinUUID = models.NewUUID()

	assert.NoError(t, v.Validate(context.Background(), db, FieldMeta))
}

func TestValidateDatabase_ScopedFieldsSkipOthers(t *testing.T) {
	v := NewDatabaseValidator()
	db, e := validDatabase(t)
	e.ForegroundColor = "nope"

	assert.NoError(t, v.Validate(context.Background(), db, FieldMeta, FieldGroups))
	assert.ErrorIs(t, v.Validate(context.Background(), db, FieldEntries), ErrInvalidColor)
}

func TestValidEntry_NullUUID(t *testing.T) {
	v := NewDatabaseValidator()
	e := models.NewEntry()
	e.UUID = models.NilUUID
	require.ErrorIs(t, v.Validate(context.Background(), e, FieldUUID), ErrNullUUID)
}

func TestValidColor(t *testing.T) {
	for in, want := range map[string]bool{
		"":         true,
		"#000000":  true,
		"#ffAA00":  true,
		"#fff":     false,
		"000000":   false,
		"#-00000":  false,
		"#0000000": false,
	} {
		assert.Equal(t, want, validColor(in), in)
	}
}
