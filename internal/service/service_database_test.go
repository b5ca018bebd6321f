// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/internal/merge"
	"github.com/MKhiriev/kdbx-keeper/internal/mock"
	"github.com/MKhiriev/kdbx-keeper/internal/store"
	"github.com/MKhiriev/kdbx-keeper/internal/validators"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testDeps struct {
	files   *mock.MockFileStorage
	journal *mock.MockMergeJournal
}

func newTestService(t *testing.T, validator validators.Validator, cfg *config.StructuredConfig) (*databaseService, testDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := testDeps{
		files:   mock.NewMockFileStorage(ctrl),
		journal: mock.NewMockMergeJournal(ctrl),
	}
	if validator == nil {
		validator = validators.NewDatabaseValidator()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	svc := NewDatabaseService(
		&store.Storages{Files: deps.files, Journal: deps.journal},
		validator,
		cfg,
		models.NewAppBuildInfo("1.2.3", "", ""),
		logger.Nop(),
	).(*databaseService)
	svc.now = func() time.Time { return fixedNow }
	return svc, deps
}

func fastSettings() models.FormatSettings {
	return models.FormatSettings{
		Cipher:      crypto.CipherAES256,
		Compression: true,
		KDF:         &crypto.AESKDF{Seed: make([]byte, 32), Rounds: 16},
	}
}

func sampleDB(t *testing.T) (*models.Database, models.UUID) {
	t.Helper()
	db := models.NewDatabase()
	db.Settings = fastSettings()
	db.Meta.DatabaseName = "Family"

	bank := models.NewEntry()
	bank.Attributes.Set(models.TitleKey, "Bank", false)
	bank.Attributes.Set(models.PasswordKey, "hunter2", true)
	require.NoError(t, db.AddEntry(db.RootUUID(), bank))
	return db, bank.UUID
}

func key() *crypto.CompositeKey {
	return crypto.NewPasswordKey("s3cret")
}

// memFiles wires the file storage mock to an in-memory map.
func memFiles(deps testDeps) map[string][]byte {
	files := map[string][]byte{}
	deps.files.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string, data []byte) error {
			files[path] = data
			return nil
		}).AnyTimes()
	deps.files.EXPECT().Load(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, path string) ([]byte, error) {
			data, ok := files[path]
			if !ok {
				return nil, store.ErrFileNotFound
			}
			return data, nil
		}).AnyTimes()
	return files
}

// ─────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────

func TestCreate_AppliesConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Format.Cipher = "chacha20"
	cfg.KDF.Name = "aes"
	cfg.KDF.Rounds = 1000
	cfg.History.MaxItems = 3
	cfg.History.MaxSize = -1

	svc, _ := newTestService(t, nil, cfg)

	db, err := svc.Create(context.Background(), "Work")
	require.NoError(t, err)

	assert.Equal(t, "Work", db.Meta.DatabaseName)
	assert.Equal(t, "kdbx-keeper 1.2.3", db.Meta.Generator)
	assert.Equal(t, crypto.CipherChaCha20, db.Settings.Cipher)
	require.IsType(t, &crypto.AESKDF{}, db.Settings.KDF)
	assert.Equal(t, uint64(1000), db.Settings.KDF.(*crypto.AESKDF).Rounds)
	assert.Equal(t, int32(3), db.Meta.HistoryMaxItems)
	assert.Equal(t, int64(-1), db.Meta.HistoryMaxSize)
}

func TestCreate_KeepsHistoryDefaults(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	db, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(models.DefaultHistoryMaxItems), db.Meta.HistoryMaxItems)
	assert.Equal(t, int64(models.DefaultHistoryMaxSize), db.Meta.HistoryMaxSize)
}

func TestCreate_InvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Format.Cipher = "rot13"

	svc, _ := newTestService(t, nil, cfg)

	_, err := svc.Create(context.Background(), "x")
	assert.ErrorIs(t, err, config.ErrInvalidFormatConfigs)
}

// ─────────────────────────────────────────────
// Save / Open
// ─────────────────────────────────────────────

func TestSaveOpen_RoundTrip(t *testing.T) {
	for _, version := range []kdbx.FormatVersion{kdbx.Gen4, kdbx.Gen3} {
		t.Run(version.String(), func(t *testing.T) {
			svc, deps := newTestService(t, nil, nil)
			files := memFiles(deps)
			ctx := context.Background()

			db, bank := sampleDB(t)
			require.NoError(t, svc.Save(ctx, "family.kdbx", db, key(), version))
			require.Contains(t, files, "family.kdbx")
			assert.Equal(t, "kdbx-keeper 1.2.3", db.Meta.Generator)

			got, err := svc.Open(ctx, "family.kdbx", key())
			require.NoError(t, err)
			e, ok := got.Entry(bank)
			require.True(t, ok)
			assert.Equal(t, "hunter2", e.Attributes.Value(models.PasswordKey))
			assert.Equal(t, "Family", got.Meta.DatabaseName)
		})
	}
}

func TestSave_Rejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mock.NewMockValidator(ctrl)
	svc, _ := newTestService(t, validator, nil)
	ctx := context.Background()
	db, _ := sampleDB(t)

	// files.Save must never be reached
	assert.ErrorIs(t, svc.Save(ctx, "x.kdbx", nil, key(), kdbx.Gen4), ErrNilDatabase)
	assert.ErrorIs(t, svc.Save(ctx, "x.kdbx", db, nil, kdbx.Gen4), ErrNoKey)

	validator.EXPECT().Validate(gomock.Any(), db).Return(validators.ErrNoRoot)
	err := svc.Save(ctx, "x.kdbx", db, key(), kdbx.Gen4)
	assert.ErrorIs(t, err, ErrInvalidDatabase)
	assert.ErrorIs(t, err, validators.ErrNoRoot)
}

func TestSave_CodecError(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	db, _ := sampleDB(t)
	db.Settings.KDF = crypto.NewArgon2KDF(crypto.Argon2id)

	err := svc.Save(context.Background(), "x.kdbx", db, key(), kdbx.Gen3)
	assert.ErrorIs(t, err, kdbx.ErrIncompatibleFormat)
}

func TestSave_StorageError(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	boom := errors.New("disk full")
	deps.files.EXPECT().Save(gomock.Any(), "x.kdbx", gomock.Any()).Return(boom)

	db, _ := sampleDB(t)
	db.Meta.Generator = "KeePassXC"
	before := db.Clone()

	assert.ErrorIs(t, svc.Save(context.Background(), "x.kdbx", db, key(), kdbx.Gen4), boom)
	assert.Equal(t, "KeePassXC", db.Meta.Generator)
	assert.True(t, before.Equal(db))
}

func TestOpen_Errors(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	files := memFiles(deps)
	ctx := context.Background()

	db, _ := sampleDB(t)
	require.NoError(t, svc.Save(ctx, "family.kdbx", db, key(), kdbx.Gen4))

	_, err := svc.Open(ctx, "family.kdbx", nil)
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = svc.Open(ctx, "family.kdbx", crypto.NewPasswordKey("wrong"))
	assert.ErrorIs(t, err, kdbx.ErrCredentials)
	assert.True(t, kdbx.IsCredentialsError(err))

	_, err = svc.Open(ctx, "missing.kdbx", key())
	assert.ErrorIs(t, err, store.ErrFileNotFound)

	files["junk.kdbx"] = []byte("not a database")
	_, err = svc.Open(ctx, "junk.kdbx", key())
	assert.ErrorIs(t, err, kdbx.ErrFormat)
}

// ─────────────────────────────────────────────
// Merge
// ─────────────────────────────────────────────

func TestMerge_JournalsReport(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	target, _ := sampleDB(t)
	source := target.Clone()

	added := models.NewEntry()
	added.Attributes.Set(models.TitleKey, "Mail", false)
	require.NoError(t, source.AddEntry(source.RootUUID(), added))

	req := MergeRequest{TargetPath: "main.kdbx", SourcePath: "laptop.kdbx"}
	deps.journal.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec models.MergeRecord) (int64, error) {
			assert.Equal(t, "main.kdbx", rec.Target)
			assert.Equal(t, "laptop.kdbx", rec.Source)
			assert.Equal(t, fixedNow, rec.MergedAt)
			assert.True(t, rec.Modified)
			require.NotEmpty(t, rec.Changes)
			created := false
			for i, c := range rec.Changes {
				assert.Equal(t, i, c.Seq)
				if c.UUID == added.UUID && c.Action == string(merge.ActionCreateMissing) {
					created = true
				}
			}
			assert.True(t, created, "entry creation not journaled")
			return 1, nil
		})

	report, err := svc.Merge(context.Background(), req, target, source)
	require.NoError(t, err)
	assert.True(t, report.Modified)

	_, ok := target.Entry(added.UUID)
	assert.True(t, ok)
}

func TestMerge_JournalFailureKeepsMerge(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	target, _ := sampleDB(t)
	source := target.Clone()
	require.NoError(t, source.AddEntry(source.RootUUID(), models.NewEntry()))

	deps.journal.EXPECT().Record(gomock.Any(), gomock.Any()).Return(int64(0), store.ErrMergeNotSaved)

	report, err := svc.Merge(context.Background(), MergeRequest{}, target, source)
	require.NoError(t, err)
	assert.True(t, report.Modified)
	assert.Equal(t, 2, target.EntryCount())
}

func TestMerge_InvalidResultLeavesTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mock.NewMockValidator(ctrl)
	svc, _ := newTestService(t, validator, nil)

	target, _ := sampleDB(t)
	source := target.Clone()
	require.NoError(t, source.AddEntry(source.RootUUID(), models.NewEntry()))
	before := target.Clone()

	validator.EXPECT().Validate(gomock.Any(), gomock.Any()).Return(validators.ErrNullUUID)

	_, err := svc.Merge(context.Background(), MergeRequest{}, target, source)
	assert.ErrorIs(t, err, ErrInvalidDatabase)
	assert.True(t, before.Equal(target))
}

func TestMerge_Errors(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	target, _ := sampleDB(t)
	unrelated, _ := sampleDB(t)

	_, err := svc.Merge(context.Background(), MergeRequest{}, target, nil)
	assert.ErrorIs(t, err, ErrNilDatabase)

	_, err = svc.Merge(context.Background(), MergeRequest{}, target, unrelated)
	assert.ErrorIs(t, err, merge.ErrNoCommonLineage)
}

// ─────────────────────────────────────────────
// Convert / Info
// ─────────────────────────────────────────────

func TestConvert_Gen4ToGen3(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	files := memFiles(deps)
	ctx := context.Background()

	db, bank := sampleDB(t)
	require.NoError(t, svc.Save(ctx, "new.kdbx", db, key(), kdbx.Gen4))

	require.NoError(t, svc.Convert(ctx, "new.kdbx", "old.kdbx", key(), kdbx.Gen3))
	require.Contains(t, files, "old.kdbx")

	info, err := svc.Info(ctx, "old.kdbx")
	require.NoError(t, err)
	assert.Equal(t, kdbx.Gen3, info.Format)
	assert.Equal(t, header.Version31, info.Version)

	got, err := svc.Open(ctx, "old.kdbx", key())
	require.NoError(t, err)
	_, ok := got.Entry(bank)
	assert.True(t, ok)
}

func TestConvert_Incompatible(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	files := memFiles(deps)
	ctx := context.Background()

	db, _ := sampleDB(t)
	kdf := crypto.NewArgon2KDF(crypto.Argon2id)
	kdf.Memory = 64 * 1024
	kdf.Iterations = 2
	kdf.Parallelism = 1
	db.Settings.KDF = kdf
	require.NoError(t, svc.Save(ctx, "new.kdbx", db, key(), kdbx.Gen4))

	err := svc.Convert(ctx, "new.kdbx", "old.kdbx", key(), kdbx.Gen3)
	assert.ErrorIs(t, err, kdbx.ErrIncompatibleFormat)
	assert.NotContains(t, files, "old.kdbx")
}

func TestInfo(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	files := memFiles(deps)
	ctx := context.Background()

	db, _ := sampleDB(t)
	db.Settings.Cipher = crypto.CipherTwofish
	db.Settings.Compression = false
	require.NoError(t, svc.Save(ctx, "family.kdbx", db, key(), kdbx.Gen4))

	info, err := svc.Info(ctx, "family.kdbx")
	require.NoError(t, err)
	assert.Equal(t, kdbx.Gen4, info.Format)
	assert.Equal(t, crypto.CipherTwofish, info.Cipher)
	assert.False(t, info.Compression)
	assert.Equal(t, len(files["family.kdbx"]), info.Size)
	assert.Contains(t, info.String(), "AES-KDF, 16 rounds")

	files["junk.kdbx"] = []byte("PK\x03\x04")
	_, err = svc.Info(ctx, "junk.kdbx")
	assert.ErrorIs(t, err, kdbx.ErrFormat)
}

// ─────────────────────────────────────────────
// Journal
// ─────────────────────────────────────────────

func TestJournal_Passthrough(t *testing.T) {
	svc, deps := newTestService(t, nil, nil)
	ctx := context.Background()

	records := []models.MergeRecord{{ID: 2}, {ID: 1}}
	deps.journal.EXPECT().List(ctx, uint64(5)).Return(records, nil)
	deps.journal.EXPECT().Changes(ctx, int64(2)).Return(nil, store.ErrMergeNotFound)

	got, err := svc.Journal(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	_, err = svc.JournalChanges(ctx, 2)
	assert.ErrorIs(t, err, store.ErrMergeNotFound)
}
