// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/internal/merge"
	"github.com/MKhiriev/kdbx-keeper/internal/store"
	"github.com/MKhiriev/kdbx-keeper/internal/validators"
	"github.com/MKhiriev/kdbx-keeper/internal/workers"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// MergeRequest names the files a merge came from, for the journal.
type MergeRequest struct {
	TargetPath string
	SourcePath string
}

type databaseService struct {
	files     store.FileStorage
	journal   store.MergeJournal
	validator validators.Validator

	cfg       *config.StructuredConfig
	buildInfo models.AppBuildInfo
	codecOpts []kdbx.Option
	now       func() time.Time

	logger *logger.Logger
}

// NewDatabaseService wires the file storage and merge journal to the
// container codec. codecOpts are passed to every kdbx.Open and kdbx.Save.
func NewDatabaseService(storages *store.Storages, validator validators.Validator, cfg *config.StructuredConfig, buildInfo models.AppBuildInfo, logger *logger.Logger, codecOpts ...kdbx.Option) DatabaseService {
	logger.Debug().Msg("creating database service")
	return &databaseService{
		files:     storages.Files,
		journal:   storages.Journal,
		validator: validator,
		cfg:       cfg,
		buildInfo: buildInfo,
		codecOpts: codecOpts,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *databaseService) Create(ctx context.Context, name string) (*models.Database, error) {
	log := logger.FromContext(ctx)

	settings, err := s.cfg.FormatSettings()
	if err != nil {
		log.Err(err).Str("func", "*databaseService.Create").Msg("invalid format settings")
		return nil, err
	}

	db := models.NewDatabase()
	db.Settings = settings
	db.Meta.DatabaseName = name
	db.Meta.Generator = s.buildInfo.Generator()
	if s.cfg.History.MaxItems != 0 {
		db.Meta.HistoryMaxItems = s.cfg.History.MaxItems
	}
	if s.cfg.History.MaxSize != 0 {
		db.Meta.HistoryMaxSize = s.cfg.History.MaxSize
	}

	log.Debug().Str("func", "*databaseService.Create").Str("name", name).Msg("database created")
	return db, nil
}

func (s *databaseService) Open(ctx context.Context, path string, key *crypto.CompositeKey) (*models.Database, error) {
	log := logger.FromContext(ctx).With().Str("func", "*databaseService.Open").Str("path", path).Logger()

	if key == nil {
		return nil, ErrNoKey
	}

	data, err := s.files.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := s.now()
	db, err := workers.Offload(ctx, func() (*models.Database, error) {
		return kdbx.Open(data, key, s.codecOpts...)
	})
	if err != nil {
		log.Err(err).Msg("error opening database")
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	log.Info().
		Int("groups", db.GroupCount()).
		Int("entries", db.EntryCount()).
		Dur("took", s.now().Sub(start)).
		Msg("database opened")
	return db, nil
}

func (s *databaseService) Save(ctx context.Context, path string, db *models.Database, key *crypto.CompositeKey, version kdbx.FormatVersion) error {
	log := logger.FromContext(ctx).With().Str("func", "*databaseService.Save").Str("path", path).Logger()

	if db == nil {
		return ErrNilDatabase
	}
	if key == nil {
		return ErrNoKey
	}
	if err := s.validate(ctx, db); err != nil {
		log.Err(err).Msg("refusing to save invalid database")
		return err
	}

	// The caller's database only picks up the generator once the file is written.
	out := db.Clone()
	out.Meta.Generator = s.buildInfo.Generator()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := workers.Offload(ctx, func() ([]byte, error) {
		return kdbx.Save(out, key, version, s.codecOpts...)
	})
	if err != nil {
		log.Err(err).Msg("error encrypting database")
		return fmt.Errorf("save %s: %w", path, err)
	}

	if err = s.files.Save(ctx, path, data); err != nil {
		return err
	}
	db.Meta.Generator = out.Meta.Generator

	log.Info().Str("format", version.String()).Int("bytes", len(data)).Msg("database saved")
	return nil
}

func (s *databaseService) Merge(ctx context.Context, req MergeRequest, target, source *models.Database) (merge.Report, error) {
	log := logger.FromContext(ctx).With().Str("func", "*databaseService.Merge").Logger()

	if target == nil || source == nil {
		return merge.Report{}, ErrNilDatabase
	}

	work := target.Clone()
	report, err := merge.Merge(work, source)
	if err != nil {
		log.Err(err).Msg("merge failed")
		return merge.Report{}, err
	}
	if err = s.validate(ctx, work); err != nil {
		log.Err(err).Msg("merge result failed validation")
		return merge.Report{}, err
	}
	*target = *work

	for _, line := range report.Lines() {
		log.Debug().Msg(line)
	}
	log.Info().Bool("modified", report.Modified).Int("changes", len(report.Changes)).Msg("databases merged")

	rec := models.MergeRecord{
		Target:   req.TargetPath,
		Source:   req.SourcePath,
		MergedAt: s.now(),
		Modified: report.Modified,
		Changes:  make([]models.MergeChange, len(report.Changes)),
	}
	for i, c := range report.Changes {
		rec.Changes[i] = models.MergeChange{Seq: i, Action: string(c.Action), Name: c.Name, UUID: c.UUID}
	}
	// the merge stands even when the journal is unavailable
	if _, err = s.journal.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("merge not journaled")
	}

	return report, nil
}

func (s *databaseService) Convert(ctx context.Context, src, dst string, key *crypto.CompositeKey, version kdbx.FormatVersion) error {
	log := logger.FromContext(ctx)

	db, err := s.Open(ctx, src, key)
	if err != nil {
		return err
	}
	if err = kdbx.CheckCompatible(db, version); err != nil {
		log.Err(err).Str("func", "*databaseService.Convert").Str("format", version.String()).Msg("database cannot be converted")
		return err
	}
	return s.Save(ctx, dst, db, key, version)
}

func (s *databaseService) Info(ctx context.Context, path string) (DatabaseInfo, error) {
	data, err := s.files.Load(ctx, path)
	if err != nil {
		return DatabaseInfo{}, err
	}

	h, err := kdbx.ReadHeader(bytes.NewReader(data))
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*databaseService.Info").Str("path", path).Msg("error reading header")
		return DatabaseInfo{}, fmt.Errorf("read %s: %w", path, err)
	}

	return newDatabaseInfo(path, len(data), h), nil
}

func (s *databaseService) Journal(ctx context.Context, limit uint64) ([]models.MergeRecord, error) {
	return s.journal.List(ctx, limit)
}

func (s *databaseService) JournalChanges(ctx context.Context, mergeID int64) ([]models.MergeChange, error) {
	return s.journal.Changes(ctx, mergeID)
}

func (s *databaseService) validate(ctx context.Context, db *models.Database) error {
	if err := s.validator.Validate(ctx, db); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDatabase, err)
	}
	return nil
}

func (s *databaseService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Workers.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Workers.Timeout)
}
