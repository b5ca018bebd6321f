package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/models"
)

const (
	mergesTable       = "merges"
	mergeChangesTable = "merge_changes"

	recordAttempts = 3
	recordBackoff  = 50 * time.Millisecond
)

// mergeJournal is the SQLite-backed implementation of [MergeJournal].
// Merges live in the "merges" table and their report lines in
// "merge_changes".
type mergeJournal struct {
	db      *DB
	builder sq.StatementBuilderType
	logger  *logger.Logger
}

// NewMergeJournal constructs a [MergeJournal] on an opened and migrated
// journal database.
func NewMergeJournal(db *DB, logger *logger.Logger) MergeJournal {
	logger.Debug().Msg("creating merge journal")
	return &mergeJournal{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		logger:  logger,
	}
}

// Record inserts the merge row and all of its changes in one transaction.
// A busy or locked database is retried a few times before giving up.
func (j *mergeJournal) Record(ctx context.Context, rec models.MergeRecord) (int64, error) {
	log := logger.FromContext(ctx)

	var (
		id  int64
		err error
	)
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		id, err = j.record(ctx, rec)
		if err == nil || j.classify(err) != Retryable || attempt == recordAttempts {
			break
		}
		log.Warn().Err(err).Str("func", "*mergeJournal.Record").Int("attempt", attempt).Msg("journal busy, retrying")

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * recordBackoff):
		}
	}
	if err != nil {
		log.Err(err).Str("func", "*mergeJournal.Record").Msg("error recording merge")
		return 0, err
	}

	log.Debug().Str("func", "*mergeJournal.Record").Int64("merge_id", id).Int("changes", len(rec.Changes)).Msg("merge recorded")
	return id, nil
}

func (j *mergeJournal) record(ctx context.Context, rec models.MergeRecord) (int64, error) {
	query, args, err := j.builder.
		Insert(mergesTable).
		Columns("target", "source", "merged_at", "modified").
		Values(rec.Target, rec.Source, rec.MergedAt.UTC(), rec.Modified).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrMergeNotSaved
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if len(rec.Changes) > 0 {
		insert := j.builder.
			Insert(mergeChangesTable).
			Columns("merge_id", "seq", "action", "name", "uuid")
		for i, c := range rec.Changes {
			insert = insert.Values(id, i, c.Action, c.Name, uuidText(c.UUID))
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return id, nil
}

func (j *mergeJournal) classify(err error) ErrorClassification {
	if j.db.errorClassificator == nil {
		return NonRetryable
	}
	return j.db.errorClassificator.Classify(err)
}

// List returns merges newest first.
func (j *mergeJournal) List(ctx context.Context, limit uint64) ([]models.MergeRecord, error) {
	log := logger.FromContext(ctx)

	builder := j.builder.
		Select("id", "target", "source", "merged_at", "modified").
		From(mergesTable).
		OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*mergeJournal.List").Msg("error querying merges")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var records []models.MergeRecord
	for rows.Next() {
		var rec models.MergeRecord
		if err = rows.Scan(&rec.ID, &rec.Target, &rec.Source, &rec.MergedAt, &rec.Modified); err != nil {
			log.Err(err).Str("func", "*mergeJournal.List").Msg("error scanning merge row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return records, nil
}

// Changes returns the report lines of one merge. A merge that changed
// nothing has no lines; an unknown id is [ErrMergeNotFound].
func (j *mergeJournal) Changes(ctx context.Context, mergeID int64) ([]models.MergeChange, error) {
	log := logger.FromContext(ctx)

	query, args, err := j.builder.
		Select("id").
		From(mergesTable).
		Where(sq.Eq{"id": mergeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var found int64
	if err = j.db.QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMergeNotFound
		}
		log.Err(err).Str("func", "*mergeJournal.Changes").Msg("error looking up merge")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	query, args, err = j.builder.
		Select("seq", "action", "name", "uuid").
		From(mergeChangesTable).
		Where(sq.Eq{"merge_id": mergeID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*mergeJournal.Changes").Msg("error querying merge changes")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var changes []models.MergeChange
	for rows.Next() {
		var (
			c  models.MergeChange
			id string
		)
		if err = rows.Scan(&c.Seq, &c.Action, &c.Name, &id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		if id != "" {
			if c.UUID, err = models.ParseUUID(id); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
			}
		}
		changes = append(changes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return changes, nil
}

func uuidText(id models.UUID) string {
	if id.IsNil() {
		return ""
	}
	return id.String()
}

// nopJournal is used when no journal DSN is configured.
type nopJournal struct{}

func (nopJournal) Record(context.Context, models.MergeRecord) (int64, error) {
	return 0, nil
}

func (nopJournal) List(context.Context, uint64) ([]models.MergeRecord, error) {
	return nil, nil
}

func (nopJournal) Changes(context.Context, int64) ([]models.MergeChange, error) {
	return nil, ErrMergeNotFound
}
