package store

import "errors"

// Sentinel errors returned by the storages to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrEmptyPath is returned when a file operation is given no path.
	ErrEmptyPath = errors.New("empty database file path")

	// ErrFileNotFound is returned by [FileStorage.Load] when the database
	// file does not exist.
	ErrFileNotFound = errors.New("database file not found")

	// ErrMergeNotSaved is returned when inserting a merge record completes
	// without error but affects no rows.
	ErrMergeNotSaved = errors.New("merge record was not saved")

	// ErrMergeNotFound is returned when the journal holds no merge with the
	// requested id.
	ErrMergeNotFound = errors.New("merge record was not found")
)

// Low-level database operation errors. These are returned (or wrapped) by
// journal methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a SQL query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing an INSERT fails.
	ErrExecutingStatement = errors.New("failed to execute statement")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails.
	ErrScanningRows = errors.New("failed to scan rows")
)
