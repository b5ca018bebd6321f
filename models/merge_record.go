package models

import "time"

// MergeRecord is one merge as kept by the merge journal.
type MergeRecord struct {
	// ID is assigned by the journal.
	ID int64

	// Target and Source are the file paths given to the merge.
	Target string
	Source string

	MergedAt time.Time

	// Modified reports whether the merge changed the target.
	Modified bool

	Changes []MergeChange
}

// MergeChange is one report line of a journaled merge.
type MergeChange struct {
	// Seq is the position of the change within its merge, starting at 0.
	Seq    int
	Action string
	Name   string
	UUID   UUID
}
