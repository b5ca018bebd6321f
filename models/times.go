package models

import "time"

// Now returns the current time in UTC truncated to whole seconds, the
// precision the file format stores.
func Now() time.Time {
	return NormalizeTime(time.Now())
}

// NormalizeTime converts t to UTC and drops sub-second precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Times are the timestamps shared by groups and entries.
type Times struct {
	CreationTime         time.Time
	LastModificationTime time.Time
	LastAccessTime       time.Time
	ExpiryTime           time.Time
	Expires              bool
	UsageCount           uint32

	// LocationChanged is set whenever the object moves to another group.
	// The merge engine uses it to decide which placement wins.
	LocationChanged time.Time
}

// NewTimes returns times with every timestamp set to now.
func NewTimes(now time.Time) Times {
	now = NormalizeTime(now)
	return Times{
		CreationTime:         now,
		LastModificationTime: now,
		LastAccessTime:       now,
		ExpiryTime:           now,
		LocationChanged:      now,
	}
}

// Equal compares times. Statistics (LastAccessTime, UsageCount) and
// LocationChanged are skipped as requested by opts.
func (t Times) Equal(o Times, opts CompareOption) bool {
	if !t.CreationTime.Equal(o.CreationTime) ||
		!t.LastModificationTime.Equal(o.LastModificationTime) ||
		!t.ExpiryTime.Equal(o.ExpiryTime) ||
		t.Expires != o.Expires {
		return false
	}
	if !opts.has(IgnoreStatistics) {
		if !t.LastAccessTime.Equal(o.LastAccessTime) || t.UsageCount != o.UsageCount {
			return false
		}
	}
	if !opts.has(IgnoreLocation) && !t.LocationChanged.Equal(o.LocationChanged) {
		return false
	}
	return true
}

// CompareOption relaxes the Equal methods of groups and entries.
type CompareOption uint8

const (
	// IgnoreStatistics skips LastAccessTime and UsageCount.
	IgnoreStatistics CompareOption = 1 << iota
	// IgnoreLocation skips LocationChanged and PreviousParentGroup.
	IgnoreLocation
	// IgnoreHistory skips entry history.
	IgnoreHistory

	CompareAll CompareOption = 0
)

func (o CompareOption) has(flag CompareOption) bool {
	return o&flag != 0
}
