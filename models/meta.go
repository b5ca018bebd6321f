package models

import (
	"bytes"
	"slices"
	"time"
)

// Defaults for a new database.
const (
	DefaultGenerator              = "kdbx-keeper"
	DefaultHistoryMaxItems        = 10
	DefaultHistoryMaxSize         = 6 * 1024 * 1024
	DefaultMaintenanceHistoryDays = 365
)

// MemoryProtection selects the standard attributes stored protected.
type MemoryProtection struct {
	ProtectTitle    bool
	ProtectUserName bool
	ProtectPassword bool
	ProtectURL      bool
	ProtectNotes    bool
}

// Protects reports whether the standard attribute key is protected.
func (m MemoryProtection) Protects(key string) bool {
	switch key {
	case TitleKey:
		return m.ProtectTitle
	case UserNameKey:
		return m.ProtectUserName
	case PasswordKey:
		return m.ProtectPassword
	case URLKey:
		return m.ProtectURL
	case NotesKey:
		return m.ProtectNotes
	}
	return false
}

// CustomIcon is an icon image referenced by groups and entries.
type CustomIcon struct {
	UUID                 UUID
	Data                 []byte
	Name                 string
	LastModificationTime time.Time
}

func (c CustomIcon) equal(o CustomIcon) bool {
	return c.UUID == o.UUID &&
		c.Name == o.Name &&
		bytes.Equal(c.Data, o.Data) &&
		c.LastModificationTime.Equal(o.LastModificationTime)
}

// DeletedObject is a tombstone: the UUID of an erased group or entry and
// the time it was erased.
type DeletedObject struct {
	UUID         UUID
	DeletionTime time.Time
}

// Meta holds database-wide settings.
type Meta struct {
	Generator string

	// HeaderHash is the SHA-256 of the outer header as recorded by KDBX 3.1
	// writers. It is only meaningful right after reading.
	HeaderHash []byte

	SettingsChanged            time.Time
	DatabaseName               string
	DatabaseNameChanged        time.Time
	DatabaseDescription        string
	DatabaseDescriptionChanged time.Time
	DefaultUserName            string
	DefaultUserNameChanged     time.Time
	MaintenanceHistoryDays     uint32
	Color                      string
	MasterKeyChanged           time.Time
	MasterKeyChangeRec         int64
	MasterKeyChangeForce       int64
	MemoryProtection           MemoryProtection
	CustomIcons                []CustomIcon
	RecycleBinEnabled          bool
	RecycleBinUUID             UUID
	RecycleBinChanged          time.Time
	EntryTemplatesGroup        UUID
	EntryTemplatesGroupChanged time.Time
	LastSelectedGroup          UUID
	LastTopVisibleGroup        UUID

	// HistoryMaxItems and HistoryMaxSize bound entry history; -1 disables
	// a bound.
	HistoryMaxItems int32
	HistoryMaxSize  int64

	CustomData CustomData
}

// NewMeta returns the default metadata of a new database.
func NewMeta(now time.Time) Meta {
	now = NormalizeTime(now)
	return Meta{
		Generator:                  DefaultGenerator,
		SettingsChanged:            now,
		DatabaseNameChanged:        now,
		DatabaseDescriptionChanged: now,
		DefaultUserNameChanged:     now,
		MaintenanceHistoryDays:     DefaultMaintenanceHistoryDays,
		MasterKeyChanged:           now,
		MasterKeyChangeRec:         -1,
		MasterKeyChangeForce:       -1,
		MemoryProtection:           MemoryProtection{ProtectPassword: true},
		RecycleBinEnabled:          true,
		RecycleBinChanged:          now,
		EntryTemplatesGroupChanged: now,
		HistoryMaxItems:            DefaultHistoryMaxItems,
		HistoryMaxSize:             DefaultHistoryMaxSize,
	}
}

// CustomIcon returns the icon with the given id.
func (m *Meta) CustomIcon(id UUID) (*CustomIcon, bool) {
	i := slices.IndexFunc(m.CustomIcons, func(c CustomIcon) bool { return c.UUID == id })
	if i < 0 {
		return nil, false
	}
	return &m.CustomIcons[i], true
}

// Clone deep copies the metadata.
func (m Meta) Clone() Meta {
	m.HeaderHash = bytes.Clone(m.HeaderHash)
	icons := make([]CustomIcon, len(m.CustomIcons))
	for i, c := range m.CustomIcons {
		c.Data = bytes.Clone(c.Data)
		icons[i] = c
	}
	if len(icons) == 0 {
		icons = nil
	}
	m.CustomIcons = icons
	m.CustomData = m.CustomData.Clone()
	return m
}

// Equal compares metadata. HeaderHash is transient and ignored.
func (m *Meta) Equal(o *Meta) bool {
	times := [][2]time.Time{
		{m.SettingsChanged, o.SettingsChanged},
		{m.DatabaseNameChanged, o.DatabaseNameChanged},
		{m.DatabaseDescriptionChanged, o.DatabaseDescriptionChanged},
		{m.DefaultUserNameChanged, o.DefaultUserNameChanged},
		{m.MasterKeyChanged, o.MasterKeyChanged},
		{m.RecycleBinChanged, o.RecycleBinChanged},
		{m.EntryTemplatesGroupChanged, o.EntryTemplatesGroupChanged},
	}
	for _, t := range times {
		if !t[0].Equal(t[1]) {
			return false
		}
	}
	return m.Generator == o.Generator &&
		m.DatabaseName == o.DatabaseName &&
		m.DatabaseDescription == o.DatabaseDescription &&
		m.DefaultUserName == o.DefaultUserName &&
		m.MaintenanceHistoryDays == o.MaintenanceHistoryDays &&
		m.Color == o.Color &&
		m.MasterKeyChangeRec == o.MasterKeyChangeRec &&
		m.MasterKeyChangeForce == o.MasterKeyChangeForce &&
		m.MemoryProtection == o.MemoryProtection &&
		m.RecycleBinEnabled == o.RecycleBinEnabled &&
		m.RecycleBinUUID == o.RecycleBinUUID &&
		m.EntryTemplatesGroup == o.EntryTemplatesGroup &&
		m.LastSelectedGroup == o.LastSelectedGroup &&
		m.LastTopVisibleGroup == o.LastTopVisibleGroup &&
		m.HistoryMaxItems == o.HistoryMaxItems &&
		m.HistoryMaxSize == o.HistoryMaxSize &&
		slices.EqualFunc(m.CustomIcons, o.CustomIcons, CustomIcon.equal) &&
		m.CustomData.Equal(&o.CustomData)
}
