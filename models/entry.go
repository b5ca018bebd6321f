// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"bytes"
	"slices"
)

// Standard attribute keys.
const (
	TitleKey    = "Title"
	UserNameKey = "UserName"
	PasswordKey = "Password"
	URLKey      = "URL"
	NotesKey    = "Notes"
)

// StandardKeys lists the attribute keys every entry is expected to carry.
var StandardKeys = []string{TitleKey, UserNameKey, PasswordKey, URLKey, NotesKey}

// Attribute is one named string field of an entry.
type Attribute struct {
	Key   string
	Value string

	// Protected values are XOR-ed with the inner random stream on disk.
	Protected bool
}

// Attributes is the ordered attribute map of an entry. The zero value is
// empty.
type Attributes struct {
	items []Attribute
}

func (a *Attributes) index(key string) int {
	return slices.IndexFunc(a.items, func(it Attribute) bool { return it.Key == key })
}

// Get returns the attribute stored under key.
func (a *Attributes) Get(key string) (Attribute, bool) {
	if i := a.index(key); i >= 0 {
		return a.items[i], true
	}
	return Attribute{}, false
}

// Value returns the value of key or "".
func (a *Attributes) Value(key string) string {
	at, _ := a.Get(key)
	return at.Value
}

// Set inserts or replaces an attribute.
func (a *Attributes) Set(key, value string, protected bool) {
	at := Attribute{Key: key, Value: value, Protected: protected}
	if i := a.index(key); i >= 0 {
		a.items[i] = at
		return
	}
	a.items = append(a.items, at)
}

// Delete removes key.
func (a *Attributes) Delete(key string) {
	if i := a.index(key); i >= 0 {
		a.items = slices.Delete(a.items, i, i+1)
	}
}

// Items returns a copy of the attributes in order.
func (a *Attributes) Items() []Attribute {
	return slices.Clone(a.items)
}

func (a *Attributes) Len() int { return len(a.items) }

// Equal compares attributes regardless of order.
func (a *Attributes) Equal(o *Attributes) bool {
	if a.Len() != o.Len() {
		return false
	}
	for _, it := range a.items {
		other, ok := o.Get(it.Key)
		if !ok || other != it {
			return false
		}
	}
	return true
}

// Attachment is a named binary attached to an entry.
type Attachment struct {
	Name string
	Data []byte

	// Protected marks pool binaries that should stay protected in memory.
	Protected bool
}

// Attachments is the ordered attachment map of an entry.
type Attachments struct {
	items []Attachment
}

func (a *Attachments) index(name string) int {
	return slices.IndexFunc(a.items, func(it Attachment) bool { return it.Name == name })
}

// Get returns the attachment stored under name.
func (a *Attachments) Get(name string) (Attachment, bool) {
	if i := a.index(name); i >= 0 {
		return a.items[i], true
	}
	return Attachment{}, false
}

// Set inserts or replaces an attachment. The data is not copied.
func (a *Attachments) Set(att Attachment) {
	if i := a.index(att.Name); i >= 0 {
		a.items[i] = att
		return
	}
	a.items = append(a.items, att)
}

// Delete removes name.
func (a *Attachments) Delete(name string) {
	if i := a.index(name); i >= 0 {
		a.items = slices.Delete(a.items, i, i+1)
	}
}

// Items returns the attachments in order. Data slices are shared.
func (a *Attachments) Items() []Attachment {
	return slices.Clone(a.items)
}

func (a *Attachments) Len() int { return len(a.items) }

// Clone deep copies the attachments including their data.
func (a Attachments) Clone() Attachments {
	out := Attachments{items: make([]Attachment, len(a.items))}
	for i, it := range a.items {
		it.Data = bytes.Clone(it.Data)
		out.items[i] = it
	}
	if len(a.items) == 0 {
		out.items = nil
	}
	return out
}

// Equal compares names and content regardless of order.
func (a *Attachments) Equal(o *Attachments) bool {
	if a.Len() != o.Len() {
		return false
	}
	for _, it := range a.items {
		other, ok := o.Get(it.Name)
		if !ok || !bytes.Equal(it.Data, other.Data) {
			return false
		}
	}
	return true
}

// AutoTypeAssociation binds a keystroke sequence to a window title pattern.
type AutoTypeAssociation struct {
	Window   string
	Sequence string
}

// AutoType holds the auto-type settings of an entry.
type AutoType struct {
	Enabled         bool
	Obfuscation     int32
	DefaultSequence string
	Associations    []AutoTypeAssociation
}

func (a AutoType) clone() AutoType {
	a.Associations = slices.Clone(a.Associations)
	return a
}

func (a AutoType) equal(o AutoType) bool {
	return a.Enabled == o.Enabled &&
		a.Obfuscation == o.Obfuscation &&
		a.DefaultSequence == o.DefaultSequence &&
		slices.Equal(a.Associations, o.Associations)
}

// Entry is a credential record.
type Entry struct {
	UUID       UUID
	IconID     int32
	CustomIcon UUID

	// ForegroundColor and BackgroundColor are "#RRGGBB" or empty.
	ForegroundColor string
	BackgroundColor string

	OverrideURL string
	Tags        []string
	Times       Times
	Attributes  Attributes
	Attachments Attachments
	AutoType    AutoType
	CustomData  CustomData

	// PreviousParentGroup is the group the entry lived in before its last
	// move.
	PreviousParentGroup UUID

	// QualityCheck is false for entries excluded from password reports.
	QualityCheck bool

	// History holds earlier snapshots, oldest first. Snapshots share the
	// entry's UUID and have no history of their own.
	History []*Entry
}

// NewEntry returns an entry with a fresh UUID, the standard attributes and
// every timestamp set to now.
func NewEntry() *Entry {
	e := &Entry{
		UUID:         NewUUID(),
		Times:        NewTimes(Now()),
		AutoType:     AutoType{Enabled: true},
		QualityCheck: true,
	}
	for _, key := range StandardKeys {
		e.Attributes.Set(key, "", key == PasswordKey)
	}
	return e
}

// Title returns the Title attribute.
func (e *Entry) Title() string { return e.Attributes.Value(TitleKey) }

// Clone deep copies the entry including its history.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := e.cloneContent()
	if len(e.History) > 0 {
		out.History = make([]*Entry, len(e.History))
		for i, h := range e.History {
			out.History[i] = h.cloneContent()
		}
	}
	return out
}

// Snapshot returns a copy of the entry without history, suitable for
// pushing onto a history list.
func (e *Entry) Snapshot() *Entry {
	return e.cloneContent()
}

func (e *Entry) cloneContent() *Entry {
	out := *e
	out.Tags = slices.Clone(e.Tags)
	out.Attributes = Attributes{items: slices.Clone(e.Attributes.items)}
	out.Attachments = e.Attachments.Clone()
	out.AutoType = e.AutoType.clone()
	out.CustomData = e.CustomData.Clone()
	out.History = nil
	return &out
}

// Equal compares two entries. History items are compared pairwise with the
// same options.
func (e *Entry) Equal(o *Entry, opts CompareOption) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.UUID != o.UUID ||
		e.IconID != o.IconID ||
		e.CustomIcon != o.CustomIcon ||
		e.ForegroundColor != o.ForegroundColor ||
		e.BackgroundColor != o.BackgroundColor ||
		e.OverrideURL != o.OverrideURL ||
		e.QualityCheck != o.QualityCheck ||
		!slices.Equal(e.Tags, o.Tags) ||
		!e.Times.Equal(o.Times, opts) ||
		!e.Attributes.Equal(&o.Attributes) ||
		!e.Attachments.Equal(&o.Attachments) ||
		!e.AutoType.equal(o.AutoType) ||
		!e.CustomData.Equal(&o.CustomData) {
		return false
	}
	if !opts.has(IgnoreLocation) && e.PreviousParentGroup != o.PreviousParentGroup {
		return false
	}
	if opts.has(IgnoreHistory) {
		return true
	}
	return slices.EqualFunc(e.History, o.History, func(a, b *Entry) bool {
		return a.Equal(b, opts)
	})
}

// Size approximates the memory footprint of the entry content. History is
// not included.
func (e *Entry) Size() int {
	n := 0
	for _, at := range e.Attributes.items {
		n += len(at.Key) + len(at.Value)
	}
	for _, att := range e.Attachments.items {
		n += len(att.Name) + len(att.Data)
	}
	for _, tag := range e.Tags {
		n += len(tag)
	}
	n += len(e.AutoType.DefaultSequence)
	for _, as := range e.AutoType.Associations {
		n += len(as.Window) + len(as.Sequence)
	}
	n += e.CustomData.Size()
	return n
}

// TruncateHistory drops the oldest history items until at most maxItems
// remain and the cumulative size, counted from the newest item, does not
// exceed maxSize. A negative bound is disabled.
func (e *Entry) TruncateHistory(maxItems int, maxSize int64) bool {
	before := len(e.History)

	if maxItems >= 0 && len(e.History) > maxItems {
		e.History = slices.Delete(e.History, 0, len(e.History)-maxItems)
	}

	if maxSize >= 0 {
		var size int64
		for i := len(e.History) - 1; i >= 0; i-- {
			size += int64(e.History[i].Size())
			if size > maxSize {
				e.History = slices.Delete(e.History, 0, i+1)
				break
			}
		}
	}

	if len(e.History) == 0 {
		e.History = nil
	}
	return len(e.History) != before
}
