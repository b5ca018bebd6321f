// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
)

// FormatSettings are the container parameters carried from Open to Save.
type FormatSettings struct {
	Cipher      crypto.CipherID
	Compression bool
	KDF         crypto.KDF
}

// DefaultFormatSettings returns AES-256, gzip and Argon2d.
func DefaultFormatSettings() FormatSettings {
	return FormatSettings{
		Cipher:      crypto.CipherAES256,
		Compression: true,
		KDF:         crypto.NewArgon2KDF(crypto.Argon2d),
	}
}

// Database is the in-memory tree of a password database. Groups and
// entries live in arena maps keyed by UUID; the parent table maps every
// non-root object to its group.
type Database struct {
	Meta           Meta
	DeletedObjects []DeletedObject

	// PublicCustomData is stored unencrypted in KDBX 4 headers.
	PublicCustomData *variantmap.Map

	Settings FormatSettings

	root    UUID
	groups  map[UUID]*Group
	entries map[UUID]*Entry
	parents map[UUID]UUID
	clock   func() time.Time
}

// NewDatabase returns a database with a root group and default metadata.
func NewDatabase() *Database {
	db := newEmpty()
	db.Meta = NewMeta(db.now())
	db.Settings = DefaultFormatSettings()

	root := NewGroup("Root")
	root.Times = NewTimes(db.now())
	db.SetRoot(root)
	return db
}

// NewEmptyDatabase returns a database without root group. Decoders fill it
// with SetRoot, AddGroup and AddEntry.
func NewEmptyDatabase() *Database {
	return newEmpty()
}

func newEmpty() *Database {
	return &Database{
		groups:  make(map[UUID]*Group),
		entries: make(map[UUID]*Entry),
		parents: make(map[UUID]UUID),
	}
}

// SetClock replaces the time source used for timestamps and tombstones.
func (db *Database) SetClock(clock func() time.Time) {
	db.clock = clock
}

func (db *Database) now() time.Time {
	if db.clock != nil {
		return NormalizeTime(db.clock())
	}
	return Now()
}

// SetRoot installs g as the root group, dropping any existing tree.
func (db *Database) SetRoot(g *Group) {
	clear(db.groups)
	clear(db.entries)
	clear(db.parents)
	g.groups, g.entries = nil, nil
	db.root = g.UUID
	db.groups[g.UUID] = g
}

// ── Lookups ─────────────────────────────────────────────────────────────────

// RootUUID returns the id of the root group.
func (db *Database) RootUUID() UUID { return db.root }

// Root returns the root group or nil for an empty database.
func (db *Database) Root() *Group { return db.groups[db.root] }

// Group returns the group with the given id.
func (db *Database) Group(id UUID) (*Group, bool) {
	g, ok := db.groups[id]
	return g, ok
}

// Entry returns the entry with the given id.
func (db *Database) Entry(id UUID) (*Entry, bool) {
	e, ok := db.entries[id]
	return e, ok
}

// ParentOf returns the group containing the object id.
func (db *Database) ParentOf(id UUID) (UUID, bool) {
	p, ok := db.parents[id]
	return p, ok
}

// Contains reports whether id names a live group or entry.
func (db *Database) Contains(id UUID) bool {
	_, g := db.groups[id]
	_, e := db.entries[id]
	return g || e
}

// GroupCount and EntryCount return the arena sizes.
func (db *Database) GroupCount() int { return len(db.groups) }

func (db *Database) EntryCount() int { return len(db.entries) }

// GroupsRecursive returns the group id and all its descendants in
// pre-order.
func (db *Database) GroupsRecursive(id UUID) []*Group {
	g, ok := db.groups[id]
	if !ok {
		return nil
	}
	out := []*Group{g}
	for _, child := range g.groups {
		out = append(out, db.GroupsRecursive(child)...)
	}
	return out
}

// EntriesRecursive returns the entries of the group id and its
// descendants in pre-order.
func (db *Database) EntriesRecursive(id UUID) []*Entry {
	var out []*Entry
	for _, g := range db.GroupsRecursive(id) {
		for _, eid := range g.entries {
			out = append(out, db.entries[eid])
		}
	}
	return out
}

// IsAncestor reports whether group ancestor is id or one of its parents.
func (db *Database) IsAncestor(ancestor, id UUID) bool {
	for cur, ok := id, true; ok; cur, ok = db.parents[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// ── Mutations ───────────────────────────────────────────────────────────────

func (db *Database) checkNew(parent, id UUID) error {
	if id.IsNil() {
		return ErrNullUUID
	}
	if db.Contains(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateUUID, id)
	}
	if _, ok := db.groups[parent]; !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, parent)
	}
	return nil
}

// AddGroup appends g, which must have no children yet, to parent.
func (db *Database) AddGroup(parent UUID, g *Group) error {
	if err := db.checkNew(parent, g.UUID); err != nil {
		return err
	}
	g.groups, g.entries = nil, nil
	db.groups[g.UUID] = g
	db.parents[g.UUID] = parent
	p := db.groups[parent]
	p.groups = append(p.groups, g.UUID)
	return nil
}

// AddEntry appends e to parent.
func (db *Database) AddEntry(parent UUID, e *Entry) error {
	if err := db.checkNew(parent, e.UUID); err != nil {
		return err
	}
	db.entries[e.UUID] = e
	db.parents[e.UUID] = parent
	p := db.groups[parent]
	p.entries = append(p.entries, e.UUID)
	return nil
}

// MoveGroup re-parents group id under newParent.
func (db *Database) MoveGroup(id, newParent UUID) error {
	g, ok := db.groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	if id == db.root {
		return ErrRootGroup
	}
	if _, ok := db.groups[newParent]; !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, newParent)
	}
	if db.IsAncestor(id, newParent) {
		return fmt.Errorf("%w: %s under %s", ErrCycle, id, newParent)
	}

	old := db.parents[id]
	if old == newParent {
		return nil
	}
	db.unlinkGroup(old, id)
	db.groups[newParent].groups = append(db.groups[newParent].groups, id)
	db.parents[id] = newParent

	g.PreviousParentGroup = old
	g.Times.LocationChanged = db.now()
	return nil
}

// MoveEntry re-parents entry id under newParent.
func (db *Database) MoveEntry(id, newParent UUID) error {
	e, ok := db.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	if _, ok := db.groups[newParent]; !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, newParent)
	}

	old := db.parents[id]
	if old == newParent {
		return nil
	}
	db.unlinkEntry(old, id)
	db.groups[newParent].entries = append(db.groups[newParent].entries, id)
	db.parents[id] = newParent

	e.PreviousParentGroup = old
	e.Times.LocationChanged = db.now()
	return nil
}

// DeleteEntry erases entry id and records a tombstone.
func (db *Database) DeleteEntry(id UUID) error {
	if err := db.RemoveEntry(id); err != nil {
		return err
	}
	db.addTombstone(id)
	return nil
}

// DeleteGroup erases group id with its whole subtree and records a
// tombstone for every erased object.
func (db *Database) DeleteGroup(id UUID) error {
	if _, ok := db.groups[id]; !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	if id == db.root {
		return ErrRootGroup
	}

	subtree := db.GroupsRecursive(id)
	for i := len(subtree) - 1; i >= 0; i-- {
		g := subtree[i]
		for _, eid := range g.Entries() {
			if err := db.DeleteEntry(eid); err != nil {
				return err
			}
		}
		if err := db.RemoveGroup(g.UUID); err != nil {
			return err
		}
		db.addTombstone(g.UUID)
	}
	return nil
}

// RemoveEntry erases entry id without recording a tombstone.
func (db *Database) RemoveEntry(id UUID) error {
	if _, ok := db.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	db.unlinkEntry(db.parents[id], id)
	delete(db.entries, id)
	delete(db.parents, id)
	return nil
}

// RemoveGroup erases the empty group id without recording a tombstone.
func (db *Database) RemoveGroup(id UUID) error {
	g, ok := db.groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	if id == db.root {
		return ErrRootGroup
	}
	if !g.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrGroupNotEmpty, id)
	}
	db.unlinkGroup(db.parents[id], id)
	delete(db.groups, id)
	delete(db.parents, id)
	return nil
}

// UpdateEntry pushes a snapshot of entry id onto its history, applies fn,
// bumps the modification time and trims the history to the meta bounds.
func (db *Database) UpdateEntry(id UUID, fn func(e *Entry)) error {
	e, ok := db.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	snapshot := e.Snapshot()
	fn(e)
	e.UUID = id
	e.Times.LastModificationTime = db.now()
	e.History = append(e.History, snapshot)
	e.TruncateHistory(int(db.Meta.HistoryMaxItems), db.Meta.HistoryMaxSize)
	return nil
}

func (db *Database) addTombstone(id UUID) {
	db.DeletedObjects = append(db.DeletedObjects, DeletedObject{UUID: id, DeletionTime: db.now()})
}

func (db *Database) unlinkGroup(parent, id UUID) {
	if p, ok := db.groups[parent]; ok {
		p.groups = slices.DeleteFunc(p.groups, func(u UUID) bool { return u == id })
	}
}

func (db *Database) unlinkEntry(parent, id UUID) {
	if p, ok := db.groups[parent]; ok {
		p.entries = slices.DeleteFunc(p.entries, func(u UUID) bool { return u == id })
	}
}

// ── Copy and comparison ─────────────────────────────────────────────────────

// Clone returns a deep copy sharing nothing with db.
func (db *Database) Clone() *Database {
	out := newEmpty()
	out.Meta = db.Meta.Clone()
	out.DeletedObjects = slices.Clone(db.DeletedObjects)
	out.PublicCustomData = db.PublicCustomData.Clone()
	out.Settings = db.Settings
	if db.Settings.KDF != nil {
		out.Settings.KDF = db.Settings.KDF.Clone()
	}
	out.root = db.root
	out.clock = db.clock
	for id, g := range db.groups {
		out.groups[id] = g.clone()
	}
	for id, e := range db.entries {
		out.entries[id] = e.Clone()
	}
	for id, p := range db.parents {
		out.parents[id] = p
	}
	return out
}

// Equal compares two trees: metadata, every group and entry with its
// position, and the tombstones. Format settings are not compared.
func (db *Database) Equal(o *Database) bool {
	if db.root != o.root ||
		len(db.groups) != len(o.groups) ||
		len(db.entries) != len(o.entries) ||
		!db.Meta.Equal(&o.Meta) ||
		!db.PublicCustomData.Equal(o.PublicCustomData) {
		return false
	}
	if !slices.EqualFunc(db.DeletedObjects, o.DeletedObjects, func(a, b DeletedObject) bool {
		return a.UUID == b.UUID && a.DeletionTime.Equal(b.DeletionTime)
	}) {
		return false
	}
	for id, g := range db.groups {
		og, ok := o.groups[id]
		if !ok || !g.Equal(og, CompareAll) ||
			!slices.Equal(g.groups, og.groups) ||
			!slices.Equal(g.entries, og.entries) {
			return false
		}
	}
	for id, e := range db.entries {
		oe, ok := o.entries[id]
		if !ok || !e.Equal(oe, CompareAll) {
			return false
		}
	}
	return true
}
