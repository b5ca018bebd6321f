// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package merge reconciles two databases that share a root group.
//
// Precedence: a tombstone beats every edit made before the deletion, a
// newer timestamp beats an older one, and history is the union of both
// sides. When both sides were modified at the same second the target wins
// and the source state is kept as a history snapshot.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// ErrNoCommonLineage is returned when the root groups differ.
var ErrNoCommonLineage = errors.New("databases do not share a root group")

const entryContent = models.IgnoreStatistics | models.IgnoreLocation | models.IgnoreHistory

type merger struct {
	work   *models.Database
	source *models.Database
	report Report

	// tombstones is the union of both deletion lists, earliest time per
	// UUID, in target-then-source order.
	tombstones []models.DeletedObject
	deletedAt  map[models.UUID]time.Time
}

// Merge folds source into target. target is only replaced once every
// decision succeeded; source is never modified. Pointers into target
// obtained before the call are stale afterwards.
func Merge(target, source *models.Database) (Report, error) {
	if target.RootUUID() != source.RootUUID() {
		return Report{}, fmt.Errorf("%w: %s and %s", ErrNoCommonLineage, target.RootUUID(), source.RootUUID())
	}

	m := &merger{
		work:   target.Clone(),
		source: source,
	}
	m.unionTombstones()

	srcRoot, dstRoot := source.Root(), m.work.Root()
	if srcRoot.Times.LastModificationTime.After(dstRoot.Times.LastModificationTime) {
		dstRoot.CopyPropertiesFrom(srcRoot)
		m.report.add(ActionOverwriteGroup, dstRoot.Name, dstRoot.UUID)
	}
	if err := m.mergeGroup(srcRoot, dstRoot); err != nil {
		return Report{}, err
	}
	if err := m.mergeDeletions(target.DeletedObjects); err != nil {
		return Report{}, err
	}
	m.mergeMetadata()

	*target = *m.work
	return m.report, nil
}

func (m *merger) unionTombstones() {
	m.deletedAt = make(map[models.UUID]time.Time)
	for _, list := range [][]models.DeletedObject{m.work.DeletedObjects, m.source.DeletedObjects} {
		for _, d := range list {
			at, seen := m.deletedAt[d.UUID]
			if !seen {
				m.tombstones = append(m.tombstones, d)
				m.deletedAt[d.UUID] = d.DeletionTime
				continue
			}
			if d.DeletionTime.Before(at) {
				m.deletedAt[d.UUID] = d.DeletionTime
			}
		}
	}
	for i := range m.tombstones {
		m.tombstones[i].DeletionTime = m.deletedAt[m.tombstones[i].UUID]
	}
}

// killed reports whether a tombstone erases an object last modified at
// lastMod.
func (m *merger) killed(id models.UUID, lastMod time.Time) bool {
	at, ok := m.deletedAt[id]
	return ok && !lastMod.After(at)
}

// deadSubtree reports whether every object of the source group id is
// killed by a tombstone, so creating it would only erase it again.
func (m *merger) deadSubtree(id models.UUID) bool {
	for _, g := range m.source.GroupsRecursive(id) {
		if !m.killed(g.UUID, g.Times.LastModificationTime) {
			return false
		}
	}
	for _, e := range m.source.EntriesRecursive(id) {
		if !m.killed(e.UUID, e.Times.LastModificationTime) {
			return false
		}
	}
	return true
}

// ── Tree walk ───────────────────────────────────────────────────────────────

func (m *merger) mergeGroup(src, dst *models.Group) error {
	for _, id := range src.Entries() {
		srcEntry, _ := m.source.Entry(id)
		dstEntry, exists := m.work.Entry(id)

		if !exists {
			if m.killed(id, srcEntry.Times.LastModificationTime) {
				continue
			}
			if err := m.work.AddEntry(dst.UUID, srcEntry.Clone()); err != nil {
				return fmt.Errorf("create entry %s: %w", id, err)
			}
			m.report.add(ActionCreateMissing, srcEntry.Title(), id)
			continue
		}

		parent, _ := m.work.ParentOf(id)
		if parent != dst.UUID && srcEntry.Times.LocationChanged.After(dstEntry.Times.LocationChanged) {
			if err := m.work.MoveEntry(id, dst.UUID); err != nil {
				return fmt.Errorf("relocate entry %s: %w", id, err)
			}
			dstEntry.Times.LocationChanged = srcEntry.Times.LocationChanged
			dstEntry.PreviousParentGroup = srcEntry.PreviousParentGroup
			m.report.add(ActionRelocate, dstEntry.Title(), id)
		}
		m.mergeEntry(dstEntry, srcEntry)
	}

	for _, id := range src.Groups() {
		srcChild, _ := m.source.Group(id)
		dstChild, exists := m.work.Group(id)

		if !exists {
			if m.deadSubtree(id) {
				continue
			}
			dstChild = srcChild.CloneProperties()
			if err := m.work.AddGroup(dst.UUID, dstChild); err != nil {
				return fmt.Errorf("create group %s: %w", id, err)
			}
			m.report.add(ActionCreateMissing, srcChild.Name, id)
		} else {
			m.relocateGroup(srcChild, dstChild, dst.UUID)
			if srcChild.Times.LastModificationTime.After(dstChild.Times.LastModificationTime) {
				loc, prev := dstChild.Times.LocationChanged, dstChild.PreviousParentGroup
				dstChild.CopyPropertiesFrom(srcChild)
				dstChild.Times.LocationChanged, dstChild.PreviousParentGroup = loc, prev
				m.report.add(ActionOverwriteGroup, dstChild.Name, id)
			}
		}

		if err := m.mergeGroup(srcChild, dstChild); err != nil {
			return err
		}
	}
	return nil
}

// relocateGroup moves dst under parent when the source placement is newer.
// A move that would create a cycle in the target is skipped.
func (m *merger) relocateGroup(src, dst *models.Group, parent models.UUID) {
	current, _ := m.work.ParentOf(dst.UUID)
	if current == parent || !src.Times.LocationChanged.After(dst.Times.LocationChanged) {
		return
	}
	if err := m.work.MoveGroup(dst.UUID, parent); err != nil {
		return
	}
	dst.Times.LocationChanged = src.Times.LocationChanged
	dst.PreviousParentGroup = src.PreviousParentGroup
	m.report.add(ActionRelocate, dst.Name, dst.UUID)
}

// ── Entries and history ─────────────────────────────────────────────────────

func (m *merger) mergeEntry(dst, src *models.Entry) {
	dstTime, srcTime := dst.Times.LastModificationTime, src.Times.LastModificationTime

	switch {
	case dstTime.Before(srcTime):
		candidates := append([]*models.Entry{dst.Snapshot()}, src.History...)
		history := dst.History
		loc, prev := dst.Times.LocationChanged, dst.PreviousParentGroup

		*dst = *src.Snapshot()
		dst.Times.LocationChanged, dst.PreviousParentGroup = loc, prev
		dst.History = history
		m.mergeHistory(dst, candidates)
		m.report.add(ActionSyncFromNewer, dst.Title(), dst.UUID)

	case dstTime.After(srcTime):
		candidates := append([]*models.Entry{src.Snapshot()}, src.History...)
		if m.mergeHistory(dst, candidates) {
			m.report.add(ActionSyncFromOlder, dst.Title(), dst.UUID)
		}

	case !dst.Equal(src, entryContent):
		candidates := append([]*models.Entry{src.Snapshot()}, src.History...)
		m.mergeHistory(dst, candidates)
		m.report.add(ActionBackupConflict, dst.Title(), dst.UUID)

	default:
		if m.mergeHistory(dst, src.History) {
			m.report.add(ActionMergeHistory, dst.Title(), dst.UUID)
		}
	}
}

func sameState(a, b *models.Entry) bool {
	return a.Times.LastModificationTime.Equal(b.Times.LastModificationTime) && a.Equal(b, entryContent)
}

// mergeHistory adds the candidates missing from the history of live,
// sorts it oldest first and trims it to the target bounds. It reports
// whether the history changed.
func (m *merger) mergeHistory(live *models.Entry, candidates []*models.Entry) bool {
	before := live.History
	merged := slices.Clone(before)

	for _, c := range candidates {
		if sameState(c, live) || slices.ContainsFunc(merged, func(h *models.Entry) bool { return sameState(h, c) }) {
			continue
		}
		snapshot := c.Snapshot()
		snapshot.UUID = live.UUID
		merged = append(merged, snapshot)
	}
	slices.SortStableFunc(merged, func(a, b *models.Entry) int {
		return a.Times.LastModificationTime.Compare(b.Times.LastModificationTime)
	})

	live.History = merged
	live.TruncateHistory(int(m.work.Meta.HistoryMaxItems), m.work.Meta.HistoryMaxSize)
	return !slices.EqualFunc(before, live.History, sameState)
}

// ── Deletions ───────────────────────────────────────────────────────────────

func (m *merger) mergeDeletions(original []models.DeletedObject) error {
	dropped := make(map[models.UUID]bool)
	doomed := make(map[models.UUID]bool)
	for _, d := range m.tombstones {
		if g, ok := m.work.Group(d.UUID); ok && !m.killed(d.UUID, g.Times.LastModificationTime) {
			continue
		}
		doomed[d.UUID] = true
	}

	deleteAction := func(id models.UUID) Action {
		parent, _ := m.work.ParentOf(id)
		if doomed[parent] {
			return ActionDeleteOrphan
		}
		return ActionDeleteChild
	}

	for _, d := range m.tombstones {
		e, ok := m.work.Entry(d.UUID)
		if !ok {
			continue
		}
		if !m.killed(d.UUID, e.Times.LastModificationTime) {
			dropped[d.UUID] = true
			continue
		}
		action := deleteAction(d.UUID)
		if err := m.work.RemoveEntry(d.UUID); err != nil {
			return err
		}
		m.report.add(action, e.Title(), d.UUID)
	}

	var groups []*models.Group
	for _, d := range m.tombstones {
		if g, ok := m.work.Group(d.UUID); ok && d.UUID != m.work.RootUUID() {
			groups = append(groups, g)
		}
	}
	slices.SortStableFunc(groups, func(a, b *models.Group) int {
		return m.depth(b.UUID) - m.depth(a.UUID)
	})
	for _, g := range groups {
		if !m.killed(g.UUID, g.Times.LastModificationTime) || !g.IsEmpty() {
			dropped[g.UUID] = true
			continue
		}
		action := deleteAction(g.UUID)
		if err := m.work.RemoveGroup(g.UUID); err != nil {
			return err
		}
		m.report.add(action, g.Name, g.UUID)
	}
	if _, ok := m.deletedAt[m.work.RootUUID()]; ok {
		dropped[m.work.RootUUID()] = true
	}

	kept := slices.DeleteFunc(slices.Clone(m.tombstones), func(d models.DeletedObject) bool {
		return dropped[d.UUID]
	})
	if !sameTombstones(original, kept) {
		m.report.add(ActionChangedDeleted, "", models.NilUUID)
	}
	m.work.DeletedObjects = kept
	return nil
}

func (m *merger) depth(id models.UUID) int {
	n := 0
	for p, ok := m.work.ParentOf(id); ok; p, ok = m.work.ParentOf(p) {
		n++
	}
	return n
}

func sameTombstones(a, b []models.DeletedObject) bool {
	if len(a) != len(b) {
		return false
	}
	at := make(map[models.UUID]time.Time, len(a))
	for _, d := range a {
		at[d.UUID] = d.DeletionTime
	}
	for _, d := range b {
		t, ok := at[d.UUID]
		if !ok || !t.Equal(d.DeletionTime) {
			return false
		}
	}
	return true
}

// ── Metadata ────────────────────────────────────────────────────────────────

func (m *merger) mergeMetadata() {
	dst, src := &m.work.Meta, &m.source.Meta

	for _, icon := range src.CustomIcons {
		existing, ok := dst.CustomIcon(icon.UUID)
		switch {
		case !ok:
			icon.Data = slices.Clone(icon.Data)
			dst.CustomIcons = append(dst.CustomIcons, icon)
			m.report.add(ActionAddIcon, icon.Name, icon.UUID)
		case icon.LastModificationTime.After(existing.LastModificationTime):
			icon.Data = slices.Clone(icon.Data)
			*existing = icon
			m.report.add(ActionUpdateIcon, icon.Name, icon.UUID)
		}
	}

	for _, item := range src.CustomData.Items() {
		existing, ok := dst.CustomData.Get(item.Key)
		switch {
		case !ok:
			dst.CustomData.Set(item)
			m.report.add(ActionAddCustomData, item.Key, models.NilUUID)
		case existing.Value != item.Value && item.LastModificationTime.After(existing.LastModificationTime):
			dst.CustomData.Set(item)
			m.report.add(ActionUpdateCustomData, item.Key, models.NilUUID)
		}
	}
}
