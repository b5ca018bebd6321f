package models

import "slices"

// TriState is an inheritable boolean: unset groups follow their parent.
type TriState int8

const (
	Inherit TriState = iota
	Enabled
	Disabled
)

func (s TriState) String() string {
	switch s {
	case Enabled:
		return "true"
	case Disabled:
		return "false"
	default:
		return "null"
	}
}

// Group is a folder of entries and subgroups. Children are referenced by
// UUID and resolved through the owning Database.
type Group struct {
	UUID       UUID
	Name       string
	Notes      string
	IconID     int32
	CustomIcon UUID
	Times      Times
	IsExpanded bool

	DefaultAutoTypeSequence string
	EnableAutoType          TriState
	EnableSearching         TriState
	LastTopVisibleEntry     UUID
	CustomData              CustomData

	// PreviousParentGroup is the group this group lived in before its last
	// move.
	PreviousParentGroup UUID

	groups  []UUID
	entries []UUID
}

// NewGroup returns a named group with a fresh UUID.
func NewGroup(name string) *Group {
	return &Group{
		UUID:       NewUUID(),
		Name:       name,
		IconID:     DefaultGroupIcon,
		Times:      NewTimes(Now()),
		IsExpanded: true,
	}
}

// DefaultGroupIcon is the folder icon.
const DefaultGroupIcon = 48

// Groups returns the child group ids in order.
func (g *Group) Groups() []UUID { return slices.Clone(g.groups) }

// Entries returns the child entry ids in order.
func (g *Group) Entries() []UUID { return slices.Clone(g.entries) }

// IsEmpty reports whether the group has no children.
func (g *Group) IsEmpty() bool { return len(g.groups) == 0 && len(g.entries) == 0 }

// CloneProperties copies the group without its children.
func (g *Group) CloneProperties() *Group {
	out := *g
	out.CustomData = g.CustomData.Clone()
	out.groups = nil
	out.entries = nil
	return &out
}

func (g *Group) clone() *Group {
	out := g.CloneProperties()
	out.groups = slices.Clone(g.groups)
	out.entries = slices.Clone(g.entries)
	return out
}

// CopyPropertiesFrom overwrites every property of g with those of src.
// Identity and children are kept.
func (g *Group) CopyPropertiesFrom(src *Group) {
	id, groups, entries := g.UUID, g.groups, g.entries
	*g = *src.CloneProperties()
	g.UUID, g.groups, g.entries = id, groups, entries
}

// Equal compares group properties. Children are not compared.
func (g *Group) Equal(o *Group, opts CompareOption) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.UUID != o.UUID ||
		g.Name != o.Name ||
		g.Notes != o.Notes ||
		g.IconID != o.IconID ||
		g.CustomIcon != o.CustomIcon ||
		g.IsExpanded != o.IsExpanded ||
		g.DefaultAutoTypeSequence != o.DefaultAutoTypeSequence ||
		g.EnableAutoType != o.EnableAutoType ||
		g.EnableSearching != o.EnableSearching ||
		g.LastTopVisibleEntry != o.LastTopVisibleEntry ||
		!g.Times.Equal(o.Times, opts) ||
		!g.CustomData.Equal(&o.CustomData) {
		return false
	}
	return opts.has(IgnoreLocation) || g.PreviousParentGroup == o.PreviousParentGroup
}
