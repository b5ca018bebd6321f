package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/kdbx-keeper/models"
)

var (
	t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func at(t time.Time) func() time.Time { return func() time.Time { return t } }

type fixture struct {
	db       *models.Database
	internet models.UUID
	bank     models.UUID
}

// base returns a database with Root/Internet/Bank, every timestamp at t0.
func base(t *testing.T) fixture {
	t.Helper()
	db := models.NewDatabase()
	db.SetClock(at(t0))
	db.Root().Times = models.NewTimes(t0)

	g := models.NewGroup("Internet")
	g.Times = models.NewTimes(t0)
	require.NoError(t, db.AddGroup(db.RootUUID(), g))

	e := models.NewEntry()
	e.Times = models.NewTimes(t0)
	e.Attributes.Set(models.TitleKey, "Bank", false)
	e.Attributes.Set(models.PasswordKey, "s3cret", true)
	require.NoError(t, db.AddEntry(g.UUID, e))

	return fixture{db: db, internet: g.UUID, bank: e.UUID}
}

func fork(db *models.Database, clock time.Time) *models.Database {
	out := db.Clone()
	out.SetClock(at(clock))
	return out
}

func rename(t *testing.T, db *models.Database, id models.UUID, title string) {
	t.Helper()
	require.NoError(t, db.UpdateEntry(id, func(e *models.Entry) {
		e.Attributes.Set(models.TitleKey, title, false)
	}))
}

func entryIDs(db *models.Database) map[models.UUID]bool {
	ids := map[models.UUID]bool{}
	for _, e := range db.EntriesRecursive(db.RootUUID()) {
		ids[e.UUID] = true
	}
	return ids
}

func groupIDs(db *models.Database) map[models.UUID]bool {
	ids := map[models.UUID]bool{}
	for _, g := range db.GroupsRecursive(db.RootUUID()) {
		ids[g.UUID] = true
	}
	return ids
}

func actions(r Report) []Action {
	var out []Action
	for _, c := range r.Changes {
		out = append(out, c.Action)
	}
	return out
}

// ── Preconditions ───────────────────────────────────────────────────────────

func TestMerge_NoCommonLineage(t *testing.T) {
	f := base(t)
	before := f.db.Clone()

	report, err := Merge(f.db, models.NewDatabase())

	assert.ErrorIs(t, err, ErrNoCommonLineage)
	assert.False(t, report.Modified)
	assert.True(t, f.db.Equal(before))
}

func TestMerge_WithOwnCloneReportsNothing(t *testing.T) {
	f := base(t)
	rename(t, f.db, f.bank, "Bank 2")
	before := f.db.Clone()

	report, err := Merge(f.db, f.db.Clone())

	require.NoError(t, err)
	assert.False(t, report.Modified)
	assert.Empty(t, report.Changes)
	assert.True(t, f.db.Equal(before))
}

func TestMerge_FailureLeavesTargetUntouched(t *testing.T) {
	f := base(t)
	a := f.db
	b := fork(a, t1)

	clash := models.NewEntry()
	require.NoError(t, a.AddEntry(a.RootUUID(), clash))
	g := models.NewGroup("clash")
	g.UUID = clash.UUID
	require.NoError(t, b.AddGroup(b.RootUUID(), g))
	rename(t, b, f.bank, "changed")
	before := a.Clone()

	_, err := Merge(a, b)

	assert.ErrorIs(t, err, models.ErrDuplicateUUID)
	assert.True(t, a.Equal(before))
}

// ── Entries ─────────────────────────────────────────────────────────────────

func TestMerge_BankRenamed(t *testing.T) {
	f := base(t)
	a := f.db
	b := fork(a, t1)
	rename(t, b, f.bank, "Bank-renamed")
	aBefore := a.Clone()
	bBefore := b.Clone()

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Change{{Action: ActionSyncFromNewer, Name: "Bank-renamed", UUID: f.bank}}, report.Changes)
	assert.True(t, report.Modified)
	e, _ := a.Entry(f.bank)
	assert.Equal(t, "Bank-renamed", e.Title())
	require.Len(t, e.History, 1)
	assert.Equal(t, "Bank", e.History[0].Title())
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(bBefore), "source is never modified")

	// The other direction brings nothing new.
	report, err = Merge(b, aBefore)
	require.NoError(t, err)
	assert.Empty(t, report.Changes)
	assert.True(t, b.Equal(bBefore))
}

func TestMerge_OlderSourceLandsInHistory(t *testing.T) {
	f := base(t)
	a := fork(f.db, t2)
	b := fork(f.db, t1)
	rename(t, b, f.bank, "from b")
	rename(t, a, f.bank, "from a")

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Action{ActionSyncFromOlder}, actions(report))
	e, _ := a.Entry(f.bank)
	assert.Equal(t, "from a", e.Title())
	var titles []string
	for _, h := range e.History {
		titles = append(titles, h.Title())
	}
	assert.Equal(t, []string{"Bank", "from b"}, titles)
}

func TestMerge_EqualTimestampsKeepTarget(t *testing.T) {
	f := base(t)
	a := fork(f.db, t1)
	b := fork(f.db, t1)
	rename(t, a, f.bank, "A")
	rename(t, b, f.bank, "B")

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Action{ActionBackupConflict}, actions(report))
	e, _ := a.Entry(f.bank)
	assert.Equal(t, "A", e.Title())
	require.Len(t, e.History, 2)
	assert.Equal(t, "Bank", e.History[0].Title())
	assert.Equal(t, "B", e.History[1].Title())
	assert.Equal(t, t1, e.History[1].Times.LastModificationTime)
}

func TestMerge_HistoryBounds(t *testing.T) {
	f := base(t)
	a := fork(f.db, t0)
	b := fork(f.db, t0)
	a.Meta.HistoryMaxItems = 3

	for i, title := range []string{"a1", "a2", "a3"} {
		a.SetClock(at(t0.Add(time.Duration(i+1) * time.Minute)))
		rename(t, a, f.bank, title)
	}
	for i, title := range []string{"b1", "b2"} {
		b.SetClock(at(t0.Add(time.Duration(i+4) * time.Minute)))
		rename(t, b, f.bank, title)
	}

	_, err := Merge(a, b)
	require.NoError(t, err)

	e, _ := a.Entry(f.bank)
	assert.Equal(t, "b2", e.Title())
	var titles []string
	for i, h := range e.History {
		titles = append(titles, h.Title())
		if i > 0 {
			assert.False(t, h.Times.LastModificationTime.Before(e.History[i-1].Times.LastModificationTime))
		}
		assert.Nil(t, h.History)
	}
	assert.Equal(t, []string{"a2", "a3", "b1"}, titles)
}

func TestMerge_Relocation(t *testing.T) {
	f := base(t)
	a := f.db
	orig := a.Clone()
	b := fork(a, t1)
	require.NoError(t, b.MoveEntry(f.bank, b.RootUUID()))

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Action{ActionRelocate}, actions(report))
	parent, _ := a.ParentOf(f.bank)
	assert.Equal(t, a.RootUUID(), parent)
	e, _ := a.Entry(f.bank)
	assert.Equal(t, t1, e.Times.LocationChanged)
	assert.Equal(t, f.internet, e.PreviousParentGroup)

	// An older placement does not move it back.
	report, err = Merge(a, orig)
	require.NoError(t, err)
	assert.Empty(t, report.Changes)
}

// ── Groups ──────────────────────────────────────────────────────────────────

func TestMerge_Groups(t *testing.T) {
	f := base(t)
	a := f.db
	b := fork(a, t1)

	g, _ := b.Group(f.internet)
	g.Name = "Web"
	g.Times.LastModificationTime = t1

	shops := models.NewGroup("Shops")
	require.NoError(t, b.AddGroup(b.RootUUID(), shops))
	shop := models.NewEntry()
	shop.Attributes.Set(models.TitleKey, "Shop", false)
	shop.History = []*models.Entry{shop.Snapshot()}
	require.NoError(t, b.AddEntry(shops.UUID, shop))

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Change{
		{Action: ActionOverwriteGroup, Name: "Web", UUID: f.internet},
		{Action: ActionCreateMissing, Name: "Shops", UUID: shops.UUID},
		{Action: ActionCreateMissing, Name: "Shop", UUID: shop.UUID},
	}, report.Changes)

	got, _ := a.Group(f.internet)
	assert.Equal(t, "Web", got.Name)
	assert.Equal(t, []models.UUID{f.bank}, got.Entries())
	created, ok := a.Entry(shop.UUID)
	require.True(t, ok)
	assert.Len(t, created.History, 1, "created entries keep their history")
	assert.NotSame(t, shop, created)
}

// ── Deletions ───────────────────────────────────────────────────────────────

func TestMerge_TombstonePrecedence(t *testing.T) {
	t.Run("deletion after edit wins", func(t *testing.T) {
		f := base(t)
		b := fork(f.db, t1)
		rename(t, b, f.bank, "edited")
		a := fork(f.db, t2)
		require.NoError(t, a.DeleteEntry(f.bank))
		aAfterDelete := a.Clone()

		report, err := Merge(a, b)
		require.NoError(t, err)
		assert.Empty(t, report.Changes)
		_, ok := a.Entry(f.bank)
		assert.False(t, ok)

		report, err = Merge(b, aAfterDelete)
		require.NoError(t, err)
		assert.Equal(t, []Action{ActionDeleteChild, ActionChangedDeleted}, actions(report))
		_, ok = b.Entry(f.bank)
		assert.False(t, ok)
		require.Len(t, b.DeletedObjects, 1)
		assert.Equal(t, t2, b.DeletedObjects[0].DeletionTime)
	})

	t.Run("edit after deletion undeletes", func(t *testing.T) {
		f := base(t)
		a := fork(f.db, t1)
		require.NoError(t, a.DeleteEntry(f.bank))
		b := fork(f.db, t2)
		rename(t, b, f.bank, "still here")

		report, err := Merge(a, b)
		require.NoError(t, err)

		assert.Equal(t, []Action{ActionCreateMissing, ActionChangedDeleted}, actions(report))
		e, ok := a.Entry(f.bank)
		require.True(t, ok)
		assert.Equal(t, "still here", e.Title())
		assert.Empty(t, a.DeletedObjects)
	})

	t.Run("earliest deletion time kept", func(t *testing.T) {
		f := base(t)
		a := fork(f.db, t2)
		require.NoError(t, a.DeleteEntry(f.bank))
		b := fork(f.db, t1)
		require.NoError(t, b.DeleteEntry(f.bank))

		report, err := Merge(a, b)
		require.NoError(t, err)
		assert.Equal(t, []Action{ActionChangedDeleted}, actions(report))
		require.Len(t, a.DeletedObjects, 1)
		assert.Equal(t, t1, a.DeletedObjects[0].DeletionTime)
	})
}

func TestMerge_GroupDeletion(t *testing.T) {
	t.Run("whole subtree", func(t *testing.T) {
		f := base(t)
		a := fork(f.db, t1)
		require.NoError(t, a.DeleteGroup(f.internet))
		b := f.db

		report, err := Merge(b, a)
		require.NoError(t, err)

		assert.Equal(t, []Change{
			{Action: ActionDeleteOrphan, Name: "Bank", UUID: f.bank},
			{Action: ActionDeleteChild, Name: "Internet", UUID: f.internet},
			{Action: ActionChangedDeleted},
		}, report.Changes)
		assert.Equal(t, 1, b.GroupCount())
		assert.Zero(t, b.EntryCount())
	})

	t.Run("newer child keeps group alive", func(t *testing.T) {
		f := base(t)
		a := fork(f.db, t1)
		require.NoError(t, a.DeleteGroup(f.internet))
		b := fork(f.db, t2)
		fresh := models.NewEntry()
		fresh.Times = models.NewTimes(t2)
		require.NoError(t, b.AddEntry(f.internet, fresh))

		_, err := Merge(b, a)
		require.NoError(t, err)

		g, ok := b.Group(f.internet)
		require.True(t, ok)
		assert.Equal(t, []models.UUID{fresh.UUID}, g.Entries())
		require.Len(t, b.DeletedObjects, 1)
		assert.Equal(t, f.bank, b.DeletedObjects[0].UUID)
	})
}

// ── Properties ──────────────────────────────────────────────────────────────

func TestMerge_Idempotent(t *testing.T) {
	f := base(t)
	a := fork(f.db, t1)
	rename(t, a, f.bank, "a")
	b := fork(f.db, t2)
	require.NoError(t, b.AddGroup(b.RootUUID(), models.NewGroup("new")))
	gone := models.NewEntry()
	require.NoError(t, b.AddEntry(b.RootUUID(), gone))
	require.NoError(t, b.DeleteEntry(gone.UUID))

	_, err := Merge(a, b)
	require.NoError(t, err)
	after := a.Clone()

	report, err := Merge(a, b)
	require.NoError(t, err)
	assert.Empty(t, report.Changes)
	assert.True(t, a.Equal(after))
}

func TestMerge_UnionIsCommutative(t *testing.T) {
	f := base(t)
	a := fork(f.db, t1)
	b := fork(f.db, t1)
	require.NoError(t, a.AddEntry(a.RootUUID(), models.NewEntry()))
	require.NoError(t, b.AddEntry(f.internet, models.NewEntry()))
	require.NoError(t, b.AddGroup(b.RootUUID(), models.NewGroup("only in b")))

	ab := a.Clone()
	_, err := Merge(ab, b)
	require.NoError(t, err)
	ba := b.Clone()
	_, err = Merge(ba, a)
	require.NoError(t, err)

	assert.Equal(t, entryIDs(ab), entryIDs(ba))
	assert.Equal(t, groupIDs(ab), groupIDs(ba))
	assert.Len(t, entryIDs(ab), 3)
}

// ── Metadata ────────────────────────────────────────────────────────────────

func TestMerge_Metadata(t *testing.T) {
	f := base(t)
	a := f.db
	icon := models.CustomIcon{UUID: models.NewUUID(), Data: []byte("v1"), Name: "old", LastModificationTime: t0}
	a.Meta.CustomIcons = []models.CustomIcon{icon}
	a.Meta.CustomData.Set(models.CustomDataItem{Key: "shared", Value: "old", LastModificationTime: t0})
	a.Meta.CustomData.Set(models.CustomDataItem{Key: "only-a", Value: "kept"})

	b := fork(a, t1)
	b.Meta.CustomIcons[0].Data = []byte("v2")
	b.Meta.CustomIcons[0].Name = "new"
	b.Meta.CustomIcons[0].LastModificationTime = t1
	added := models.CustomIcon{UUID: models.NewUUID(), Data: []byte("png"), Name: "added"}
	b.Meta.CustomIcons = append(b.Meta.CustomIcons, added)
	b.Meta.CustomData.Set(models.CustomDataItem{Key: "shared", Value: "new", LastModificationTime: t1})
	b.Meta.CustomData.Set(models.CustomDataItem{Key: "only-b", Value: "x"})
	b.Meta.CustomData.Delete("only-a")

	report, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Updating icon new [" + icon.UUID.String() + "]",
		"Adding missing icon added [" + added.UUID.String() + "]",
		"Updating custom data shared",
		"Adding custom data only-b",
	}, report.Lines())

	got, ok := a.Meta.CustomIcon(icon.UUID)
	require.True(t, ok)
	assert.Equal(t, "v2", string(got.Data))
	assert.Len(t, a.Meta.CustomIcons, 2)
	assert.Equal(t, "new", mustCustomData(t, a, "shared"))
	assert.Equal(t, "kept", mustCustomData(t, a, "only-a"), "custom data is never removed")
}

func mustCustomData(t *testing.T, db *models.Database, key string) string {
	t.Helper()
	item, ok := db.Meta.CustomData.Get(key)
	require.True(t, ok, key)
	return item.Value
}
