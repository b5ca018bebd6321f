package merge

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// Action names one kind of merge decision.
type Action string

const (
	ActionCreateMissing    Action = "Creating missing"
	ActionRelocate         Action = "Relocating"
	ActionOverwriteGroup   Action = "Overwriting group properties"
	ActionSyncFromNewer    Action = "Synchronizing from newer source"
	ActionSyncFromOlder    Action = "Synchronizing from older source"
	ActionBackupConflict   Action = "Backing up conflicting source"
	ActionMergeHistory     Action = "Merging history"
	ActionDeleteChild      Action = "Deleting child"
	ActionDeleteOrphan     Action = "Deleting orphan"
	ActionChangedDeleted   Action = "Changed deleted objects"
	ActionAddIcon          Action = "Adding missing icon"
	ActionUpdateIcon       Action = "Updating icon"
	ActionAddCustomData    Action = "Adding custom data"
	ActionUpdateCustomData Action = "Updating custom data"
)

// Change is one line of a merge report.
type Change struct {
	Action Action

	// Name is the group name, entry title, icon name or custom data key.
	Name string

	// UUID is null for database-wide changes.
	UUID models.UUID
}

func (c Change) String() string {
	switch {
	case c.UUID.IsNil() && c.Name == "":
		return string(c.Action)
	case c.UUID.IsNil():
		return fmt.Sprintf("%s %s", c.Action, c.Name)
	default:
		return fmt.Sprintf("%s %s [%s]", c.Action, c.Name, c.UUID)
	}
}

// Report lists the changes a merge applied to the target in the order
// they were decided.
type Report struct {
	Modified bool
	Changes  []Change
}

func (r *Report) add(action Action, name string, id models.UUID) {
	r.Changes = append(r.Changes, Change{Action: action, Name: name, UUID: id})
	r.Modified = true
}

// Lines renders every change.
func (r Report) Lines() []string {
	lines := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		lines[i] = c.String()
	}
	return lines
}

func (r Report) String() string {
	return strings.Join(r.Lines(), "\n")
}
