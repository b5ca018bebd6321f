package validators

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MKhiriev/kdbx-keeper/models"
)

// Field name constants used to scope validation.
const (
	// FieldRoot checks that the database has a root group.
	FieldRoot = "root"

	// FieldMeta targets database-wide settings.
	FieldMeta = "meta"

	// FieldGroups targets every group of the tree.
	FieldGroups = "groups"

	// FieldEntries targets every entry of the tree and its history.
	FieldEntries = "entries"

	// FieldDeletedObjects targets the tombstone list.
	FieldDeletedObjects = "deleted_objects"

	FieldUUID        = "uuid"
	FieldColors      = "colors"
	FieldAttributes  = "attributes"
	FieldAttachments = "attachments"
	FieldHistory     = "history"
)

// DatabaseValidator implements Validator for *models.Database,
// *models.Entry, *models.Group and models.Meta.
type DatabaseValidator struct {
}

func NewDatabaseValidator() Validator {
	return &DatabaseValidator{}
}

func (v *DatabaseValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case *models.Database:
		if value == nil {
			return ErrNoRoot
		}
		return v.validateDatabase(ctx, value, fields...)

	case models.Entry:
		return v.validateEntry(ctx, &value, nil, false, fields...)
	case *models.Entry:
		return v.validateEntry(ctx, value, nil, false, fields...)

	case models.Group:
		return v.validateGroup(ctx, &value, nil, fields...)
	case *models.Group:
		return v.validateGroup(ctx, value, nil, fields...)

	case models.Meta:
		return v.validateMeta(ctx, &value, nil)
	case *models.Meta:
		return v.validateMeta(ctx, value, nil)

	default:
		return ErrUnsupportedType
	}
}

func (v *DatabaseValidator) validateDatabase(ctx context.Context, db *models.Database, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldRoot, FieldMeta, FieldGroups, FieldEntries, FieldDeletedObjects}
	}

	root := db.Root()
	icons := customIcons(&db.Meta)

	for _, f := range fields {
		switch f {
		case FieldRoot:
			if root == nil {
				return ErrNoRoot
			}
		case FieldMeta:
			if err := v.validateMeta(ctx, &db.Meta, db); err != nil {
				return fmt.Errorf("meta: %w", err)
			}
		case FieldGroups:
			if root == nil {
				return ErrNoRoot
			}
			for _, g := range db.GroupsRecursive(root.UUID) {
				if err := v.validateGroup(ctx, g, icons); err != nil {
					return fmt.Errorf("group %s: %w", g.UUID, err)
				}
			}
		case FieldEntries:
			if root == nil {
				return ErrNoRoot
			}
			for _, e := range db.EntriesRecursive(root.UUID) {
				if err := v.validateEntry(ctx, e, icons, false); err != nil {
					return fmt.Errorf("entry %s: %w", e.UUID, err)
				}
			}
		case FieldDeletedObjects:
			for i, d := range db.DeletedObjects {
				if d.UUID.IsNil() || d.DeletionTime.IsZero() {
					return fmt.Errorf("%w at index %d", ErrInvalidTombstone, i)
				}
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

// validateMeta checks metadata. db is nil when Meta is validated alone,
// which skips the recycle bin lookup.
func (v *DatabaseValidator) validateMeta(ctx context.Context, m *models.Meta, db *models.Database) error {
	seen := make(map[models.UUID]bool, len(m.CustomIcons))
	for _, icon := range m.CustomIcons {
		if icon.UUID.IsNil() {
			return fmt.Errorf("custom icon: %w", ErrNullUUID)
		}
		if seen[icon.UUID] {
			return fmt.Errorf("%w: %s", ErrDuplicateCustomIcon, icon.UUID)
		}
		seen[icon.UUID] = true
	}

	if m.HistoryMaxItems < -1 || m.HistoryMaxSize < -1 {
		return fmt.Errorf("%w: items %d, size %d", ErrInvalidHistoryBounds, m.HistoryMaxItems, m.HistoryMaxSize)
	}
	if !validColor(m.Color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, m.Color)
	}
	if db != nil && m.RecycleBinEnabled && !m.RecycleBinUUID.IsNil() && !isGroup(db, m.RecycleBinUUID) {
		return fmt.Errorf("%w: %s", ErrUnknownRecycleBin, m.RecycleBinUUID)
	}
	return nil
}

func (v *DatabaseValidator) validateGroup(ctx context.Context, g *models.Group, icons map[models.UUID]bool, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldUUID}
	}

	for _, f := range fields {
		switch f {
		case FieldUUID:
			if g.UUID.IsNil() {
				return ErrNullUUID
			}
		default:
			return ErrUnknownField
		}
	}

	if icons != nil && !g.CustomIcon.IsNil() && !icons[g.CustomIcon] {
		return fmt.Errorf("%w: %s", ErrUnknownCustomIcon, g.CustomIcon)
	}
	return nil
}

func (v *DatabaseValidator) validateEntry(ctx context.Context, e *models.Entry, icons map[models.UUID]bool, inHistory bool, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldUUID, FieldColors, FieldAttributes, FieldAttachments, FieldHistory}
	}

	for _, f := range fields {
		switch f {
		case FieldUUID:
			if e.UUID.IsNil() {
				return ErrNullUUID
			}
		case FieldColors:
			if !validColor(e.ForegroundColor) {
				return fmt.Errorf("%w: foreground %q", ErrInvalidColor, e.ForegroundColor)
			}
			if !validColor(e.BackgroundColor) {
				return fmt.Errorf("%w: background %q", ErrInvalidColor, e.BackgroundColor)
			}
		case FieldAttributes:
			for _, a := range e.Attributes.Items() {
				if a.Key == "" {
					return ErrEmptyAttributeKey
				}
			}
		case FieldAttachments:
			for _, a := range e.Attachments.Items() {
				if a.Name == "" {
					return ErrEmptyAttachmentName
				}
			}
		case FieldHistory:
			if inHistory && len(e.History) > 0 {
				return ErrNestedHistory
			}
			for i, h := range e.History {
				if h.UUID != e.UUID {
					return fmt.Errorf("%w at index %d", ErrHistoryUUIDMismatch, i)
				}
				if err := v.validateEntry(ctx, h, icons, true); err != nil {
					return fmt.Errorf("history item %d: %w", i, err)
				}
			}
		default:
			return ErrUnknownField
		}
	}

	if !inHistory && icons != nil && !e.CustomIcon.IsNil() && !icons[e.CustomIcon] {
		return fmt.Errorf("%w: %s", ErrUnknownCustomIcon, e.CustomIcon)
	}
	return nil
}

func isGroup(db *models.Database, id models.UUID) bool {
	_, ok := db.Group(id)
	return ok
}

func customIcons(m *models.Meta) map[models.UUID]bool {
	icons := make(map[models.UUID]bool, len(m.CustomIcons))
	for _, icon := range m.CustomIcons {
		icons[icon.UUID] = true
	}
	return icons
}

// validColor accepts an empty string or #RRGGBB.
func validColor(s string) bool {
	if s == "" {
		return true
	}
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 16, 32)
	return err == nil
}
