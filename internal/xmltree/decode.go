// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package xmltree converts the inner XML document of a KDBX container to
// and from the models tree. Protected values are XOR-ed with the inner
// random stream in document order, so the decoder works on the token
// stream instead of unmarshalling into structs.
package xmltree

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// DecodeOptions configure Decode.
type DecodeOptions struct {
	// Stream unmasks protected values. A document containing protected
	// values cannot be decoded without it.
	Stream *crypto.RandomStream

	// Binaries is the KDBX 4 inner header pool. KDBX 3 documents carry
	// their pool in Meta/Binaries instead.
	Binaries []header.Binary
}

type groupNode struct {
	group   *models.Group
	entries []*models.Entry
	groups  []*groupNode
}

type binaryRef struct {
	entry *models.Entry
	name  string
	ref   int
}

type decoder struct {
	d      *xml.Decoder
	stream *crypto.RandomStream

	pool    map[int]header.Binary
	refs    []binaryRef
	meta    models.Meta
	root    *groupNode
	deleted []models.DeletedObject
}

// Decode parses a KeePassFile document into a new database.
func Decode(r io.Reader, opts DecodeOptions) (*models.Database, error) {
	p := &decoder{
		d:      xml.NewDecoder(r),
		stream: opts.Stream,
		pool:   make(map[int]header.Binary, len(opts.Binaries)),
	}
	for i, b := range opts.Binaries {
		p.pool[i] = b
	}

	if err := p.document(); err != nil {
		return nil, err
	}
	return p.build()
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedXML, fmt.Sprintf(format, args...))
}

func (p *decoder) token() (xml.Token, error) {
	tok, err := p.d.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("unexpected end of document")
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedXML, err)
	}
	return tok, nil
}

// children calls fn for every child element of the current element and
// returns after its end tag. fn must consume the child completely.
func (p *decoder) children(fn func(se xml.StartElement) error) error {
	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func (p *decoder) skip() error {
	if err := p.d.Skip(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedXML, err)
	}
	return nil
}

// text reads the character data of a leaf element.
func (p *decoder) text() (string, error) {
	var sb strings.Builder
	for {
		tok, err := p.token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", malformed("unexpected element <%s> in text", t.Name.Local)
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func field[T any](p *decoder, se xml.StartElement, parse func(string) (T, error)) (T, error) {
	s, err := p.text()
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := parse(s)
	if err != nil {
		return v, fmt.Errorf("%s: %w", se.Name.Local, err)
	}
	return v, nil
}

func (p *decoder) bool(se xml.StartElement) (bool, error) {
	return field(p, se, parseBool)
}

func (p *decoder) uuid(se xml.StartElement) (models.UUID, error) {
	return field(p, se, parseUUID)
}

func (p *decoder) times(dst *models.Times) error {
	return p.children(func(c xml.StartElement) error {
		var err error
		switch c.Name.Local {
		case "CreationTime":
			dst.CreationTime, err = field(p, c, parseTime)
		case "LastModificationTime":
			dst.LastModificationTime, err = field(p, c, parseTime)
		case "LastAccessTime":
			dst.LastAccessTime, err = field(p, c, parseTime)
		case "ExpiryTime":
			dst.ExpiryTime, err = field(p, c, parseTime)
		case "LocationChanged":
			dst.LocationChanged, err = field(p, c, parseTime)
		case "Expires":
			dst.Expires, err = p.bool(c)
		case "UsageCount":
			var n uint64
			n, err = field(p, c, func(s string) (uint64, error) { return parseUint(s, 32) })
			dst.UsageCount = uint32(n)
		default:
			err = p.skip()
		}
		return err
	})
}

func int32Field(p *decoder, se xml.StartElement) (int32, error) {
	v, err := field(p, se, func(s string) (int64, error) { return parseInt(s, 32) })
	return int32(v), err
}

func int64Field(p *decoder, se xml.StartElement) (int64, error) {
	return field(p, se, func(s string) (int64, error) { return parseInt(s, 64) })
}

func attr(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func attrTrue(se xml.StartElement, name string) bool {
	v, ok := attr(se, name)
	if !ok {
		return false
	}
	b, err := parseBool(v)
	return err == nil && b
}

// protected reads a value that may be masked with the inner stream.
func (p *decoder) protected(se xml.StartElement) ([]byte, bool, error) {
	s, err := p.text()
	if err != nil {
		return nil, false, err
	}
	if !attrTrue(se, attrProtected) {
		return []byte(s), attrTrue(se, attrProtectInMemory), nil
	}
	if p.stream == nil {
		return nil, false, malformed("protected value without inner random stream")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, false, malformed("protected value: %v", err)
	}
	return p.stream.XOR(raw), true, nil
}

// ── Document ────────────────────────────────────────────────────────────────

func (p *decoder) document() error {
	for {
		tok, err := p.token()
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != elemKeePassFile {
			return malformed("root element <%s>", se.Name.Local)
		}
		break
	}

	err := p.children(func(se xml.StartElement) error {
		switch se.Name.Local {
		case elemMeta:
			return p.metaElem()
		case elemRoot:
			return p.rootElem()
		default:
			return p.skip()
		}
	})
	if err != nil {
		return err
	}
	if p.root == nil {
		return malformed("missing root group")
	}
	return nil
}

func (p *decoder) metaElem() error {
	m := &p.meta
	return p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case "Generator":
			m.Generator, err = p.text()
		case "HeaderHash":
			m.HeaderHash, err = field(p, se, func(s string) ([]byte, error) {
				return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
			})
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrMalformedXML, err)
			}
		case "SettingsChanged":
			m.SettingsChanged, err = field(p, se, parseTime)
		case "DatabaseName":
			m.DatabaseName, err = p.text()
		case "DatabaseNameChanged":
			m.DatabaseNameChanged, err = field(p, se, parseTime)
		case "DatabaseDescription":
			m.DatabaseDescription, err = p.text()
		case "DatabaseDescriptionChanged":
			m.DatabaseDescriptionChanged, err = field(p, se, parseTime)
		case "DefaultUserName":
			m.DefaultUserName, err = p.text()
		case "DefaultUserNameChanged":
			m.DefaultUserNameChanged, err = field(p, se, parseTime)
		case "MaintenanceHistoryDays":
			var n uint64
			n, err = field(p, se, func(s string) (uint64, error) { return parseUint(s, 32) })
			m.MaintenanceHistoryDays = uint32(n)
		case "Color":
			m.Color, err = field(p, se, parseColor)
		case "MasterKeyChanged":
			m.MasterKeyChanged, err = field(p, se, parseTime)
		case "MasterKeyChangeRec":
			m.MasterKeyChangeRec, err = int64Field(p, se)
		case "MasterKeyChangeForce":
			m.MasterKeyChangeForce, err = int64Field(p, se)
		case "MemoryProtection":
			err = p.memoryProtection(&m.MemoryProtection)
		case "CustomIcons":
			err = p.customIcons(m)
		case "RecycleBinEnabled":
			m.RecycleBinEnabled, err = p.bool(se)
		case "RecycleBinUUID":
			m.RecycleBinUUID, err = p.uuid(se)
		case "RecycleBinChanged":
			m.RecycleBinChanged, err = field(p, se, parseTime)
		case "EntryTemplatesGroup":
			m.EntryTemplatesGroup, err = p.uuid(se)
		case "EntryTemplatesGroupChanged":
			m.EntryTemplatesGroupChanged, err = field(p, se, parseTime)
		case "LastSelectedGroup":
			m.LastSelectedGroup, err = p.uuid(se)
		case "LastTopVisibleGroup":
			m.LastTopVisibleGroup, err = p.uuid(se)
		case "HistoryMaxItems":
			m.HistoryMaxItems, err = int32Field(p, se)
		case "HistoryMaxSize":
			m.HistoryMaxSize, err = int64Field(p, se)
		case elemBinaries:
			err = p.metaBinaries()
		case elemCustomData:
			err = p.customData(&m.CustomData)
		default:
			err = p.skip()
		}
		return err
	})
}

func (p *decoder) memoryProtection(mp *models.MemoryProtection) error {
	return p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case "ProtectTitle":
			mp.ProtectTitle, err = p.bool(se)
		case "ProtectUserName":
			mp.ProtectUserName, err = p.bool(se)
		case "ProtectPassword":
			mp.ProtectPassword, err = p.bool(se)
		case "ProtectURL":
			mp.ProtectURL, err = p.bool(se)
		case "ProtectNotes":
			mp.ProtectNotes, err = p.bool(se)
		default:
			err = p.skip()
		}
		return err
	})
}

func (p *decoder) customIcons(m *models.Meta) error {
	return p.children(func(se xml.StartElement) error {
		if se.Name.Local != "Icon" {
			return p.skip()
		}
		var icon models.CustomIcon
		err := p.children(func(c xml.StartElement) error {
			var err error
			switch c.Name.Local {
			case "UUID":
				icon.UUID, err = p.uuid(c)
			case "Data":
				icon.Data, err = field(p, c, func(s string) ([]byte, error) {
					return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
				})
				if err != nil {
					err = fmt.Errorf("%w: %w", ErrMalformedXML, err)
				}
			case "Name":
				icon.Name, err = p.text()
			case "LastModificationTime":
				icon.LastModificationTime, err = field(p, c, parseTime)
			default:
				err = p.skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		if icon.UUID.IsNil() {
			return fmt.Errorf("custom icon: %w", ErrNullUUID)
		}
		m.CustomIcons = append(m.CustomIcons, icon)
		return nil
	})
}

// metaBinaries reads the KDBX 3 attachment pool.
func (p *decoder) metaBinaries() error {
	return p.children(func(se xml.StartElement) error {
		if se.Name.Local != elemBinary {
			return p.skip()
		}
		idAttr, _ := attr(se, attrID)
		id, err := strconv.Atoi(idAttr)
		if err != nil {
			return fmt.Errorf("%w: binary id %q", ErrInvalidBinaryReference, idAttr)
		}

		data, isProtected, err := p.protected(se)
		if err != nil {
			return err
		}
		if !attrTrue(se, attrProtected) {
			if data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(data))); err != nil {
				return malformed("binary %d: %v", id, err)
			}
		}
		if attrTrue(se, attrCompressed) {
			if data, err = gunzip(data); err != nil {
				return malformed("binary %d: %v", id, err)
			}
		}
		p.pool[id] = header.Binary{Protected: isProtected, Data: data}
		return nil
	})
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (p *decoder) customData(cd *models.CustomData) error {
	return p.children(func(se xml.StartElement) error {
		if se.Name.Local != elemItem {
			return p.skip()
		}
		var item models.CustomDataItem
		err := p.children(func(c xml.StartElement) error {
			var err error
			switch c.Name.Local {
			case elemKey:
				item.Key, err = p.text()
			case elemValue:
				item.Value, err = p.text()
			case "LastModificationTime":
				item.LastModificationTime, err = field(p, c, parseTime)
			default:
				err = p.skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		if item.Key == "" {
			return malformed("custom data item without key")
		}
		cd.Set(item)
		return nil
	})
}

// ── Root ────────────────────────────────────────────────────────────────────

func (p *decoder) rootElem() error {
	return p.children(func(se xml.StartElement) error {
		switch se.Name.Local {
		case elemGroup:
			if p.root != nil {
				return malformed("multiple root groups")
			}
			node, err := p.group()
			if err != nil {
				return err
			}
			p.root = node
			return nil
		case elemDeletedObjects:
			return p.deletedObjects()
		default:
			return p.skip()
		}
	})
}

func (p *decoder) deletedObjects() error {
	return p.children(func(se xml.StartElement) error {
		if se.Name.Local != elemDeletedObject {
			return p.skip()
		}
		var d models.DeletedObject
		err := p.children(func(c xml.StartElement) error {
			var err error
			switch c.Name.Local {
			case "UUID":
				d.UUID, err = p.uuid(c)
			case "DeletionTime":
				d.DeletionTime, err = field(p, c, parseTime)
			default:
				err = p.skip()
			}
			return err
		})
		if err != nil {
			return err
		}
		if d.UUID.IsNil() {
			return fmt.Errorf("deleted object: %w", ErrNullUUID)
		}
		p.deleted = append(p.deleted, d)
		return nil
	})
}

func (p *decoder) group() (*groupNode, error) {
	node := &groupNode{group: &models.Group{}}
	g := node.group

	err := p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case "UUID":
			g.UUID, err = p.uuid(se)
		case "Name":
			g.Name, err = p.text()
		case "Notes":
			g.Notes, err = p.text()
		case "IconID":
			g.IconID, err = int32Field(p, se)
		case "CustomIconUUID":
			g.CustomIcon, err = p.uuid(se)
		case elemTimes:
			err = p.times(&g.Times)
		case "IsExpanded":
			g.IsExpanded, err = p.bool(se)
		case "DefaultAutoTypeSequence":
			g.DefaultAutoTypeSequence, err = p.text()
		case "EnableAutoType":
			g.EnableAutoType, err = field(p, se, parseTriState)
		case "EnableSearching":
			g.EnableSearching, err = field(p, se, parseTriState)
		case "LastTopVisibleEntry":
			g.LastTopVisibleEntry, err = p.uuid(se)
		case "PreviousParentGroup":
			g.PreviousParentGroup, err = p.uuid(se)
		case elemCustomData:
			err = p.customData(&g.CustomData)
		case elemEntry:
			var e *models.Entry
			if e, err = p.entry(false); err == nil {
				node.entries = append(node.entries, e)
			}
		case elemGroup:
			var child *groupNode
			if child, err = p.group(); err == nil {
				node.groups = append(node.groups, child)
			}
		default:
			err = p.skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if g.UUID.IsNil() {
		return nil, fmt.Errorf("group %q: %w", g.Name, ErrNullUUID)
	}
	return node, nil
}

func (p *decoder) entry(inHistory bool) (*models.Entry, error) {
	e := &models.Entry{QualityCheck: true}

	err := p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case "UUID":
			e.UUID, err = p.uuid(se)
		case "IconID":
			e.IconID, err = int32Field(p, se)
		case "CustomIconUUID":
			e.CustomIcon, err = p.uuid(se)
		case "ForegroundColor":
			e.ForegroundColor, err = field(p, se, parseColor)
		case "BackgroundColor":
			e.BackgroundColor, err = field(p, se, parseColor)
		case "OverrideURL":
			e.OverrideURL, err = p.text()
		case "Tags":
			var s string
			s, err = p.text()
			e.Tags = parseTags(s)
		case "QualityCheck":
			e.QualityCheck, err = p.bool(se)
		case "PreviousParentGroup":
			e.PreviousParentGroup, err = p.uuid(se)
		case elemTimes:
			err = p.times(&e.Times)
		case elemCustomData:
			err = p.customData(&e.CustomData)
		case elemString:
			err = p.entryString(e)
		case elemBinary:
			err = p.entryBinary(e)
		case "AutoType":
			err = p.autoType(&e.AutoType)
		case elemHistory:
			if inHistory {
				return malformed("nested history")
			}
			err = p.history(e)
		default:
			err = p.skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if e.UUID.IsNil() {
		return nil, fmt.Errorf("entry %q: %w", e.Title(), ErrNullUUID)
	}
	for _, h := range e.History {
		if h.UUID != e.UUID {
			return nil, fmt.Errorf("entry %s: %w: %s", e.UUID, ErrHistoryUUIDMismatch, h.UUID)
		}
	}
	return e, nil
}

func (p *decoder) entryString(e *models.Entry) error {
	var (
		key       string
		value     []byte
		protected bool
		hasKey    bool
	)
	err := p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case elemKey:
			key, err = p.text()
			hasKey = true
		case elemValue:
			value, protected, err = p.protected(se)
		default:
			err = p.skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasKey {
		return malformed("entry string without key")
	}
	if _, dup := e.Attributes.Get(key); dup {
		return fmt.Errorf("%w: %q", ErrDuplicateAttribute, key)
	}
	e.Attributes.Set(key, string(value), protected)
	return nil
}

func (p *decoder) entryBinary(e *models.Entry) error {
	var (
		name   string
		att    models.Attachment
		ref    = -1
		hasKey bool
	)
	err := p.children(func(se xml.StartElement) error {
		switch se.Name.Local {
		case elemKey:
			var err error
			name, err = p.text()
			hasKey = true
			return err
		case elemValue:
			if s, ok := attr(se, attrRef); ok {
				id, err := strconv.Atoi(strings.TrimSpace(s))
				if err != nil || id < 0 {
					return fmt.Errorf("%w: %q", ErrInvalidBinaryReference, s)
				}
				ref = id
				_, err = p.text()
				return err
			}
			data, isProtected, err := p.protected(se)
			if err != nil {
				return err
			}
			if !attrTrue(se, attrProtected) {
				if data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(data))); err != nil {
					return malformed("inline binary: %v", err)
				}
			}
			att = models.Attachment{Data: data, Protected: isProtected}
			return nil
		default:
			return p.skip()
		}
	})
	if err != nil {
		return err
	}
	if !hasKey {
		return malformed("entry binary without key")
	}
	if _, dup := e.Attachments.Get(name); dup {
		return fmt.Errorf("%w: attachment %q", ErrDuplicateAttribute, name)
	}
	att.Name = name
	e.Attachments.Set(att)
	if ref >= 0 {
		p.refs = append(p.refs, binaryRef{entry: e, name: name, ref: ref})
	}
	return nil
}

func (p *decoder) autoType(at *models.AutoType) error {
	return p.children(func(se xml.StartElement) error {
		var err error
		switch se.Name.Local {
		case "Enabled":
			at.Enabled, err = p.bool(se)
		case "DataTransferObfuscation":
			at.Obfuscation, err = int32Field(p, se)
		case "DefaultSequence":
			at.DefaultSequence, err = p.text()
		case "Association":
			var as models.AutoTypeAssociation
			err = p.children(func(c xml.StartElement) error {
				var err error
				switch c.Name.Local {
				case "Window":
					as.Window, err = p.text()
				case "KeystrokeSequence":
					as.Sequence, err = p.text()
				default:
					err = p.skip()
				}
				return err
			})
			at.Associations = append(at.Associations, as)
		default:
			err = p.skip()
		}
		return err
	})
}

func (p *decoder) history(e *models.Entry) error {
	return p.children(func(se xml.StartElement) error {
		if se.Name.Local != elemEntry {
			return p.skip()
		}
		h, err := p.entry(true)
		if err != nil {
			return err
		}
		e.History = append(e.History, h)
		return nil
	})
}

// ── Tree assembly ───────────────────────────────────────────────────────────

func (p *decoder) build() (*models.Database, error) {
	for _, r := range p.refs {
		b, ok := p.pool[r.ref]
		if !ok {
			return nil, fmt.Errorf("%w: attachment %q references %d", ErrInvalidBinaryReference, r.name, r.ref)
		}
		r.entry.Attachments.Set(models.Attachment{Name: r.name, Data: b.Data, Protected: b.Protected})
	}

	db := models.NewEmptyDatabase()
	db.Meta = p.meta
	db.DeletedObjects = p.deleted
	db.SetRoot(p.root.group)
	if err := p.attach(db, p.root); err != nil {
		return nil, err
	}
	return db, nil
}

func (p *decoder) attach(db *models.Database, node *groupNode) error {
	parent := node.group.UUID
	for _, e := range node.entries {
		if err := db.AddEntry(parent, e); err != nil {
			return fmt.Errorf("entry %s: %w", e.UUID, err)
		}
	}
	for _, child := range node.groups {
		if err := db.AddGroup(parent, child.group); err != nil {
			return fmt.Errorf("group %s: %w", child.group.UUID, err)
		}
		if err := p.attach(db, child); err != nil {
			return err
		}
	}
	return nil
}
