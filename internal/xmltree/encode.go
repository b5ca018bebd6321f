package xmltree

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// EncodeOptions configure Encode.
type EncodeOptions struct {
	// Stream masks protected values. Without it protected values are
	// written in clear text and flagged ProtectInMemory.
	Stream *crypto.RandomStream

	// Gen4 selects binary timestamps and an external binary pool. KDBX 3
	// documents use ISO timestamps and embed the pool in Meta/Binaries.
	Gen4 bool

	// HeaderHash is written to Meta/HeaderHash when set.
	HeaderHash []byte

	// CompressBinaries gzips the KDBX 3 Meta/Binaries items.
	CompressBinaries bool
}

// Encode writes db as a KeePassFile document. For KDBX 4 the attachment
// pool referenced by the document is returned for the inner header.
func Encode(w io.Writer, db *models.Database, opts EncodeOptions) ([]header.Binary, error) {
	root := db.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: database has no root group", ErrMalformedXML)
	}

	e := &encoder{
		enc:  xml.NewEncoder(w),
		db:   db,
		opts: opts,
		pool: buildPool(db),
	}
	e.enc.Indent("", "\t")

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	e.start(elemKeePassFile)
	e.meta()
	e.start(elemRoot)
	e.group(root)
	e.deletedObjects()
	e.end(elemRoot)
	e.end(elemKeePassFile)
	if e.err == nil {
		e.err = e.enc.Flush()
	}
	if e.err != nil {
		return nil, e.err
	}

	if !opts.Gen4 {
		return nil, nil
	}
	return e.pool.items, nil
}

// pool de-duplicates attachment content in first-reference order.
type pool struct {
	items []header.Binary
	index map[string]int
}

func (p *pool) add(att models.Attachment) {
	key := string(att.Data)
	if i, ok := p.index[key]; ok {
		p.items[i].Protected = p.items[i].Protected || att.Protected
		return
	}
	p.index[key] = len(p.items)
	p.items = append(p.items, header.Binary{Protected: att.Protected, Data: att.Data})
}

func (p *pool) ref(att models.Attachment) int {
	return p.index[string(att.Data)]
}

// buildPool walks the tree in document order: a group's entries with their
// history, then its subgroups.
func buildPool(db *models.Database) *pool {
	p := &pool{index: make(map[string]int)}
	var walk func(g *models.Group)
	walk = func(g *models.Group) {
		for _, id := range g.Entries() {
			e, _ := db.Entry(id)
			for _, att := range e.Attachments.Items() {
				p.add(att)
			}
			for _, h := range e.History {
				for _, att := range h.Attachments.Items() {
					p.add(att)
				}
			}
		}
		for _, id := range g.Groups() {
			child, _ := db.Group(id)
			walk(child)
		}
	}
	walk(db.Root())
	return p
}

type encoder struct {
	enc  *xml.Encoder
	db   *models.Database
	opts EncodeOptions
	pool *pool
	err  error
}

func (e *encoder) token(t xml.Token) {
	if e.err != nil {
		return
	}
	e.err = e.enc.EncodeToken(t)
}

func (e *encoder) start(name string, attrs ...xml.Attr) {
	e.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (e *encoder) end(name string) {
	e.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (e *encoder) textAttrs(name, value string, attrs ...xml.Attr) {
	e.start(name, attrs...)
	if value != "" {
		e.token(xml.CharData(value))
	}
	e.end(name)
}

func (e *encoder) text(name, value string) { e.textAttrs(name, value) }

func (e *encoder) bool(name string, v bool) { e.text(name, formatBool(v)) }

func (e *encoder) int(name string, v int64) { e.text(name, strconv.FormatInt(v, 10)) }

func (e *encoder) time(name string, t time.Time) { e.text(name, formatTime(t, e.opts.Gen4)) }

func (e *encoder) uuid(name string, u models.UUID) { e.text(name, formatUUID(u)) }

func (e *encoder) optionalUUID(name string, u models.UUID) {
	if !u.IsNil() {
		e.uuid(name, u)
	}
}

// protected writes a value element, masking it with the inner stream in
// the order values appear in the document.
func (e *encoder) protected(name string, value []byte, isProtected bool) {
	switch {
	case !isProtected:
		e.text(name, string(value))
	case e.opts.Stream == nil:
		e.textAttrs(name, string(value), xml.Attr{Name: xml.Name{Local: attrProtectInMemory}, Value: valueTrue})
	default:
		masked := e.opts.Stream.XOR(bytes.Clone(value))
		e.textAttrs(name, base64.StdEncoding.EncodeToString(masked),
			xml.Attr{Name: xml.Name{Local: attrProtected}, Value: valueTrue})
	}
}

// ── Meta ────────────────────────────────────────────────────────────────────

func (e *encoder) meta() {
	m := &e.db.Meta

	e.start(elemMeta)
	e.text("Generator", m.Generator)
	if len(e.opts.HeaderHash) > 0 {
		e.text("HeaderHash", base64.StdEncoding.EncodeToString(e.opts.HeaderHash))
	}
	e.time("SettingsChanged", m.SettingsChanged)
	e.text("DatabaseName", m.DatabaseName)
	e.time("DatabaseNameChanged", m.DatabaseNameChanged)
	e.text("DatabaseDescription", m.DatabaseDescription)
	e.time("DatabaseDescriptionChanged", m.DatabaseDescriptionChanged)
	e.text("DefaultUserName", m.DefaultUserName)
	e.time("DefaultUserNameChanged", m.DefaultUserNameChanged)
	e.int("MaintenanceHistoryDays", int64(m.MaintenanceHistoryDays))
	e.text("Color", m.Color)
	e.time("MasterKeyChanged", m.MasterKeyChanged)
	e.int("MasterKeyChangeRec", m.MasterKeyChangeRec)
	e.int("MasterKeyChangeForce", m.MasterKeyChangeForce)

	e.start("MemoryProtection")
	e.bool("ProtectTitle", m.MemoryProtection.ProtectTitle)
	e.bool("ProtectUserName", m.MemoryProtection.ProtectUserName)
	e.bool("ProtectPassword", m.MemoryProtection.ProtectPassword)
	e.bool("ProtectURL", m.MemoryProtection.ProtectURL)
	e.bool("ProtectNotes", m.MemoryProtection.ProtectNotes)
	e.end("MemoryProtection")

	if len(m.CustomIcons) > 0 {
		e.start("CustomIcons")
		for _, icon := range m.CustomIcons {
			e.start("Icon")
			e.uuid("UUID", icon.UUID)
			e.text("Data", base64.StdEncoding.EncodeToString(icon.Data))
			if icon.Name != "" {
				e.text("Name", icon.Name)
			}
			if !icon.LastModificationTime.IsZero() {
				e.time("LastModificationTime", icon.LastModificationTime)
			}
			e.end("Icon")
		}
		e.end("CustomIcons")
	}

	e.bool("RecycleBinEnabled", m.RecycleBinEnabled)
	e.uuid("RecycleBinUUID", m.RecycleBinUUID)
	e.time("RecycleBinChanged", m.RecycleBinChanged)
	e.uuid("EntryTemplatesGroup", m.EntryTemplatesGroup)
	e.time("EntryTemplatesGroupChanged", m.EntryTemplatesGroupChanged)
	e.uuid("LastSelectedGroup", m.LastSelectedGroup)
	e.uuid("LastTopVisibleGroup", m.LastTopVisibleGroup)
	e.int("HistoryMaxItems", int64(m.HistoryMaxItems))
	e.int("HistoryMaxSize", m.HistoryMaxSize)

	if !e.opts.Gen4 {
		e.metaBinaries()
	}
	e.customData(&m.CustomData)
	e.end(elemMeta)
}

func (e *encoder) metaBinaries() {
	if len(e.pool.items) == 0 {
		return
	}
	e.start(elemBinaries)
	for i, b := range e.pool.items {
		attrs := []xml.Attr{{Name: xml.Name{Local: attrID}, Value: strconv.Itoa(i)}}
		data := b.Data
		if e.opts.CompressBinaries {
			var err error
			if data, err = gzipBytes(data); err != nil {
				e.err = err
				return
			}
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: attrCompressed}, Value: valueTrue})
		}
		e.textAttrs(elemBinary, base64.StdEncoding.EncodeToString(data), attrs...)
	}
	e.end(elemBinaries)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *encoder) customData(cd *models.CustomData) {
	if cd.Len() == 0 {
		return
	}
	e.start(elemCustomData)
	for _, it := range cd.Items() {
		e.start(elemItem)
		e.text(elemKey, it.Key)
		e.text(elemValue, it.Value)
		if !it.LastModificationTime.IsZero() {
			e.time("LastModificationTime", it.LastModificationTime)
		}
		e.end(elemItem)
	}
	e.end(elemCustomData)
}

// ── Tree ────────────────────────────────────────────────────────────────────

func (e *encoder) times(t models.Times) {
	e.start(elemTimes)
	e.time("CreationTime", t.CreationTime)
	e.time("LastModificationTime", t.LastModificationTime)
	e.time("LastAccessTime", t.LastAccessTime)
	e.time("ExpiryTime", t.ExpiryTime)
	e.bool("Expires", t.Expires)
	e.int("UsageCount", int64(t.UsageCount))
	e.time("LocationChanged", t.LocationChanged)
	e.end(elemTimes)
}

func (e *encoder) group(g *models.Group) {
	e.start(elemGroup)
	e.uuid("UUID", g.UUID)
	e.text("Name", g.Name)
	e.text("Notes", g.Notes)
	e.int("IconID", int64(g.IconID))
	e.optionalUUID("CustomIconUUID", g.CustomIcon)
	e.times(g.Times)
	e.bool("IsExpanded", g.IsExpanded)
	e.text("DefaultAutoTypeSequence", g.DefaultAutoTypeSequence)
	e.text("EnableAutoType", formatTriState(g.EnableAutoType))
	e.text("EnableSearching", formatTriState(g.EnableSearching))
	e.uuid("LastTopVisibleEntry", g.LastTopVisibleEntry)
	e.optionalUUID("PreviousParentGroup", g.PreviousParentGroup)
	e.customData(&g.CustomData)

	for _, id := range g.Entries() {
		entry, _ := e.db.Entry(id)
		e.entry(entry, false)
	}
	for _, id := range g.Groups() {
		child, _ := e.db.Group(id)
		e.group(child)
	}
	e.end(elemGroup)
}

func (e *encoder) entry(en *models.Entry, inHistory bool) {
	e.start(elemEntry)
	e.uuid("UUID", en.UUID)
	e.int("IconID", int64(en.IconID))
	e.optionalUUID("CustomIconUUID", en.CustomIcon)
	e.text("ForegroundColor", en.ForegroundColor)
	e.text("BackgroundColor", en.BackgroundColor)
	e.text("OverrideURL", en.OverrideURL)
	e.text("Tags", formatTags(en.Tags))
	if !en.QualityCheck {
		e.bool("QualityCheck", false)
	}
	e.optionalUUID("PreviousParentGroup", en.PreviousParentGroup)
	e.times(en.Times)
	e.customData(&en.CustomData)

	for _, at := range en.Attributes.Items() {
		e.start(elemString)
		e.text(elemKey, at.Key)
		e.protected(elemValue, []byte(at.Value), at.Protected)
		e.end(elemString)
	}
	for _, att := range en.Attachments.Items() {
		e.start(elemBinary)
		e.text(elemKey, att.Name)
		e.textAttrs(elemValue, "", xml.Attr{Name: xml.Name{Local: attrRef}, Value: strconv.Itoa(e.pool.ref(att))})
		e.end(elemBinary)
	}

	e.start("AutoType")
	e.bool("Enabled", en.AutoType.Enabled)
	e.int("DataTransferObfuscation", int64(en.AutoType.Obfuscation))
	if en.AutoType.DefaultSequence != "" {
		e.text("DefaultSequence", en.AutoType.DefaultSequence)
	}
	for _, as := range en.AutoType.Associations {
		e.start("Association")
		e.text("Window", as.Window)
		e.text("KeystrokeSequence", as.Sequence)
		e.end("Association")
	}
	e.end("AutoType")

	if !inHistory {
		e.start(elemHistory)
		for _, h := range en.History {
			e.entry(h, true)
		}
		e.end(elemHistory)
	}
	e.end(elemEntry)
}

func (e *encoder) deletedObjects() {
	e.start(elemDeletedObjects)
	for _, d := range e.db.DeletedObjects {
		e.start(elemDeletedObject)
		e.uuid("UUID", d.UUID)
		e.time("DeletionTime", d.DeletionTime)
		e.end(elemDeletedObject)
	}
	e.end(elemDeletedObjects)
}
