package kdbx

import (
	"bytes"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/stream"
	"github.com/MKhiriev/kdbx-keeper/internal/xmltree"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// Save encrypts db into a new container. Every save draws a fresh master
// seed, IV, KDF salt and inner stream key.
func Save(db *models.Database, key *crypto.CompositeKey, version FormatVersion, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, db, key, version, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write is Save streaming into w. Nothing is written when preparing the
// container fails.
func Write(w io.Writer, db *models.Database, key *crypto.CompositeKey, version FormatVersion, opts ...Option) error {
	o := newOptions(opts)

	var (
		out []byte
		err error
	)
	switch version {
	case Gen3:
		out, err = o.writeGen3(db, key)
	case Gen4:
		out, err = o.writeGen4(db, key)
	default:
		err = fmt.Errorf("%w: %s", ErrIncompatibleFormat, version)
	}
	if err != nil {
		return categorize(err)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("%w: write container: %w", ErrFormat, err)
	}
	return nil
}

// CheckCompatible reports why db cannot be written as version.
func CheckCompatible(db *models.Database, version FormatVersion) error {
	if version != Gen3 {
		return nil
	}
	if _, ok := db.Settings.KDF.(*crypto.Argon2KDF); ok {
		return fmt.Errorf("%w: Argon2 requires KDBX 4", ErrIncompatibleFormat)
	}
	if db.Settings.Cipher == crypto.CipherChaCha20 {
		return fmt.Errorf("%w: ChaCha20 requires KDBX 4", ErrIncompatibleFormat)
	}
	if db.PublicCustomData.Len() > 0 {
		return fmt.Errorf("%w: public custom data requires KDBX 4", ErrIncompatibleFormat)
	}
	return nil
}

func (o *options) newHeader(db *models.Database, version header.Version) (*header.Header, error) {
	h := &header.Header{
		Version: version,
		Cipher:  db.Settings.Cipher,
	}
	if h.Cipher == 0 {
		h.Cipher = crypto.CipherAES256
	}
	if db.Settings.Compression {
		h.Compression = header.CompressionGzip
	}

	switch {
	case db.Settings.KDF != nil:
		h.KDF = db.Settings.KDF.Clone()
	case version.IsGen4():
		h.KDF = crypto.NewArgon2KDF(crypto.Argon2d)
	default:
		h.KDF = crypto.NewAESKDF()
	}
	if err := o.keys.RandomizeKDF(h.KDF); err != nil {
		return nil, err
	}

	var err error
	if h.MasterSeed, err = o.keys.GenerateMasterSeed(); err != nil {
		return nil, err
	}
	if h.EncryptionIV, err = o.keys.GenerateIV(h.Cipher); err != nil {
		return nil, err
	}
	return h, nil
}

func (o *options) writeGen3(db *models.Database, key *crypto.CompositeKey) ([]byte, error) {
	if err := CheckCompatible(db, Gen3); err != nil {
		return nil, err
	}
	if err := checkAttachments(db); err != nil {
		return nil, err
	}

	h, err := o.newHeader(db, header.Version31)
	if err != nil {
		return nil, err
	}
	if h.ProtectedStreamKey, err = o.keys.GenerateKey(header.ProtectedKeySize); err != nil {
		return nil, err
	}
	if h.StreamStartBytes, err = o.keys.GenerateKey(header.StreamStartBytesSize); err != nil {
		return nil, err
	}
	h.InnerRandomStream = crypto.StreamSalsa20

	raw, err := h.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	rs, err := crypto.NewRandomStream(h.InnerRandomStream, h.ProtectedStreamKey)
	if err != nil {
		return nil, err
	}

	plain := bytes.NewBuffer(bytes.Clone(h.StreamStartBytes))
	blocks := stream.NewHashedBlockWriter(plain, o.blockSize)
	zw := stream.NewCompressor(blocks, h.Compression == header.CompressionGzip)
	_, err = xmltree.Encode(zw, db, xmltree.EncodeOptions{
		Stream:           rs,
		HeaderHash:       header.Hash(raw),
		CompressBinaries: h.Compression == header.CompressionGzip,
	})
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if err := blocks.Close(); err != nil {
		return nil, err
	}

	cipherKey, _, err := o.deriveKeys(h, key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(cipherKey)

	body, err := o.keys.Encrypt(h.Cipher, cipherKey, h.EncryptionIV, plain.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}
	return append(raw, body...), nil
}

func (o *options) writeGen4(db *models.Database, key *crypto.CompositeKey) ([]byte, error) {
	if err := checkAttachments(db); err != nil {
		return nil, err
	}

	version := header.Version40
	if needsVersion41(db) {
		version = header.Version41
	}
	h, err := o.newHeader(db, version)
	if err != nil {
		return nil, err
	}
	if db.PublicCustomData.Len() > 0 {
		h.PublicCustomData = db.PublicCustomData.Clone()
	}

	raw, err := h.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	inner := &header.InnerHeader{StreamID: crypto.StreamChaCha20}
	if inner.StreamKey, err = o.keys.GenerateKey(header.InnerStreamKeySize); err != nil {
		return nil, err
	}
	rs, err := crypto.NewRandomStream(inner.StreamID, inner.StreamKey)
	if err != nil {
		return nil, err
	}

	var doc bytes.Buffer
	inner.Binaries, err = xmltree.Encode(&doc, db, xmltree.EncodeOptions{Stream: rs, Gen4: true})
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	innerRaw, err := inner.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal inner header: %w", err)
	}

	var plain bytes.Buffer
	zw := stream.NewCompressor(&plain, h.Compression == header.CompressionGzip)
	if _, err := zw.Write(innerRaw); err != nil {
		return nil, err
	}
	if _, err := doc.WriteTo(zw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	cipherKey, transformed, err := o.deriveKeys(h, key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(cipherKey)
	hmacKey := o.keys.HMACBaseKey(h.MasterSeed, transformed)
	defer crypto.Wipe(hmacKey)

	body, err := o.keys.Encrypt(h.Cipher, cipherKey, h.EncryptionIV, plain.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}

	out := bytes.NewBuffer(raw)
	out.Write(header.Trailer(raw, hmacKey))
	blocks := stream.NewHMACBlockWriter(out, hmacKey, o.blockSize)
	if _, err := blocks.Write(body); err != nil {
		return nil, err
	}
	if err := blocks.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func checkAttachments(db *models.Database) error {
	for _, e := range db.EntriesRecursive(db.RootUUID()) {
		for _, item := range append([]*models.Entry{e}, e.History...) {
			for _, a := range item.Attachments.Items() {
				if len(a.Data) > MaxAttachmentSize {
					return fmt.Errorf("%w: %q in %s", ErrAttachmentTooLarge, a.Name, e.UUID)
				}
			}
		}
	}
	return nil
}

// needsVersion41 reports whether db uses fields introduced in KDBX 4.1.
func needsVersion41(db *models.Database) bool {
	for _, icon := range db.Meta.CustomIcons {
		if icon.Name != "" || !icon.LastModificationTime.IsZero() {
			return true
		}
	}
	if hasItemTimes(&db.Meta.CustomData) {
		return true
	}
	for _, g := range db.GroupsRecursive(db.RootUUID()) {
		if !g.PreviousParentGroup.IsNil() || hasItemTimes(&g.CustomData) {
			return true
		}
	}
	for _, e := range db.EntriesRecursive(db.RootUUID()) {
		if !e.PreviousParentGroup.IsNil() || !e.QualityCheck || hasItemTimes(&e.CustomData) {
			return true
		}
	}
	return false
}

func hasItemTimes(cd *models.CustomData) bool {
	for _, item := range cd.Items() {
		if !item.LastModificationTime.IsZero() {
			return true
		}
	}
	return false
}
