package kdbx

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/header"
	"github.com/MKhiriev/kdbx-keeper/internal/stream"
	"github.com/MKhiriev/kdbx-keeper/internal/xmltree"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// Open decrypts a container held in memory.
func Open(data []byte, key *crypto.CompositeKey, opts ...Option) (*models.Database, error) {
	return Read(bytes.NewReader(data), key, opts...)
}

// Read decrypts a container from r. The returned database carries the
// cipher, compression and KDF of the file in its Settings so that a later
// Save keeps them.
func Read(r io.Reader, key *crypto.CompositeKey, opts ...Option) (*models.Database, error) {
	o := newOptions(opts)

	h, raw, err := header.Read(r)
	if err != nil {
		return nil, categorize(fmt.Errorf("read header: %w", err))
	}

	var db *models.Database
	if h.Version.IsGen4() {
		db, err = o.readGen4(r, h, raw, key)
	} else {
		db, err = o.readGen3(r, h, raw, key)
	}
	if err != nil {
		return nil, categorize(err)
	}

	db.Settings = models.FormatSettings{
		Cipher:      h.Cipher,
		Compression: h.Compression == header.CompressionGzip,
		KDF:         h.KDF,
	}
	return db, nil
}

// ReadHeader parses only the outer header. It needs no credentials.
func ReadHeader(r io.Reader) (*header.Header, error) {
	h, _, err := header.Read(r)
	if err != nil {
		return nil, categorize(fmt.Errorf("read header: %w", err))
	}
	return h, nil
}

func (o *options) deriveKeys(h *header.Header, key *crypto.CompositeKey) (cipherKey, transformed []byte, err error) {
	if aesKDF, ok := h.KDF.(*crypto.AESKDF); ok {
		if err = aesKDF.CheckRounds(o.maxAESRounds); err != nil {
			return nil, nil, err
		}
	}
	transformed, err = o.keys.TransformKey(key, h.KDF)
	if err != nil {
		return nil, nil, fmt.Errorf("transform key: %w", err)
	}
	cr, err := key.ChallengeResponse(h.MasterSeed)
	if err != nil {
		return nil, nil, err
	}
	return o.keys.CipherKey(h.MasterSeed, transformed, cr), transformed, nil
}

func (o *options) readGen3(r io.Reader, h *header.Header, raw []byte, key *crypto.CompositeKey) (*models.Database, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	cipherKey, _, err := o.deriveKeys(h, key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(cipherKey)

	plain, err := o.keys.Decrypt(h.Cipher, cipherKey, h.EncryptionIV, body)
	if err != nil {
		return nil, fmt.Errorf("decrypt body: %w", err)
	}
	if len(plain) < len(h.StreamStartBytes) ||
		subtle.ConstantTimeCompare(plain[:len(h.StreamStartBytes)], h.StreamStartBytes) != 1 {
		return nil, ErrStreamStartMismatch
	}

	blocks := stream.NewHashedBlockReader(bytes.NewReader(plain[len(h.StreamStartBytes):]))
	doc, err := decompress(blocks, h.Compression)
	if err != nil {
		return nil, err
	}

	rs, err := crypto.NewRandomStream(h.InnerRandomStream, h.ProtectedStreamKey)
	if err != nil {
		return nil, err
	}
	db, err := xmltree.Decode(bytes.NewReader(doc), xmltree.DecodeOptions{Stream: rs})
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	if err := header.VerifyHash(raw, db.Meta.HeaderHash); err != nil {
		return nil, err
	}
	db.Meta.HeaderHash = nil
	return db, nil
}

func (o *options) readGen4(r io.Reader, h *header.Header, raw []byte, key *crypto.CompositeKey) (*models.Database, error) {
	mac, err := header.ReadTrailer(r, raw)
	if err != nil {
		return nil, fmt.Errorf("read header trailer: %w", err)
	}

	cipherKey, transformed, err := o.deriveKeys(h, key)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(cipherKey)

	hmacKey := o.keys.HMACBaseKey(h.MasterSeed, transformed)
	defer crypto.Wipe(hmacKey)
	if err := header.VerifyHMAC(raw, mac, hmacKey); err != nil {
		return nil, err
	}

	body, err := stream.ReadAll(stream.NewHMACBlockReader(r, hmacKey))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	plain, err := o.keys.Decrypt(h.Cipher, cipherKey, h.EncryptionIV, body)
	if err != nil {
		return nil, fmt.Errorf("decrypt body: %w", err)
	}

	payload, err := decompress(bytes.NewReader(plain), h.Compression)
	if err != nil {
		return nil, err
	}

	pr := bytes.NewReader(payload)
	inner, err := header.ReadInner(pr)
	if err != nil {
		return nil, fmt.Errorf("read inner header: %w", err)
	}
	rs, err := crypto.NewRandomStream(inner.StreamID, inner.StreamKey)
	if err != nil {
		return nil, err
	}

	db, err := xmltree.Decode(pr, xmltree.DecodeOptions{Stream: rs, Binaries: inner.Binaries})
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	db.PublicCustomData = h.PublicCustomData
	return db, nil
}

func decompress(r io.Reader, c header.Compression) ([]byte, error) {
	zr, err := stream.NewDecompressor(r, c == header.CompressionGzip)
	if err != nil {
		return nil, err
	}
	return stream.ReadAll(zr)
}
