package header

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/variantmap"
	"github.com/google/uuid"
)

// reader latches the first error so that a sequence of reads can be
// checked once.
type reader struct {
	r   io.Reader
	err error
}

func (rr *reader) readFull(p []byte) {
	if rr.err != nil {
		return
	}
	_, rr.err = io.ReadFull(rr.r, p)
}

func (rr *reader) readByte() byte {
	var b [1]byte
	rr.readFull(b[:])
	return b[0]
}

func (rr *reader) readUint16() uint16 {
	var b [2]byte
	rr.readFull(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (rr *reader) readUint32() uint32 {
	var b [4]byte
	rr.readFull(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (rr *reader) truncated() error {
	if errors.Is(rr.err, io.EOF) || errors.Is(rr.err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return rr.err
}

// ReadVersion reads only the signatures and the version word.
func ReadVersion(r io.Reader) (Version, error) {
	rr := &reader{r: r}
	sig1 := rr.readUint32()
	sig2 := rr.readUint32()
	version := Version(rr.readUint32())
	if rr.err != nil {
		return 0, rr.truncated()
	}

	if sig1 != Signature1 {
		return 0, ErrInvalidSignature
	}
	if sig2 == signature2KeePass1 {
		return 0, fmt.Errorf("%w: KeePass 1 databases are not supported", ErrUnsupportedVersion)
	}
	if sig2 != Signature2 {
		return 0, ErrInvalidSignature
	}

	switch uint32(version) & versionCriticalMask {
	case uint32(Version31) & versionCriticalMask, uint32(Version40) & versionCriticalMask:
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedVersion, version)
	}
	return version, nil
}

// Read parses the outer header and returns it together with the exact
// bytes consumed. Reading stops right after the End field, so r is left
// positioned at the Gen4 hash trailer or the Gen3 encrypted body.
func Read(r io.Reader) (*Header, []byte, error) {
	var raw bytes.Buffer
	tee := io.TeeReader(r, &raw)

	version, err := ReadVersion(tee)
	if err != nil {
		return nil, nil, err
	}

	h := &Header{Version: version}
	st := &parseState{seen: make(map[FieldID]bool)}
	rr := &reader{r: tee}

	for {
		id := FieldID(rr.readByte())

		var length uint32
		if version.IsGen4() {
			length = rr.readUint32()
		} else {
			length = uint32(rr.readUint16())
		}
		if rr.err != nil {
			return nil, nil, rr.truncated()
		}
		if length > maxFieldSize {
			return nil, nil, invalidField(id, fmt.Sprintf("length %d too large", length), nil)
		}

		data := make([]byte, length)
		rr.readFull(data)
		if rr.err != nil {
			return nil, nil, rr.truncated()
		}

		if id == FieldEnd {
			break
		}
		if st.seen[id] {
			return nil, nil, invalidField(id, "duplicate field", nil)
		}
		st.seen[id] = true

		if err := h.readField(st, id, data); err != nil {
			return nil, nil, err
		}
	}

	if err := h.finish(st); err != nil {
		return nil, nil, err
	}

	return h, raw.Bytes(), nil
}

type parseState struct {
	seen            map[FieldID]bool
	transformSeed   []byte
	transformRounds uint64
}

func verifyFieldSize(id FieldID, data []byte, want int) error {
	if len(data) != want {
		return invalidField(id, fmt.Sprintf("length %d, want %d", len(data), want), nil)
	}
	return nil
}

func (h *Header) readField(st *parseState, id FieldID, data []byte) error {
	gen4 := h.Version.IsGen4()
	if gen4 && isGen3Only(id) {
		return invalidField(id, "legacy field in a 4.x header", nil)
	}
	if !gen4 && isGen4Only(id) {
		return invalidField(id, "4.x field in a 3.x header", nil)
	}

	switch id {
	case FieldComment:
		h.Comment = data

	case FieldCipherID:
		if err := verifyFieldSize(id, data, 16); err != nil {
			return err
		}
		c, err := crypto.CipherFromUUID(uuid.UUID(data))
		if err != nil {
			return err
		}
		h.Cipher = c

	case FieldCompression:
		if err := verifyFieldSize(id, data, 4); err != nil {
			return err
		}
		c := Compression(binary.LittleEndian.Uint32(data))
		if c > CompressionGzip {
			return fmt.Errorf("%w: %d", ErrUnsupportedCompression, c)
		}
		h.Compression = c

	case FieldMasterSeed:
		if err := verifyFieldSize(id, data, MasterSeedSize); err != nil {
			return err
		}
		h.MasterSeed = data

	case FieldEncryptionIV:
		h.EncryptionIV = data

	case FieldTransformSeed:
		if err := verifyFieldSize(id, data, TransformSeedSize); err != nil {
			return err
		}
		st.transformSeed = data

	case FieldTransformRounds:
		if err := verifyFieldSize(id, data, 8); err != nil {
			return err
		}
		st.transformRounds = binary.LittleEndian.Uint64(data)

	case FieldProtectedStreamKey:
		if err := verifyFieldSize(id, data, ProtectedKeySize); err != nil {
			return err
		}
		h.ProtectedStreamKey = data

	case FieldStreamStartBytes:
		if err := verifyFieldSize(id, data, StreamStartBytesSize); err != nil {
			return err
		}
		h.StreamStartBytes = data

	case FieldInnerRandomStreamID:
		if err := verifyFieldSize(id, data, 4); err != nil {
			return err
		}
		s := crypto.StreamID(binary.LittleEndian.Uint32(data))
		if err := checkStream(s); err != nil {
			return err
		}
		h.InnerRandomStream = s

	case FieldKdfParameters:
		m, err := variantmap.Decode(data)
		if err != nil {
			return invalidField(id, "bad variant map", err)
		}
		kdf, err := crypto.KDFFromVariantMap(m)
		if err != nil {
			return err
		}
		h.KDF = kdf

	case FieldPublicCustomData:
		m, err := variantmap.Decode(data)
		if err != nil {
			return invalidField(id, "bad variant map", err)
		}
		h.PublicCustomData = m

	default:
		return invalidField(id, "unknown field", nil)
	}

	return nil
}

func checkStream(s crypto.StreamID) error {
	switch s {
	case crypto.StreamNone, crypto.StreamSalsa20, crypto.StreamChaCha20:
		return nil
	default:
		return fmt.Errorf("%w: %s", crypto.ErrUnsupportedStream, s)
	}
}

// finish checks required fields and assembles the Gen3 KDF.
func (h *Header) finish(st *parseState) error {
	required := []FieldID{FieldCipherID, FieldCompression, FieldMasterSeed, FieldEncryptionIV}
	if h.Version.IsGen4() {
		required = append(required, FieldKdfParameters)
	} else {
		required = append(required, h.gen3Fields()...)
	}
	for _, id := range required {
		if !st.seen[id] {
			return fmt.Errorf("%w: %s", ErrMissingHeaderField, id)
		}
	}

	if len(h.EncryptionIV) != h.Cipher.IVSize() {
		return invalidField(FieldEncryptionIV, h.Cipher.String(), crypto.ErrInvalidIVSize)
	}

	if !h.Version.IsGen4() {
		kdf := &crypto.AESKDF{Seed: st.transformSeed, Rounds: st.transformRounds}
		if err := kdf.Validate(); err != nil {
			return err
		}
		h.KDF = kdf
	}

	return nil
}
