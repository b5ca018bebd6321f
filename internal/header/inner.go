package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
)

// InnerFieldID identifies a field of the Gen4 inner header.
type InnerFieldID byte

const (
	InnerFieldEnd       InnerFieldID = 0
	InnerFieldStreamID  InnerFieldID = 1
	InnerFieldStreamKey InnerFieldID = 2
	InnerFieldBinary    InnerFieldID = 3
)

const binaryFlagProtected byte = 0x01

// maxInnerFieldSize caps a single attachment.
const maxInnerFieldSize = 256 << 20

// Binary is one attachment of the Gen4 binary pool. Attachments reference
// binaries by their index in [InnerHeader.Binaries].
type Binary struct {
	Protected bool
	Data      []byte
}

// InnerHeader precedes the XML document inside the decrypted Gen4 payload.
type InnerHeader struct {
	StreamID  crypto.StreamID
	StreamKey []byte
	Binaries  []Binary
}

// ReadInner parses the inner header and leaves r positioned at the first
// byte of the XML document.
func ReadInner(r io.Reader) (*InnerHeader, error) {
	rr := &reader{r: r}
	h := &InnerHeader{}
	var haveID, haveKey bool

	for {
		id := InnerFieldID(rr.readByte())
		length := rr.readUint32()
		if rr.err != nil {
			return nil, rr.truncated()
		}
		if length > maxInnerFieldSize {
			return nil, invalidField(FieldID(id), fmt.Sprintf("inner length %d too large", length), nil)
		}

		data := make([]byte, length)
		rr.readFull(data)
		if rr.err != nil {
			return nil, rr.truncated()
		}

		switch id {
		case InnerFieldEnd:
			if !haveID || !haveKey {
				return nil, fmt.Errorf("%w: inner random stream", ErrMissingHeaderField)
			}
			return h, nil

		case InnerFieldStreamID:
			if haveID {
				return nil, invalidField(FieldID(id), "duplicate inner stream id", nil)
			}
			if err := verifyFieldSize(FieldID(id), data, 4); err != nil {
				return nil, err
			}
			s := crypto.StreamID(binary.LittleEndian.Uint32(data))
			if err := checkStream(s); err != nil {
				return nil, err
			}
			h.StreamID = s
			haveID = true

		case InnerFieldStreamKey:
			if haveKey {
				return nil, invalidField(FieldID(id), "duplicate inner stream key", nil)
			}
			if len(data) == 0 {
				return nil, invalidField(FieldID(id), "empty inner stream key", nil)
			}
			h.StreamKey = data
			haveKey = true

		case InnerFieldBinary:
			if len(data) == 0 {
				return nil, invalidField(FieldID(id), "binary without flags", nil)
			}
			h.Binaries = append(h.Binaries, Binary{
				Protected: data[0]&binaryFlagProtected != 0,
				Data:      data[1:],
			})

		default:
			return nil, invalidField(FieldID(id), "unknown inner field", nil)
		}
	}
}

// Marshal serializes the inner header including the End field.
func (h *InnerHeader) Marshal() ([]byte, error) {
	if err := checkStream(h.StreamID); err != nil {
		return nil, err
	}
	if len(h.StreamKey) == 0 {
		return nil, fmt.Errorf("%w: inner stream key", ErrMissingHeaderField)
	}

	var buf bytes.Buffer
	ww := &writer{w: &buf}
	writeField := func(id InnerFieldID, parts ...[]byte) {
		n := 0
		for _, p := range parts {
			n += len(p)
		}
		ww.writeByte(byte(id))
		ww.writeUint32(uint32(n))
		for _, p := range parts {
			ww.write(p)
		}
	}

	writeField(InnerFieldStreamID, uint32Bytes(uint32(h.StreamID)))
	writeField(InnerFieldStreamKey, h.StreamKey)
	for _, b := range h.Binaries {
		var flags byte
		if b.Protected {
			flags |= binaryFlagProtected
		}
		writeField(InnerFieldBinary, []byte{flags}, b.Data)
	}
	writeField(InnerFieldEnd)

	if ww.err != nil {
		return nil, ww.err
	}
	return buf.Bytes(), nil
}
