package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/google/uuid"
)

type writer struct {
	w   io.Writer
	err error
}

func (ww *writer) write(p []byte) {
	if ww.err != nil {
		return
	}
	_, ww.err = ww.w.Write(p)
}

func (ww *writer) writeByte(b byte) {
	ww.write([]byte{b})
}

func (ww *writer) writeUint16(v uint16) {
	ww.write(binary.LittleEndian.AppendUint16(nil, v))
}

func (ww *writer) writeUint32(v uint32) {
	ww.write(binary.LittleEndian.AppendUint32(nil, v))
}

func uint32Bytes(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

// Marshal validates the header for its version and serializes it. Fields
// are always emitted in the same order.
func (h *Header) Marshal() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	ww := &writer{w: &buf}
	gen4 := h.Version.IsGen4()

	writeField := func(id FieldID, data []byte) {
		ww.writeByte(byte(id))
		if gen4 {
			ww.writeUint32(uint32(len(data)))
		} else {
			ww.writeUint16(uint16(len(data)))
		}
		ww.write(data)
	}

	ww.writeUint32(Signature1)
	ww.writeUint32(Signature2)
	ww.writeUint32(uint32(h.Version))

	if len(h.Comment) > 0 {
		writeField(FieldComment, h.Comment)
	}
	cipherID := h.Cipher.UUID()
	writeField(FieldCipherID, cipherID[:])
	writeField(FieldCompression, uint32Bytes(uint32(h.Compression)))
	writeField(FieldMasterSeed, h.MasterSeed)

	if gen4 {
		writeField(FieldEncryptionIV, h.EncryptionIV)

		kdfParams, err := h.KDF.VariantMap().Encode()
		if err != nil {
			return nil, err
		}
		writeField(FieldKdfParameters, kdfParams)

		if h.PublicCustomData.Len() > 0 {
			custom, err := h.PublicCustomData.Encode()
			if err != nil {
				return nil, err
			}
			writeField(FieldPublicCustomData, custom)
		}
	} else {
		aes := h.KDF.(*crypto.AESKDF)
		writeField(FieldTransformSeed, aes.Seed)
		writeField(FieldTransformRounds, binary.LittleEndian.AppendUint64(nil, aes.Rounds))
		writeField(FieldEncryptionIV, h.EncryptionIV)
		writeField(FieldProtectedStreamKey, h.ProtectedStreamKey)
		writeField(FieldStreamStartBytes, h.StreamStartBytes)
		writeField(FieldInnerRandomStreamID, uint32Bytes(uint32(h.InnerRandomStream)))
	}

	writeField(FieldEnd, endOfHeader)

	if ww.err != nil {
		return nil, ww.err
	}
	return buf.Bytes(), nil
}

// Validate checks that the header can be written in its version.
func (h *Header) Validate() error {
	if !h.Version.IsGen4() && h.Version.Major() != 3 {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, h.Version)
	}
	if h.Cipher.UUID() == uuid.Nil {
		return fmt.Errorf("%w: %s", crypto.ErrUnsupportedCipher, h.Cipher)
	}
	if h.Compression > CompressionGzip {
		return fmt.Errorf("%w: %d", ErrUnsupportedCompression, h.Compression)
	}
	if len(h.MasterSeed) != MasterSeedSize {
		return invalidField(FieldMasterSeed, fmt.Sprintf("length %d", len(h.MasterSeed)), nil)
	}
	if len(h.EncryptionIV) != h.Cipher.IVSize() {
		return invalidField(FieldEncryptionIV, h.Cipher.String(), crypto.ErrInvalidIVSize)
	}
	if h.KDF == nil {
		return fmt.Errorf("%w: %s", ErrMissingHeaderField, FieldKdfParameters)
	}
	if err := h.KDF.Validate(); err != nil {
		return err
	}
	if len(h.Comment) > 0xFFFF {
		return invalidField(FieldComment, "too long", nil)
	}

	if h.Version.IsGen4() {
		return nil
	}

	if _, ok := h.KDF.(*crypto.AESKDF); !ok {
		return invalidField(FieldKdfParameters, "3.x headers only carry AES-KDF", nil)
	}
	if h.PublicCustomData.Len() > 0 {
		return invalidField(FieldPublicCustomData, "not supported in 3.x headers", nil)
	}
	if len(h.ProtectedStreamKey) != ProtectedKeySize {
		return invalidField(FieldProtectedStreamKey, fmt.Sprintf("length %d", len(h.ProtectedStreamKey)), nil)
	}
	if len(h.StreamStartBytes) != StreamStartBytesSize {
		return invalidField(FieldStreamStartBytes, fmt.Sprintf("length %d", len(h.StreamStartBytes)), nil)
	}
	return checkStream(h.InnerRandomStream)
}
