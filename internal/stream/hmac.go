package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
)

// HMACBlockReader reads a Gen4 HMAC block stream:
//
//	HMAC-SHA256 | size int32 | data
//
// Block i is authenticated with crypto.HMACBlockKey(base, i) over
// uint64 LE i ‖ size ‖ data. The stream ends with an authenticated empty
// block.
type HMACBlockReader struct {
	r       io.Reader
	baseKey []byte
	index   uint64
	buf     []byte
	done    bool
	err     error
}

// NewHMACBlockReader returns a reader verifying blocks with hmacBaseKey.
func NewHMACBlockReader(r io.Reader, hmacBaseKey []byte) *HMACBlockReader {
	return &HMACBlockReader{r: r, baseKey: hmacBaseKey}
}

func (h *HMACBlockReader) Read(p []byte) (int, error) {
	for len(h.buf) == 0 {
		if h.err != nil {
			return 0, h.err
		}
		if h.done {
			return 0, io.EOF
		}
		h.err = h.nextBlock()
	}

	n := copy(p, h.buf)
	h.buf = h.buf[n:]
	return n, nil
}

func (h *HMACBlockReader) nextBlock() error {
	var head [sha256.Size + 4]byte
	if _, err := io.ReadFull(h.r, head[:]); err != nil {
		return unexpectedEOF(err)
	}

	mac := head[:sha256.Size]
	sizeBytes := head[sha256.Size:]
	size := int32(binary.LittleEndian.Uint32(sizeBytes))
	if size < 0 || size > maxBlockSize {
		return fmt.Errorf("%w: block size %d", ErrMalformedBlock, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(h.r, data); err != nil {
		return unexpectedEOF(err)
	}

	if !hmac.Equal(blockMAC(h.baseKey, h.index, sizeBytes, data), mac) {
		return fmt.Errorf("%w: block %d", ErrBlockHMACMismatch, h.index)
	}

	h.index++
	if size == 0 {
		h.done = true
		return nil
	}
	h.buf = data
	return nil
}

// HMACBlockWriter frames a payload as a Gen4 HMAC block stream.
type HMACBlockWriter struct {
	w         io.Writer
	baseKey   []byte
	blockSize int
	buf       []byte
	index     uint64
	closed    bool
}

// NewHMACBlockWriter returns a writer emitting blocks of blockSize bytes.
// A non-positive blockSize selects [DefaultBlockSize].
func NewHMACBlockWriter(w io.Writer, hmacBaseKey []byte, blockSize int) *HMACBlockWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &HMACBlockWriter{w: w, baseKey: hmacBaseKey, blockSize: blockSize}
}

func (h *HMACBlockWriter) Write(p []byte) (int, error) {
	if h.closed {
		return 0, errWriteAfterClose
	}
	written := 0
	for len(p) > 0 {
		n := min(h.blockSize-len(h.buf), len(p))
		h.buf = append(h.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(h.buf) == h.blockSize {
			if err := h.writeBlock(h.buf); err != nil {
				return written, err
			}
			h.buf = h.buf[:0]
		}
	}
	return written, nil
}

// Close writes the pending block and the authenticated terminating block.
func (h *HMACBlockWriter) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if len(h.buf) > 0 {
		if err := h.writeBlock(h.buf); err != nil {
			return err
		}
	}
	return h.writeBlock(nil)
}

func (h *HMACBlockWriter) writeBlock(data []byte) error {
	sizeBytes := binary.LittleEndian.AppendUint32(nil, uint32(len(data)))

	out := blockMAC(h.baseKey, h.index, sizeBytes, data)
	out = append(out, sizeBytes...)
	if _, err := h.w.Write(out); err != nil {
		return err
	}
	if _, err := h.w.Write(data); err != nil {
		return err
	}
	h.index++
	return nil
}

func blockMAC(baseKey []byte, index uint64, sizeBytes, data []byte) []byte {
	mac := hmac.New(sha256.New, crypto.HMACBlockKey(baseKey, index))
	_ = binary.Write(mac, binary.LittleEndian, index)
	mac.Write(sizeBytes)
	mac.Write(data)
	return mac.Sum(nil)
}
