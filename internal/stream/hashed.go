// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package stream implements the framed body streams of the container: the
// SHA-256 hashed blocks of Gen3, the HMAC-authenticated blocks of Gen4 and
// the optional gzip layer underneath both.
//
// Readers verify each block completely before any of its bytes are handed
// to the caller. Writers buffer up to one block and must be closed to emit
// the terminating empty block.
package stream

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize is the payload size of a full block.
const DefaultBlockSize = 1 << 20

// maxBlockSize rejects absurd lengths before allocating.
const maxBlockSize = 256 << 20

// HashedBlockReader reads a Gen3 hashed block stream:
//
//	index uint32 | SHA-256(data) | size int32 | data
//
// terminated by a block with size 0 and an all-zero hash.
type HashedBlockReader struct {
	r     io.Reader
	index uint32
	buf   []byte
	done  bool
	err   error
}

// NewHashedBlockReader returns a reader over the payload framed in r.
func NewHashedBlockReader(r io.Reader) *HashedBlockReader {
	return &HashedBlockReader{r: r}
}

func (h *HashedBlockReader) Read(p []byte) (int, error) {
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

func (h *HashedBlockReader) nextBlock() error {
	var head [4 + sha256.Size + 4]byte
	if _, err := io.ReadFull(h.r, head[:]); err != nil {
		return unexpectedEOF(err)
	}

	index := binary.LittleEndian.Uint32(head[0:4])
	hash := head[4 : 4+sha256.Size]
	size := int32(binary.LittleEndian.Uint32(head[4+sha256.Size:]))

	if index != h.index {
		return fmt.Errorf("%w: got %d, want %d", ErrBlockIndexMismatch, index, h.index)
	}
	if size < 0 || size > maxBlockSize {
		return fmt.Errorf("%w: block size %d", ErrMalformedBlock, size)
	}

	if size == 0 {
		var zero [sha256.Size]byte
		if !bytes.Equal(hash, zero[:]) {
			return fmt.Errorf("%w: final block", ErrBlockHashMismatch)
		}
		h.done = true
		return nil
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(h.r, data); err != nil {
		return unexpectedEOF(err)
	}
	sum := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(sum[:], hash) != 1 {
		return fmt.Errorf("%w: block %d", ErrBlockHashMismatch, index)
	}

	h.index++
	h.buf = data
	return nil
}

// HashedBlockWriter frames a payload as a Gen3 hashed block stream.
type HashedBlockWriter struct {
	w         io.Writer
	blockSize int
	buf       []byte
	index     uint32
	closed    bool
}

// NewHashedBlockWriter returns a writer emitting blocks of blockSize bytes.
// A non-positive blockSize selects [DefaultBlockSize].
func NewHashedBlockWriter(w io.Writer, blockSize int) *HashedBlockWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &HashedBlockWriter{w: w, blockSize: blockSize}
}

func (h *HashedBlockWriter) Write(p []byte) (int, error) {
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
			if err := h.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Close writes the pending block and the terminating block.
func (h *HashedBlockWriter) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if len(h.buf) > 0 {
		if err := h.flush(); err != nil {
			return err
		}
	}
	return h.writeBlock(nil)
}

func (h *HashedBlockWriter) flush() error {
	err := h.writeBlock(h.buf)
	h.buf = h.buf[:0]
	return err
}

func (h *HashedBlockWriter) writeBlock(data []byte) error {
	head := binary.LittleEndian.AppendUint32(nil, h.index)
	if len(data) > 0 {
		sum := sha256.Sum256(data)
		head = append(head, sum[:]...)
	} else {
		head = append(head, make([]byte, sha256.Size)...)
	}
	head = binary.LittleEndian.AppendUint32(head, uint32(len(data)))

	if _, err := h.w.Write(head); err != nil {
		return err
	}
	if _, err := h.w.Write(data); err != nil {
		return err
	}
	h.index++
	return nil
}

var errWriteAfterClose = errors.New("write after close")

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: missing terminating block", ErrMalformedBlock)
	}
	return err
}
