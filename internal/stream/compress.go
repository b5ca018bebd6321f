package stream

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewCompressor wraps w with gzip when compress is true. Closing the
// result flushes the gzip trailer but never closes w.
func NewCompressor(w io.Writer, compress bool) io.WriteCloser {
	if !compress {
		return nopWriteCloser{w}
	}
	return gzip.NewWriter(w)
}

// NewDecompressor wraps r with a gzip reader when compressed is true.
func NewDecompressor(r io.Reader, compressed bool) (io.Reader, error) {
	if !compressed {
		return r, nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	return zr, nil
}

// ReadAll drains r and maps gzip corruption to [ErrDecompress] while
// keeping block-level errors intact.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err == nil {
		return data, nil
	}
	var corrupt flate.CorruptInputError
	if errors.Is(err, gzip.ErrChecksum) || errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &corrupt) {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	return nil, err
}
