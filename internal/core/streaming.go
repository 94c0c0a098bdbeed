package core

// streaming.go provides the readers uploaded files pass through before parsing.
//
//   - sizeGuardReader fails once more than the allowed number of bytes is read,
//     so an oversized body is rejected without buffering all of it.
//   - newTextReader decodes delimited text to UTF-8: a UTF-8 BOM is dropped, a
//     UTF-16 BOM switches decoding (Excel "Unicode text" exports), and invalid
//     bytes become U+FFFD.

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sizeGuardReader counts bytes and fails with ErrFileTooLarge past max.
type sizeGuardReader struct {
	reader    io.Reader
	max       int64
	BytesRead int64
}

func newSizeGuardReader(r io.Reader, max int64) *sizeGuardReader {
	return &sizeGuardReader{reader: r, max: max}
}

// Read implements io.Reader.
func (r *sizeGuardReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.max > 0 && r.BytesRead > r.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.max)
	}
	return n, err
}

// newTextReader wraps r so that it yields UTF-8 text.
func newTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
