// Package iox provides I/O helpers for resource cleanup and exact-range reads.
package iox

import (
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/ferry/types"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// ReadSection reads exactly n bytes of r starting at off.
//
// A range that extends past the end of r (the file shrank after it was
// sized) is reported as types.ErrIO wrapping io.ErrUnexpectedEOF. Any
// other read failure is also classified as types.ErrIO.
func ReadSection(r io.ReaderAt, off, n int64) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, fmt.Errorf("%w: invalid range offset=%d size=%d", types.ErrIO, off, n)
	}
	buf := make([]byte, n)
	got, err := r.ReadAt(buf, off)
	if int64(got) == n {
		// ReadAt may return io.EOF alongside a full read at end of input.
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: read %d of %d bytes at offset %d: %w", types.ErrIO, got, n, off, err)
}
