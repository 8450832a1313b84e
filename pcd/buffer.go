package pcd

import (
	"fmt"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// Buffer is the fixed-size byte storage of a device instance.
// Its capacity is set at allocation and never changes.
//
// Buffer does no locking; the owning Instance serializes access.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a zeroed buffer of capacity bytes. It fails with
// pkg.ErrInvalidDescriptor for a zero or negative capacity and with
// pkg.ErrOutOfMemory when capacity exceeds limit.
func NewBuffer(capacity, limit int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("buffer capacity %d: %w", capacity, pkg.ErrInvalidDescriptor)
	}
	if capacity > limit {
		return nil, fmt.Errorf("buffer capacity %d exceeds %d: %w", capacity, limit, pkg.ErrOutOfMemory)
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Cap returns the buffer capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// ReadAt copies min(len(p), Cap()-off) bytes starting at off into p.
// Unlike io.ReaderAt, a short read is not an error. An offset outside
// [0, Cap()] fails with pkg.ErrOutOfBounds.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	n, _, err := b.readAt(p, off, env.DirectCopier{})
	return n, err
}

// WriteAt copies min(len(p), Cap()-off) bytes from p starting at off.
// A short write is not an error, but a non-empty write at off == Cap() fails
// with pkg.ErrNoSpace. An offset outside [0, Cap()] fails with
// pkg.ErrOutOfBounds.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	n, _, err := b.writeAt(p, off, env.DirectCopier{})
	return n, err
}

// span returns the number of bytes that fit in [off, Cap()) for a request
// of length bytes, and whether the request was shortened.
func (b *Buffer) span(off int64, length int) (int, bool, error) {
	if off < 0 || off > int64(len(b.data)) {
		return 0, false, fmt.Errorf("offset %d, capacity %d: %w", off, len(b.data), pkg.ErrOutOfBounds)
	}
	avail := len(b.data) - int(off)
	if length > avail {
		return avail, true, nil
	}
	return length, false, nil
}

// readAt copies out through c. On a copy fault nothing counts as read.
func (b *Buffer) readAt(p []byte, off int64, c env.Copier) (int, bool, error) {
	n, truncated, err := b.span(off, len(p))
	if err != nil || n == 0 {
		return 0, truncated, err
	}
	if err := c.CopyOut(p[:n], b.data[off:off+int64(n)]); err != nil {
		return 0, truncated, fmt.Errorf("%w: %w", pkg.ErrFault, err)
	}
	return n, truncated, nil
}

// writeAt copies in through c. On a copy fault nothing counts as written.
func (b *Buffer) writeAt(p []byte, off int64, c env.Copier) (int, bool, error) {
	n, truncated, err := b.span(off, len(p))
	if err != nil {
		return 0, truncated, err
	}
	if n == 0 {
		if len(p) > 0 {
			return 0, truncated, fmt.Errorf("offset %d: %w", off, pkg.ErrNoSpace)
		}
		return 0, false, nil
	}
	if err := c.CopyIn(b.data[off:off+int64(n)], p[:n]); err != nil {
		return 0, truncated, fmt.Errorf("%w: %w", pkg.ErrFault, err)
	}
	return n, truncated, nil
}

// DeviceNumber returns the device number of instance index in the range
// starting at base. It does not allocate anything.
func DeviceNumber(base env.DevNum, index int) env.DevNum {
	return base + env.DevNum(index)
}
