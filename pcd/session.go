package pcd

import (
	"fmt"
	"io"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/trace"
)

// Session is an open file on a device instance. It carries its own offset,
// always within [0, capacity].
//
// A Session is safe for concurrent use; every operation runs under the
// instance lock.
type Session struct {
	id       string
	instance *Instance
	flags    env.OpenFlags

	// Guarded by instance.mutex
	offset int64
	closed bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Instance returns the device instance the session is open on.
func (s *Session) Instance() *Instance {
	return s.instance
}

// Flags returns the mode the session was opened with.
func (s *Session) Flags() env.OpenFlags {
	return s.flags
}

// Offset returns the current offset.
func (s *Session) Offset() int64 {
	s.instance.mutex.Lock()
	defer s.instance.mutex.Unlock()
	return s.offset
}

// Read copies up to len(p) bytes from the current offset and advances the
// offset by the number of bytes copied. A request running past the end of the
// buffer is shortened. At the end of the buffer Read transfers zero bytes and
// returns io.EOF; a caller checking only the count sees a plain 0, and io.EOF
// is not one of the pkg errors.
// A fault copying into p returns pkg.ErrFault and leaves the offset unchanged.
func (s *Session) Read(p []byte) (int, error) {
	i := s.instance
	event := s.event(trace.OpRead, len(p))

	i.mutex.Lock()
	n, truncated, err := s.read(p)
	event.Offset = s.offset
	i.mutex.Unlock()

	event.Transferred = n
	event.Truncated = truncated
	if err != nil && err != io.EOF {
		event.Error = err.Error()
	}
	i.driver.emit(event)
	return n, err
}

// read must be called with the instance lock held.
func (s *Session) read(p []byte) (int, bool, error) {
	i := s.instance
	if err := s.check(env.OpenRead); err != nil {
		return 0, false, err
	}
	if len(p) == 0 {
		return 0, false, nil
	}
	if s.offset >= int64(i.buffer.Cap()) {
		return 0, false, io.EOF
	}

	n, truncated, err := i.buffer.readAt(p, s.offset, i.driver.env)
	if truncated {
		pkg.LogDebug(pkg.ComponentGateway, "read truncated to device capacity",
			"node", i.node,
			"requested", len(p),
			"offset", s.offset,
			"count", n)
	}
	if err != nil {
		return 0, truncated, fmt.Errorf("read %s: %w", i.node, err)
	}

	s.offset += int64(n)
	pkg.LogDebug(pkg.ComponentGateway, "read complete",
		"node", i.node,
		"count", n,
		"offset", s.offset)
	return n, truncated, nil
}

// Write copies up to len(p) bytes to the current offset and advances the
// offset by the number of bytes copied. A request running past the end of the
// buffer is shortened and the short count is returned without error. When no
// space is left at the current offset Write fails with pkg.ErrNoSpace.
// A fault copying from p returns pkg.ErrFault and leaves the offset unchanged.
func (s *Session) Write(p []byte) (int, error) {
	i := s.instance
	event := s.event(trace.OpWrite, len(p))

	i.mutex.Lock()
	n, truncated, err := s.write(p)
	event.Offset = s.offset
	i.mutex.Unlock()

	event.Transferred = n
	event.Truncated = truncated
	if err != nil {
		event.Error = err.Error()
	}
	i.driver.emit(event)
	return n, err
}

// write must be called with the instance lock held.
func (s *Session) write(p []byte) (int, bool, error) {
	i := s.instance
	if err := s.check(env.OpenWrite); err != nil {
		return 0, false, err
	}
	if len(p) == 0 {
		return 0, false, nil
	}

	n, truncated, err := i.buffer.writeAt(p, s.offset, i.driver.env)
	if err != nil {
		pkg.LogDebug(pkg.ComponentGateway, "write failed",
			"node", i.node,
			"offset", s.offset,
			"error", err)
		return 0, truncated, fmt.Errorf("write %s: %w", i.node, err)
	}
	if truncated {
		pkg.LogDebug(pkg.ComponentGateway, "write truncated to device capacity",
			"node", i.node,
			"requested", len(p),
			"offset", s.offset,
			"count", n)
	}

	s.offset += int64(n)
	pkg.LogDebug(pkg.ComponentGateway, "write complete",
		"node", i.node,
		"count", n,
		"offset", s.offset)
	return n, truncated, nil
}

// Seek sets the offset according to the driver's SeekPolicy.
//
// With SeekRewind, offset and whence are ignored: the offset becomes 0 and
// Seek returns 0. With SeekAbsolute, the new offset is computed relative to
// io.SeekStart, io.SeekCurrent or io.SeekEnd and must lie in [0, capacity],
// otherwise Seek fails with pkg.ErrInvalidParameter.
func (s *Session) Seek(offset int64, whence int) (int64, error) {
	i := s.instance
	event := s.event(trace.OpSeek, 0)

	i.mutex.Lock()
	pos, err := s.seek(offset, whence)
	event.Offset = s.offset
	i.mutex.Unlock()

	if err != nil {
		event.Error = err.Error()
	}
	i.driver.emit(event)
	return pos, err
}

// seek must be called with the instance lock held.
func (s *Session) seek(offset int64, whence int) (int64, error) {
	i := s.instance
	if err := s.check(0); err != nil {
		return 0, err
	}

	pkg.LogDebug(pkg.ComponentGateway, "seek requested",
		"node", i.node,
		"offset", offset,
		"whence", whence,
		"policy", i.driver.config.Seek.String())

	if i.driver.config.Seek == SeekRewind {
		s.offset = 0
		return 0, nil
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.offset
	case io.SeekEnd:
		base = int64(i.buffer.Cap())
	default:
		return s.offset, fmt.Errorf("seek %s: whence %d: %w", i.node, whence, pkg.ErrInvalidParameter)
	}

	pos := base + offset
	if pos < 0 || pos > int64(i.buffer.Cap()) {
		return s.offset, fmt.Errorf("seek %s: position %d outside [0, %d]: %w",
			i.node, pos, i.buffer.Cap(), pkg.ErrInvalidParameter)
	}
	s.offset = pos
	return pos, nil
}

// Close releases the session. Closing twice is a no-op.
func (s *Session) Close() error {
	i := s.instance

	i.mutex.Lock()
	if s.closed {
		i.mutex.Unlock()
		return nil
	}
	s.closed = true
	if i.sessions > 0 {
		i.sessions--
	}
	i.mutex.Unlock()

	i.driver.emit(trace.Event{
		Op:        trace.OpClose,
		Node:      i.node,
		Device:    i.num.String(),
		SessionID: s.id,
	})
	pkg.LogDebug(pkg.ComponentGateway, "release requested",
		"node", i.node,
		"session", s.id)
	return nil
}

// check validates the session for an operation needing access (0 for none).
// It must be called with the instance lock held.
func (s *Session) check(access env.OpenFlags) error {
	i := s.instance
	if s.closed {
		return fmt.Errorf("%s: %w", i.node, pkg.ErrClosed)
	}
	if i.state != StateActive {
		return fmt.Errorf("%s: %w", i.node, pkg.ErrNoDevice)
	}
	if i.driver.config.EnforcePermissions && access != 0 && s.flags&access == 0 {
		return fmt.Errorf("%s: session mode %s: %w", i.node, s.flags, pkg.ErrPermission)
	}
	return nil
}

func (s *Session) event(op trace.Op, requested int) trace.Event {
	return trace.Event{
		Op:        op,
		Node:      s.instance.node,
		Device:    s.instance.num.String(),
		SessionID: s.id,
		Requested: requested,
	}
}

// Compile-time interface satisfaction check.
var _ env.File = (*Session)(nil)
