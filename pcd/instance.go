package pcd

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/trace"
)

// InstanceState is the lifecycle state of a device instance.
type InstanceState uint8

// Instance states.
const (
	StateUnbound InstanceState = iota
	StateProbing
	StateActive
	StateRemoving
	StateRemoved
)

// String returns the state name.
func (s InstanceState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateProbing:
		return "probing"
	case StateActive:
		return "active"
	case StateRemoving:
		return "removing"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Instance is a probed device: a buffer, a device number, a dispatch binding
// and a namespace node.
type Instance struct {
	driver *Driver
	index  int
	num    env.DevNum
	node   string
	data   PlatformData

	// Guarded by mutex
	buffer   *Buffer
	state    InstanceState
	sessions int
	mutex    sync.Mutex
}

// Index returns the instance index the device was probed with.
func (i *Instance) Index() int {
	return i.index
}

// Num returns the device number.
func (i *Instance) Num() env.DevNum {
	return i.num
}

// Node returns the namespace node name.
func (i *Instance) Node() string {
	return i.node
}

// PlatformData returns the descriptor the instance was probed with.
func (i *Instance) PlatformData() PlatformData {
	return i.data
}

// Capacity returns the buffer capacity.
func (i *Instance) Capacity() int {
	return int(i.data.Size)
}

// State returns the lifecycle state.
func (i *Instance) State() InstanceState {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.state
}

// Sessions returns the number of open sessions.
func (i *Instance) Sessions() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.sessions
}

// Open implements env.FileOperations.
func (i *Instance) Open(flags env.OpenFlags) (env.File, error) {
	s, err := i.OpenSession(flags)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSession opens a new session positioned at offset 0.
//
// Without permission enforcement any readable or writable mode is accepted,
// whatever the device permission says.
func (i *Instance) OpenSession(flags env.OpenFlags) (*Session, error) {
	event := trace.Event{Op: trace.OpOpen, Node: i.node, Device: i.num.String(), Serial: i.data.Serial}

	s, err := i.open(flags)
	if err != nil {
		event.Error = err.Error()
		i.driver.emit(event)
		return nil, err
	}

	event.SessionID = s.id
	i.driver.emit(event)

	pkg.LogDebug(pkg.ComponentGateway, "open requested",
		"node", i.node,
		"session", s.id,
		"mode", flags.String())
	return s, nil
}

func (i *Instance) open(flags env.OpenFlags) (*Session, error) {
	if !flags.Readable() && !flags.Writable() {
		return nil, fmt.Errorf("open %s: mode %s: %w", i.node, flags, pkg.ErrInvalidParameter)
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.state != StateActive {
		return nil, fmt.Errorf("open %s: %w", i.node, pkg.ErrNoDevice)
	}
	if i.driver.config.EnforcePermissions && !i.data.Perm.Allows(flags) {
		return nil, fmt.Errorf("open %s: mode %s on %s device: %w",
			i.node, flags, i.data.Perm, pkg.ErrPermission)
	}

	i.sessions++
	return &Session{
		id:       uuid.New().String(),
		instance: i,
		flags:    flags,
	}, nil
}

// Compile-time interface satisfaction check.
var _ env.FileOperations = (*Instance)(nil)
