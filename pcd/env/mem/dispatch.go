package mem

import (
	"fmt"

	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
)

// Register binds num to ops.
func (e *Env) Register(num env.DevNum, ops env.FileOperations) error {
	if ops == nil {
		return fmt.Errorf("register %s: %w", num, pkg.ErrInvalidParameter)
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if _, ok := e.regions[num.Major()]; !ok {
		return fmt.Errorf("register %s: major not reserved: %w", num, pkg.ErrInvalidParameter)
	}
	if _, ok := e.bindings[num]; ok {
		return fmt.Errorf("register %s: %w", num, pkg.ErrBusy)
	}
	e.bindings[num] = ops
	return nil
}

// Unregister removes the binding for num.
func (e *Env) Unregister(num env.DevNum) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.bindings, num)
}

// Bound reports whether num has a dispatch binding.
func (e *Env) Bound(num env.DevNum) bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	_, ok := e.bindings[num]
	return ok
}

// Open routes an open of num to its registered file operations.
func (e *Env) Open(num env.DevNum, flags env.OpenFlags) (env.File, error) {
	e.mutex.RLock()
	ops, ok := e.bindings[num]
	e.mutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("open %s: %w", num, pkg.ErrNoDevice)
	}
	return ops.Open(flags)
}

// OpenNode resolves a published node name and opens its device.
func (e *Env) OpenNode(name string, flags env.OpenFlags) (env.File, error) {
	num, ok := e.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("open %q: %w", name, pkg.ErrNotFound)
	}
	return e.Open(num, flags)
}
