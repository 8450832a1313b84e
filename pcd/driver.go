package pcd

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/pcd/env"
	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/trace"
)

// Driver owns a reserved device number range, a namespace class and the
// instances probed into them.
//
// Driver is safe for concurrent use. The driver lock is always taken before
// an instance lock.
type Driver struct {
	env    env.Env
	config Config
	tracer trace.Logger
	base   env.DevNum
	class  env.Class

	// Guarded by mutex
	instances map[int]*Instance
	active    int
	loaded    bool
	bus       *bus.Bus
	mutex     sync.Mutex
}

// Load reserves cfg.MaxDevices device numbers and creates the namespace class
// instances are published under. The range is released again if the class
// cannot be created.
func Load(e env.Env, cfg Config) (*Driver, error) {
	if e == nil {
		return nil, fmt.Errorf("load: no environment: %w", pkg.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	d := &Driver{
		env:       e,
		config:    cfg,
		tracer:    cfg.Tracer,
		instances: make(map[int]*Instance),
	}
	if d.tracer == nil {
		d.tracer = trace.NoopLogger{}
	}

	base, err := e.ReserveRange(cfg.MaxDevices, cfg.RegionName)
	if err != nil {
		pkg.LogError(pkg.ComponentDriver, "device number allocation failed",
			"region", cfg.RegionName,
			"count", cfg.MaxDevices,
			"error", err)
		d.emit(trace.Event{Op: trace.OpLoad, Error: err.Error()})
		return nil, fmt.Errorf("load %s: %w: %w", cfg.DriverName, pkg.ErrResourceExhausted, err)
	}
	d.base = base

	class, err := e.CreateClass(cfg.ClassName)
	if err != nil {
		e.ReleaseRange(base, cfg.MaxDevices)
		pkg.LogError(pkg.ComponentDriver, "class creation failed",
			"class", cfg.ClassName,
			"error", err)
		d.emit(trace.Event{Op: trace.OpLoad, Error: err.Error()})
		return nil, fmt.Errorf("load %s: class %s: %w: %w", cfg.DriverName, cfg.ClassName, pkg.ErrResourceExhausted, err)
	}
	d.class = class
	d.loaded = true

	d.emit(trace.Event{Op: trace.OpLoad, Device: base.String()})
	pkg.LogInfo(pkg.ComponentDriver, "driver loaded",
		"driver", cfg.DriverName,
		"base", base.String(),
		"count", cfg.MaxDevices,
		"class", cfg.ClassName)
	return d, nil
}

// Config returns the driver configuration.
func (d *Driver) Config() Config {
	return d.config
}

// Base returns the first device number of the reserved range.
func (d *Driver) Base() env.DevNum {
	return d.base
}

// ActiveCount returns the number of active instances.
func (d *Driver) ActiveCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.active
}

// Loaded reports whether the driver is loaded.
func (d *Driver) Loaded() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.loaded
}

// Instance returns the active instance at index, or nil.
func (d *Driver) Instance(index int) *Instance {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.instances[index]
}

// Instances returns the active instances ordered by index.
func (d *Driver) Instances() []*Instance {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	result := make([]*Instance, 0, len(d.instances))
	for _, inst := range d.instances {
		result = append(result, inst)
	}
	sort.Slice(result, func(a, b int) bool { return result[a].index < result[b].index })
	return result
}

// Probe creates the instance at index from platform data desc, which must be
// a PlatformData or *PlatformData. It allocates the buffer, binds the device
// number to the instance and publishes node "<NodePrefix>-<index>".
// Every step is undone when a later one fails.
func (d *Driver) Probe(desc any, index int) (*Instance, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	inst, err := d.probe(desc, index)
	event := trace.Event{Op: trace.OpProbe, Node: d.config.NodeName(index)}
	if err != nil {
		event.Error = err.Error()
		d.emit(event)
		pkg.LogWarn(pkg.ComponentDriver, "probe failed",
			"index", index,
			"error", err)
		return nil, err
	}

	event.Device = inst.num.String()
	event.Serial = inst.data.Serial
	d.emit(event)
	pkg.LogInfo(pkg.ComponentDriver, "device probed",
		"node", inst.node,
		"device", inst.num.String(),
		"serial", inst.data.Serial,
		"size", inst.data.Size,
		"perm", inst.data.Perm.String())
	return inst, nil
}

// probe must be called with the driver lock held.
func (d *Driver) probe(desc any, index int) (*Instance, error) {
	if !d.loaded {
		return nil, fmt.Errorf("probe %d: %w", index, pkg.ErrNotLoaded)
	}
	if index < 0 || index >= d.config.MaxDevices {
		return nil, fmt.Errorf("probe: index %d outside [0, %d): %w",
			index, d.config.MaxDevices, pkg.ErrResourceExhausted)
	}
	if _, exists := d.instances[index]; exists {
		return nil, fmt.Errorf("probe: index %d already active: %w", index, pkg.ErrRegistration)
	}

	data, err := platformData(desc)
	if err != nil {
		return nil, fmt.Errorf("probe %d: %w", index, err)
	}

	buffer, err := NewBuffer(int(data.Size), d.config.MaxBufferSize)
	if err != nil {
		return nil, fmt.Errorf("probe %d: %w", index, err)
	}

	inst := &Instance{
		driver: d,
		index:  index,
		num:    DeviceNumber(d.base, index),
		node:   d.config.NodeName(index),
		data:   data,
		buffer: buffer,
		state:  StateProbing,
	}

	if err := d.env.Register(inst.num, inst); err != nil {
		return nil, fmt.Errorf("probe %d: dispatch %s: %w: %w", index, inst.num, pkg.ErrRegistration, err)
	}

	if err := d.env.CreateNode(d.class, inst.num, inst.node); err != nil {
		d.env.Unregister(inst.num)
		return nil, fmt.Errorf("probe %d: node %s: %w: %w", index, inst.node, pkg.ErrRegistration, err)
	}

	inst.state = StateActive
	d.instances[index] = inst
	d.active++
	return inst, nil
}

// Remove withdraws inst: its node is destroyed, its device number unbound and
// its buffer released. Open sessions fail with pkg.ErrNoDevice afterwards.
// Removing an instance twice fails with pkg.ErrAlreadyRemoved.
//
// When the instance was probed through the attached bus, its platform device
// is withdrawn from the bus as well, so the bus holds no stale binding.
func (d *Driver) Remove(inst *Instance) error {
	if inst == nil || inst.driver != d {
		return fmt.Errorf("remove: instance not owned by driver: %w", pkg.ErrInvalidParameter)
	}

	d.mutex.Lock()
	b := d.bus
	d.mutex.Unlock()

	// The bus calls back into removeInstance with its lock held.
	if dev := d.busDevice(b, inst); dev != nil {
		return b.RemoveDevice(dev)
	}
	return d.removeInstance(inst)
}

// busDevice returns the bus device bound to inst, or nil.
func (d *Driver) busDevice(b *bus.Bus, inst *Instance) *bus.Device {
	if b == nil {
		return nil
	}
	dev := b.Lookup(d.config.DriverName, inst.index)
	if dev == nil {
		return nil
	}
	if data, ok := b.DriverData(dev); !ok || data != any(inst) {
		return nil
	}
	return dev
}

// removeInstance removes inst without consulting the bus.
func (d *Driver) removeInstance(inst *Instance) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	err := d.remove(inst)
	event := trace.Event{Op: trace.OpRemove, Node: inst.node, Device: inst.num.String(), Serial: inst.data.Serial}
	if err != nil {
		event.Error = err.Error()
	}
	d.emit(event)
	return err
}

// remove must be called with the driver lock held.
func (d *Driver) remove(inst *Instance) error {
	inst.mutex.Lock()
	if inst.state != StateActive {
		state := inst.state
		inst.mutex.Unlock()
		return fmt.Errorf("remove %s (%s): %w", inst.node, state, pkg.ErrAlreadyRemoved)
	}
	inst.state = StateRemoving
	sessions := inst.sessions
	inst.mutex.Unlock()

	if err := d.env.DestroyNode(d.class, inst.num); err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "node destruction failed",
			"node", inst.node,
			"error", err)
	}
	d.env.Unregister(inst.num)

	delete(d.instances, inst.index)
	d.active--

	inst.mutex.Lock()
	inst.state = StateRemoved
	inst.buffer = nil
	inst.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentDriver, "device removed",
		"node", inst.node,
		"device", inst.num.String(),
		"sessions", sessions)
	return nil
}

// BusDriver returns the bus registration for this driver. Probe receives the
// device's platform data and instance index; the driver data of a binding is
// the *Instance.
func (d *Driver) BusDriver() bus.Driver {
	return bus.Driver{
		Name: d.config.DriverName,
		Probe: func(data any, id int) (any, error) {
			inst, err := d.Probe(data, id)
			if err != nil {
				return nil, err
			}
			return inst, nil
		},
		Remove: func(drvdata any) error {
			inst, ok := drvdata.(*Instance)
			if !ok || inst == nil {
				return fmt.Errorf("remove: driver data of type %T: %w", drvdata, pkg.ErrInvalidParameter)
			}
			if inst.driver != d {
				return fmt.Errorf("remove: instance not owned by driver: %w", pkg.ErrInvalidParameter)
			}
			return d.removeInstance(inst)
		},
	}
}

// Attach registers the driver on b, probing every matching device already
// announced there. Unload unregisters it again.
func (d *Driver) Attach(b *bus.Bus) error {
	if b == nil {
		return fmt.Errorf("attach: no bus: %w", pkg.ErrInvalidParameter)
	}
	if b.HasDriver(d.config.DriverName) {
		return fmt.Errorf("attach %s: name in use: %w", d.config.DriverName, pkg.ErrBusy)
	}

	// The bus lock is never taken while holding the driver lock.
	d.mutex.Lock()
	switch {
	case !d.loaded:
		d.mutex.Unlock()
		return fmt.Errorf("attach: %w", pkg.ErrNotLoaded)
	case d.bus != nil:
		d.mutex.Unlock()
		return fmt.Errorf("attach %s: already attached: %w", d.config.DriverName, pkg.ErrBusy)
	}
	d.bus = b
	d.mutex.Unlock()

	// Probe callbacks take the driver lock.
	err := b.RegisterDriver(d.BusDriver())
	if !b.HasDriver(d.config.DriverName) {
		d.mutex.Lock()
		d.bus = nil
		d.mutex.Unlock()
	}
	return err
}

// Unload detaches the driver from its bus, removes any remaining instances,
// destroys the namespace class and releases the device number range.
func (d *Driver) Unload() error {
	d.mutex.Lock()
	if !d.loaded {
		d.mutex.Unlock()
		return fmt.Errorf("unload: %w", pkg.ErrNotLoaded)
	}
	b := d.bus
	d.bus = nil
	d.mutex.Unlock()

	var errs []error
	if b != nil {
		// Remove callbacks take the driver lock.
		if err := b.UnregisterDriver(d.config.DriverName); err != nil {
			errs = append(errs, err)
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.loaded {
		return fmt.Errorf("unload: %w", pkg.ErrNotLoaded)
	}

	if d.active != 0 {
		pkg.LogWarn(pkg.ComponentDriver, "unloading with active devices",
			"driver", d.config.DriverName,
			"active", d.active)
	}
	indices := make([]int, 0, len(d.instances))
	for index := range d.instances {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	for _, index := range indices {
		if err := d.remove(d.instances[index]); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.env.DestroyClass(d.class); err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "class destruction failed",
			"class", d.config.ClassName,
			"error", err)
		errs = append(errs, err)
	}
	d.env.ReleaseRange(d.base, d.config.MaxDevices)
	d.loaded = false

	err := errors.Join(errs...)
	event := trace.Event{Op: trace.OpUnload, Device: d.base.String()}
	if err != nil {
		event.Error = err.Error()
	}
	d.emit(event)
	pkg.LogInfo(pkg.ComponentDriver, "driver unloaded",
		"driver", d.config.DriverName)
	return err
}

// emit stamps and delivers a trace event.
func (d *Driver) emit(event trace.Event) {
	event.Timestamp = time.Now()
	event.Driver = d.config.DriverName
	d.tracer.Log(event)
}
