package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardnew/softpcd/pkg"
)

// AutoID asks the bus to use the device's position in its announcement batch
// as the instance index.
const AutoID = -1

// Device is a platform device announcement.
type Device struct {
	// Name is matched against driver names.
	Name string

	// ID is the instance index passed to probe, or AutoID.
	ID int

	// Data is the platform data handed to the driver.
	Data any
}

// ProbeFunc binds a driver to a device. It receives the device's platform data
// and resolved instance index and returns driver data for the binding.
type ProbeFunc func(data any, id int) (any, error)

// RemoveFunc unbinds a driver from a device using the driver data returned by
// the matching probe.
type RemoveFunc func(drvdata any) error

// Driver is a platform driver registration.
type Driver struct {
	Name   string
	Probe  ProbeFunc
	Remove RemoveFunc
}

// DeviceInfo describes an announced device.
type DeviceInfo struct {
	Name   string
	ID     int
	Driver string // Bound driver name, empty when unbound
}

// Bound reports whether a driver is bound to the device.
func (i DeviceInfo) Bound() bool {
	return i.Driver != ""
}

// entry tracks an announced device.
type entry struct {
	dev     *Device
	id      int
	driver  *Driver
	drvdata any
}

// Bus is a platform bus. It is safe for concurrent use.
type Bus struct {
	drivers map[string]*Driver
	entries []*entry // announcement order
	mutex   sync.RWMutex
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		drivers: make(map[string]*Driver),
	}
}

// RegisterDriver registers drv and binds any announced, unbound devices whose
// name matches. Probe failures leave the device unbound and are returned
// joined; the driver stays registered.
func (b *Bus) RegisterDriver(drv Driver) error {
	if drv.Name == "" || drv.Probe == nil || drv.Remove == nil {
		return fmt.Errorf("register driver %q: %w", drv.Name, pkg.ErrInvalidParameter)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.drivers[drv.Name]; ok {
		return fmt.Errorf("register driver %q: %w", drv.Name, pkg.ErrBusy)
	}

	d := drv
	b.drivers[d.Name] = &d

	pkg.LogInfo(pkg.ComponentBus, "driver registered", "driver", d.Name)

	var errs []error
	for _, e := range b.entries {
		if e.driver == nil && e.dev.Name == d.Name {
			errs = append(errs, b.bind(e, &d))
		}
	}
	return errors.Join(errs...)
}

// UnregisterDriver removes every device binding of the named driver and then
// the driver itself. Remove failures are logged and returned joined; the
// bindings are dropped regardless.
func (b *Bus) UnregisterDriver(name string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	d, ok := b.drivers[name]
	if !ok {
		return fmt.Errorf("unregister driver %q: %w", name, pkg.ErrNotFound)
	}

	var errs []error
	// Unbind in reverse announcement order
	for i := len(b.entries) - 1; i >= 0; i-- {
		if e := b.entries[i]; e.driver == d {
			errs = append(errs, b.unbind(e))
		}
	}
	delete(b.drivers, name)

	pkg.LogInfo(pkg.ComponentBus, "driver unregistered", "driver", name)
	return errors.Join(errs...)
}

// AddDevices announces a batch of devices. A device whose ID is AutoID gets
// its position in devs as instance index. Every device is added even when
// another device's probe fails; probe failures are returned joined.
func (b *Bus) AddDevices(devs ...*Device) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var errs []error
	for pos, dev := range devs {
		if dev == nil || dev.Name == "" {
			errs = append(errs, fmt.Errorf("device %d in batch: %w", pos, pkg.ErrInvalidParameter))
			continue
		}

		id := dev.ID
		if id == AutoID {
			id = pos
		}
		if id < 0 {
			errs = append(errs, fmt.Errorf("device %s.%d: %w", dev.Name, id, pkg.ErrInvalidParameter))
			continue
		}
		if b.find(dev) != nil {
			errs = append(errs, fmt.Errorf("device %s.%d: already announced: %w", dev.Name, id, pkg.ErrBusy))
			continue
		}
		if b.findID(dev.Name, id) != nil {
			errs = append(errs, fmt.Errorf("device %s.%d: id in use: %w", dev.Name, id, pkg.ErrBusy))
			continue
		}

		e := &entry{dev: dev, id: id}
		b.entries = append(b.entries, e)

		pkg.LogDebug(pkg.ComponentBus, "device added",
			"device", dev.Name,
			"id", id)

		if d, ok := b.drivers[dev.Name]; ok {
			errs = append(errs, b.bind(e, d))
		}
	}
	return errors.Join(errs...)
}

// RemoveDevice withdraws a device, unbinding it first when bound. The device
// is withdrawn even if the driver's remove fails.
func (b *Bus) RemoveDevice(dev *Device) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	e := b.find(dev)
	if e == nil {
		return fmt.Errorf("remove device: %w", pkg.ErrNotFound)
	}

	var err error
	if e.driver != nil {
		err = b.unbind(e)
	}

	for i, x := range b.entries {
		if x == e {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}

	pkg.LogDebug(pkg.ComponentBus, "device withdrawn",
		"device", dev.Name,
		"id", e.id)
	return err
}

// Devices returns the announced devices in announcement order.
func (b *Bus) Devices() []DeviceInfo {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	result := make([]DeviceInfo, 0, len(b.entries))
	for _, e := range b.entries {
		info := DeviceInfo{Name: e.dev.Name, ID: e.id}
		if e.driver != nil {
			info.Driver = e.driver.Name
		}
		result = append(result, info)
	}
	return result
}

// Lookup returns the announced device with the given name and instance index.
func (b *Bus) Lookup(name string, id int) *Device {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if e := b.findID(name, id); e != nil {
		return e.dev
	}
	return nil
}

// DriverData returns the driver data of a bound device.
func (b *Bus) DriverData(dev *Device) (any, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	e := b.find(dev)
	if e == nil || e.driver == nil {
		return nil, false
	}
	return e.drvdata, true
}

// Drivers returns the number of registered drivers.
func (b *Bus) Drivers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.drivers)
}

// HasDriver reports whether a driver named name is registered.
func (b *Bus) HasDriver(name string) bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	_, ok := b.drivers[name]
	return ok
}

// bind must be called with b.mutex held.
func (b *Bus) bind(e *entry, d *Driver) error {
	drvdata, err := d.Probe(e.dev.Data, e.id)
	if err != nil {
		pkg.LogWarn(pkg.ComponentBus, "probe failed",
			"driver", d.Name,
			"id", e.id,
			"error", err)
		return fmt.Errorf("probe %s.%d: %w", e.dev.Name, e.id, err)
	}

	e.driver = d
	e.drvdata = drvdata

	pkg.LogDebug(pkg.ComponentBus, "device bound",
		"driver", d.Name,
		"id", e.id)
	return nil
}

// unbind must be called with b.mutex held.
func (b *Bus) unbind(e *entry) error {
	d := e.driver
	err := d.Remove(e.drvdata)
	e.driver = nil
	e.drvdata = nil

	if err != nil {
		pkg.LogWarn(pkg.ComponentBus, "remove failed",
			"driver", d.Name,
			"id", e.id,
			"error", err)
		return fmt.Errorf("remove %s.%d: %w", e.dev.Name, e.id, err)
	}

	pkg.LogDebug(pkg.ComponentBus, "device unbound",
		"driver", d.Name,
		"id", e.id)
	return nil
}

// find must be called with b.mutex held.
func (b *Bus) find(dev *Device) *entry {
	for _, e := range b.entries {
		if e.dev == dev {
			return e
		}
	}
	return nil
}

// findID must be called with b.mutex held.
func (b *Bus) findID(name string, id int) *entry {
	for _, e := range b.entries {
		if e.dev.Name == name && e.id == id {
			return e
		}
	}
	return nil
}
