// Package bus implements a platform bus: the matching authority between
// drivers and announced devices.
//
// A driver registers a name together with probe and remove callbacks.
// Devices are announced in batches and withdrawn one at a time. Whenever a
// device's name equals a registered driver's name (exact string equality, no
// wildcards), the bus calls the driver's probe synchronously and remembers the
// driver data it returns; on withdrawal, or when the driver unregisters, the
// bus calls remove with that data.
//
//	b := bus.New()
//	b.RegisterDriver(bus.Driver{Name: "pseudo-char-device", Probe: probe, Remove: remove})
//	b.AddDevices(&bus.Device{Name: "pseudo-char-device", ID: bus.AutoID, Data: pdata})
//
// Callbacks run with the bus locked and must not call back into the same Bus.
package bus
