// Package pcd implements a pseudo character device platform driver.
//
// Each platform device bound to the driver gets a device instance with one
// fixed-size in-memory buffer, a device number derived from the driver's
// reserved range, a dispatch binding in the hosting environment, and a
// published namespace node named "<prefix>-<index>".
//
// # Lifecycle
//
// A [Driver] is created by [Load], which reserves the number range and creates
// the namespace class, and is torn down by [Driver.Unload]. Instances move
// through Unbound, Probing, Active, Removing and Removed; a removed instance is
// never reused.
//
//	e := mem.New()
//	drv, err := pcd.Load(e, pcd.NewConfig())
//	if err != nil {
//	    return err
//	}
//	defer drv.Unload()
//
//	b := bus.New()
//	drv.Attach(b)
//	b.AddDevices(&bus.Device{
//	    Name: drv.Config().DriverName,
//	    ID:   bus.AutoID,
//	    Data: &pcd.PlatformData{Size: 512, Perm: pcd.PermReadWrite, Serial: "AXZ"},
//	})
//
// # I/O
//
// Opening a device yields a [Session] with its own offset. Reads and writes
// that would cross the end of the buffer are shortened to fit; the returned
// count is authoritative and a short transfer is not an error. A write at the
// end of the buffer fails with [pkg.ErrNoSpace], and a read there returns
// io.EOF.
//
// Seek follows the configured [SeekPolicy]. The default, [SeekRewind], ignores
// its arguments and always moves the offset back to 0.
//
// Each instance serializes buffer access with its own mutex, so concurrent
// sessions on one device never interleave within a single transfer.
package pcd
