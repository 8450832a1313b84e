// Package mem implements an in-process hosting environment for the pseudo
// character device driver.
//
// The environment keeps its region table, dispatch table and namespace in
// memory. It is what tests and the pcdctl tool load the driver into:
//
//	e := mem.New()
//	drv, err := pcd.Load(e, pcd.DefaultConfig())
//	...
//	f, err := e.OpenNode("pcd-dev-0", env.OpenReadWrite)
//
// Namespace operations can additionally be mirrored to an external publisher
// such as [github.com/ardnew/softpcd/pcd/env/devfs] with [WithPublisher].
//
// # Dynamic Majors
//
// Ranges are granted one major at a time, searching 254 down to 234 and then
// 511 down to 384, the same dynamic windows a Linux kernel uses.
package mem
