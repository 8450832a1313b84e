// Package env defines the hosting-environment contracts used by the pseudo
// character device driver.
//
// The driver core never talks to an operating system directly. Everything it
// needs from its host is expressed by four small interfaces:
//
//   - [Numbers]: grants and reclaims contiguous device number ranges
//   - [Dispatch]: routes file-style calls for a device number to the driver
//   - [Namespace]: publishes discoverable nodes grouped under a class
//   - [Copier]: moves bytes across the caller boundary and may fault
//
// [Env] bundles all four. An in-process implementation lives in
// [github.com/ardnew/softpcd/pcd/env/mem]; a filesystem namespace publisher
// lives in [github.com/ardnew/softpcd/pcd/env/devfs].
//
// # Implementing an Environment
//
// Implementations must treat each call as atomic. The driver never issues
// concurrent calls for the same device number, but calls for different
// numbers may overlap, so implementations must be safe for concurrent use.
package env
