// Package devfs publishes device nodes as files under a root directory.
//
// The layout mirrors what udev and sysfs show for a character device class:
//
//	<root>/
//	├── class/<class>/<node>/dev       # "major:minor"
//	├── class/<class>/<node>/uevent    # MAJOR=, MINOR=, DEVNAME=
//	└── dev/<node>                     # discoverable node, contains "major:minor"
//
// Publisher implements [github.com/ardnew/softpcd/pcd/env.Namespace] and is
// normally mirrored from the in-memory environment with
// [github.com/ardnew/softpcd/pcd/env/mem.WithPublisher]. [Scan] reads the
// layout back, so another process can discover published nodes.
package devfs
