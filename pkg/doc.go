// Package pkg provides shared utilities for the softpcd driver stack.
//
// This package contains common functionality used by the bus, the pseudo
// character device driver, and the hosting environments, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for driver lifecycle and I/O errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with driver-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDriver, "device probed", "node", "pcd-dev-0")
//
// # Errors
//
// Driver errors are defined as sentinel values and are usually wrapped with
// additional context, so compare them with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrNoSpace) {
//	    // Device buffer is full at the current offset
//	}
package pkg
