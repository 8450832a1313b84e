// Package trace records driver lifecycle and I/O events.
//
// Trace capture is separate from operational logging (slog). It produces a
// machine-readable record of every load, probe, remove, open, read, write,
// seek and close handled by the driver, which is useful for replaying what a
// client did against a device.
//
// # Basic Usage
//
//	// Console output through slog
//	cfg.Tracer = trace.NewSlogAdapter(slog.Default())
//
//	// Binary CBOR file
//	fl, _ := trace.NewFileLogger("/tmp/pcd.trace")
//	cfg.Tracer = trace.NewMultiLogger(trace.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded [Event] values using integer keys.
// Use [NewReader] to iterate them.
package trace
