//go:build !profile

package prof

import "github.com/ardnew/softpcd/pkg"

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Start logs a warning when profiles were requested and returns a no-op stop
// function.
func Start(opts Options) (func() error, error) {
	if !opts.Empty() {
		pkg.LogWarn(pkg.ComponentCLI, "profiling requested but not compiled in (build with -tags profile)")
	}
	return func() error { return nil }, nil
}
