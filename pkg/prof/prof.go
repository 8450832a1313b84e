//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/softpcd/pkg"
)

// ErrActive indicates a profiling run is already in progress.
var ErrActive = errors.New("profiling already active")

// Enabled reports whether profiling is compiled in.
const Enabled = true

var (
	mutex  sync.Mutex
	active bool
)

// Start begins a profiling run and returns the function that ends it.
func Start(opts Options) (func() error, error) {
	mutex.Lock()
	defer mutex.Unlock()

	if active {
		return nil, ErrActive
	}

	var cpu *os.File
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		cpu = f
	}
	if opts.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}
	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	active = true

	pkg.LogDebug(pkg.ComponentCLI, "profiling started",
		"cpu", opts.CPU,
		"heap", opts.Heap,
		"mutex", opts.Mutex,
		"block", opts.Block)

	var once sync.Once
	var stopErr error
	stop := func() error {
		once.Do(func() { stopErr = finish(opts, cpu) })
		return stopErr
	}
	return stop, nil
}

func finish(opts Options, cpu *os.File) error {
	mutex.Lock()
	defer mutex.Unlock()

	var errs []error
	if cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, cpu.Close())
	}
	if opts.Heap != "" {
		runtime.GC()
		errs = append(errs, write("heap", opts.Heap))
	}
	if opts.Mutex != "" {
		errs = append(errs, write("mutex", opts.Mutex))
		runtime.SetMutexProfileFraction(0)
	}
	if opts.Block != "" {
		errs = append(errs, write("block", opts.Block))
		runtime.SetBlockProfileRate(0)
	}
	active = false
	return errors.Join(errs...)
}

func write(name, path string) error {
	p := pprof.Lookup(name)
	if p == nil {
		return fmt.Errorf("profile %q: %w", name, pkg.ErrNotFound)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteTo(f, 0)
}
