// Command pcdctl loads the pseudo character device driver into an in-memory
// environment, announces a catalog of platform devices and opens a shell on
// the published nodes.
//
// Usage:
//
//	pcdctl [flags]                 interactive shell
//	pcdctl [flags] -script FILE    run shell commands from FILE
//	pcdctl trace [-node N] [-failed] FILE
//	                               dump a CBOR event trace
//	pcdctl catalog                 print the built-in device catalog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardnew/softpcd/bus"
	"github.com/ardnew/softpcd/catalog"
	"github.com/ardnew/softpcd/cmd/pcdctl/interactive"
	"github.com/ardnew/softpcd/pcd"
	"github.com/ardnew/softpcd/pcd/env/devfs"
	"github.com/ardnew/softpcd/pcd/env/mem"
	"github.com/ardnew/softpcd/pkg"
	"github.com/ardnew/softpcd/pkg/prof"
	"github.com/ardnew/softpcd/pkg/trace"
)

var (
	verbose     = flag.Bool("v", false, "Enable verbose logging")
	jsonOut     = flag.Bool("json", false, "Output logs as JSON")
	catalogPath = flag.String("catalog", "", "Device catalog YAML (default: built-in catalog)")
	devfsRoot   = flag.String("devfs", "", "Also publish device nodes under this directory")
	tracePath   = flag.String("trace", "", "Append a CBOR event trace to this file")
	enforcePerm = flag.Bool("enforce-perm", false, "Reject opens exceeding the device permission")
	seekPolicy  = flag.String("seek", "rewind", "Seek behavior: rewind or absolute")
	scriptPath  = flag.String("script", "", "Run commands from this file instead of the shell")
	maxBuffer   = flag.Int("max-buffer", pcd.DefaultMaxBufferSize, "Largest device buffer in bytes")

	// Profiling (requires -tags profile)
	cpuProfile   = flag.String("cpuprofile", "", "Write a CPU profile to this file")
	memProfile   = flag.String("memprofile", "", "Write a heap profile to this file on exit")
	mutexProfile = flag.String("mutexprofile", "", "Write a mutex contention profile to this file on exit")
)

func main() {
	flag.Parse()

	// Set up logging based on flags
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	} else {
		pkg.SetLogLevel(slog.LevelInfo)
	}

	// Configure JSON output if requested
	if *jsonOut {
		pkg.SetLogger(pkg.NewJSONLogger(os.Stderr, &slog.HandlerOptions{
			Level: pkg.GetLogLevel(),
		}))
	}

	stop, err := prof.Start(prof.Options{
		CPU:   *cpuProfile,
		Heap:  *memProfile,
		Mutex: *mutexProfile,
	})
	if err != nil {
		pkg.LogError(pkg.ComponentCLI, "failed to start profiling", "error", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "trace":
		err = dumpTrace(os.Stdout, flag.Args()[1:])
	case "catalog":
		err = catalog.Default().Encode(os.Stdout)
	case "":
		err = run()
	default:
		err = fmt.Errorf("unknown subcommand %q", flag.Arg(0))
	}

	if perr := stop(); perr != nil {
		pkg.LogWarn(pkg.ComponentCLI, "failed to write profiles", "error", perr)
	}
	if err != nil {
		pkg.LogError(pkg.ComponentCLI, "pcdctl failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	devices := catalog.Default()
	if *catalogPath != "" {
		var err error
		if devices, err = catalog.Load(*catalogPath); err != nil {
			return err
		}
	}

	seek, err := pcd.ParseSeekPolicy(*seekPolicy)
	if err != nil {
		return err
	}

	// Hosting environment
	var envOpts []mem.Option
	if *devfsRoot != "" {
		envOpts = append(envOpts, mem.WithPublisher(devfs.New(*devfsRoot)))
	}
	e := mem.New(envOpts...)

	// Event trace
	tracers := []trace.Logger{trace.NewSlogAdapter(pkg.Logger())}
	if *tracePath != "" {
		fl, err := trace.NewFileLogger(*tracePath)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer fl.Close()
		tracers = append(tracers, fl)
	}

	drv, err := pcd.Load(e, pcd.NewConfig(
		pcd.WithMaxBufferSize(*maxBuffer),
		pcd.WithPermissionEnforcement(*enforcePerm),
		pcd.WithSeekPolicy(seek),
		pcd.WithTracer(trace.NewMultiLogger(tracers...)),
	))
	if err != nil {
		return err
	}
	defer func() {
		if err := drv.Unload(); err != nil {
			pkg.LogWarn(pkg.ComponentCLI, "unload reported errors", "error", err)
		}
	}()

	b := bus.New()
	if err := drv.Attach(b); err != nil {
		return err
	}

	// Probe failures leave single devices unbound
	if err := b.AddDevices(devices.BusDevices()...); err != nil {
		pkg.LogWarn(pkg.ComponentCLI, "some devices failed to probe", "error", err)
	}
	pkg.LogInfo(pkg.ComponentCLI, "devices announced",
		"catalog", len(devices.Devices),
		"active", drv.ActiveCount())

	shell := interactive.New(e, drv, b, os.Stdout)
	defer shell.CloseAll()

	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return shell.RunScript(f)
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return shell.Run(ctx)
}
