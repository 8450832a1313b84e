// Package prof captures pprof profiles of a pcdctl run.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/pcdctl
//
// Without the tag [Start] does nothing and returns a no-op stop function, so
// callers can keep profiling hooks in place.
//
// A run is profiled by naming output files in [Options]:
//
//	stop, err := prof.Start(prof.Options{CPU: "cpu.prof", Mutex: "mutex.prof"})
//	if err != nil {
//	    return err
//	}
//	defer stop()
//
// CPU samples stream for the whole run. Heap, mutex and block profiles are
// snapshots written when stop is called. The mutex profile shows contention
// on the per-instance device locks.
package prof
