package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

const (
	memProfileRate = 4096

	timeFormat = "20060102_150405"
)

// profile starts one kind of profiling into f and returns the func that stops it.
type profile struct {
	kind  string
	start func(f *os.File) (stop func(), err error)
}

var profiles = []profile{
	{"cpu", func(f *os.File) (func(), error) {
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, err
		}
		return pprof.StopCPUProfile, nil
	}},
	{"mem", func(f *os.File) (func(), error) {
		old := runtime.MemProfileRate
		runtime.MemProfileRate = memProfileRate
		return func() {
			writeLookup("heap", f)
			runtime.MemProfileRate = old
		}, nil
	}},
	{"mutex", func(f *os.File) (func(), error) {
		runtime.SetMutexProfileFraction(1)
		return func() {
			writeLookup("mutex", f)
			runtime.SetMutexProfileFraction(0)
		}, nil
	}},
	{"block", func(f *os.File) (func(), error) {
		runtime.SetBlockProfileRate(1)
		return func() {
			writeLookup("block", f)
			runtime.SetBlockProfileRate(0)
		}, nil
	}},
	{"threadcreate", func(f *os.File) (func(), error) {
		return func() { writeLookup("threadcreate", f) }, nil
	}},
	{"trace", func(f *os.File) (func(), error) {
		if err := trace.Start(f); err != nil {
			return nil, err
		}
		return trace.Stop, nil
	}},
}

func writeLookup(name string, f *os.File) {
	if p := pprof.Lookup(name); p != nil {
		if err := p.WriteTo(f, 0); err != nil {
			glog.Errorf("pprof: write %s profile: %v", name, err)
		}
	}
}

// Profiler represents an active profiling session, toggled by SIGUSR2.
type Profiler struct {
	dataDir string
	closers []func()
	stopped uint32
}

// StartProfiler starts every profile kind the runtime offers, each into its own file
// under dataDir. Kinds that fail to start are logged and skipped.
func StartProfiler(dataDir string) *Profiler {
	p := &Profiler{dataDir: dataDir}
	for _, prof := range profiles {
		fn := p.dumpFile(prof.kind, "pprof")
		f, err := os.Create(fn)
		if err != nil {
			glog.Errorf("pprof: could not create %s profile %q: %v", prof.kind, fn, err)
			continue
		}
		stop, err := prof.start(f)
		if err != nil {
			glog.Errorf("pprof: could not start %s profile: %v", prof.kind, err)
			f.Close()
			continue
		}
		glog.Infof("pprof: %s profiling enabled, %s", prof.kind, fn)

		kind := prof.kind
		p.closers = append(p.closers, func() {
			stop()
			f.Close()
			glog.Infof("pprof: %s profiling disabled, %s", kind, fn)
		})
	}
	return p
}

// Stop stops the profiles and flushes any unwritten data. Only the first call counts.
func (p *Profiler) Stop() {
	if !atomic.CompareAndSwapUint32(&p.stopped, 0, 1) {
		return
	}
	for _, closer := range p.closers {
		closer()
	}
}

func (p *Profiler) dumpFile(kind, ext string) string {
	return filepath.Join(p.dataDir, fmt.Sprintf("%s-%s.%s", kind, time.Now().Format(timeFormat), ext))
}

// dumpGoroutines writes stacks of all goroutines under dataDir.
func dumpGoroutines(dataDir string) string {
	dumpFile := (&Profiler{dataDir: dataDir}).dumpFile("goroutines", "dump")
	glog.Infof("Got dump goroutine signal, dumping goroutine profile to %s", dumpFile)
	f, err := os.Create(dumpFile)
	if err != nil {
		glog.Errorf("Failed to dump goroutine profile, error: %v", err)
		return ""
	}
	defer f.Close()
	if err := pprof.Lookup("goroutine").WriteTo(f, 2); err != nil {
		glog.Errorf("Failed to write goroutine profile to %s, error: %v", dumpFile, err)
	}
	return dumpFile
}
