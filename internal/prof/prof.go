// Package prof captures Go runtime profiles of the server process itself,
// for diagnosing slow refreshes or leaks in long editor sessions.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Options names the output files. Empty paths disable a profile.
type Options struct {
	CPU  string
	Heap string
}

// Session is an active profiling session.
type Session struct {
	once    sync.Once
	cpuFile *os.File
	heap    string
	err     error
}

// Start begins the profiles selected by opts.
func Start(opts Options) (*Session, error) {
	s := &Session{heap: opts.Heap}
	if opts.CPU == "" {
		return s, nil
	}
	f, err := os.Create(opts.CPU)
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	s.cpuFile = f
	return s, nil
}

// Stop ends the CPU profile and writes the heap profile. Calls after the
// first return the first result.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		var errs []error
		if s.cpuFile != nil {
			pprof.StopCPUProfile()
			if err := s.cpuFile.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.heap != "" {
			if err := writeHeap(s.heap); err != nil {
				errs = append(errs, fmt.Errorf("heap profile: %w", err))
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}

func writeHeap(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
