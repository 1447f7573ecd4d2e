// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/extsort/stats"
)

// A Run is a sorted sequence of records spilled to a file.
type Run struct {
	// Index is the run's position in the input: run i holds the
	// records of the i'th batch. Merging breaks ties between equal
	// records by ascending index.
	Index int
	// Path is the location of the run's file.
	Path string
	// Records is the number of records in the run.
	Records int
	// Size is the encoded size of the run in bytes.
	Size int64
}

// A Spiller manages a set of runs stored in a private scratch
// directory. It tracks every run it creates, including runs whose
// write failed partway, so that Cleanup can remove exactly the files
// of this spiller. A Spiller may be used concurrently.
type Spiller struct {
	// Stats, if not nil, receives the spiller's counters.
	Stats *stats.Map

	dir    string
	format Format
	remove func(string) error

	mu   sync.Mutex
	next int
	runs []Run
}

// NewSpiller creates and returns a new spiller backed by a fresh
// directory in dir. The system's temporary directory is used when
// dir is empty. Runs are encoded in the provided format.
func NewSpiller(dir, name string, format Format) (*Spiller, error) {
	scratch, err := ioutil.TempDir(dir, fmt.Sprintf("extsort-%s-", name))
	if err != nil {
		return nil, errors.E(err, "extsort: could not create scratch directory")
	}
	return &Spiller{dir: scratch, format: format, remove: os.Remove}, nil
}

// Dir returns the spiller's scratch directory.
func (s *Spiller) Dir() string { return s.dir }

// Spill writes the provided batch, which must already be sorted, to
// a new run with the next free index.
func (s *Spiller) Spill(batch []int64) (Run, error) {
	s.mu.Lock()
	index := s.next
	s.next++
	s.mu.Unlock()
	return s.SpillIndex(index, batch)
}

// SpillIndex writes the provided batch, which must already be
// sorted, to a new run with the provided index. Indices must be
// unique within a spiller. The run is tracked before any data are
// written; if SpillIndex fails, the partial file is still removed
// by Cleanup.
func (s *Spiller) SpillIndex(index int, batch []int64) (run Run, err error) {
	f, err := ioutil.TempFile(s.dir, fmt.Sprintf("run-%06d-", index))
	if err != nil {
		return Run{}, errors.E(err, fmt.Sprintf("create run %d", index))
	}
	run = Run{Index: index, Path: f.Name(), Records: len(batch)}
	s.mu.Lock()
	pos := len(s.runs)
	s.runs = append(s.runs, run)
	if index >= s.next {
		s.next = index + 1
	}
	s.mu.Unlock()

	defer func() {
		fileio.CloseAndReport(f, &err)
		if err != nil {
			err = errors.E(err, fmt.Sprintf("write run %d", index))
		}
	}()
	enc := NewEncoder(f, s.format)
	if err = enc.Encode(batch); err != nil {
		return run, err
	}
	if err = enc.Flush(); err != nil {
		return run, err
	}
	run.Size = enc.Size()
	s.mu.Lock()
	s.runs[pos] = run
	s.mu.Unlock()
	s.Stats.Int(stats.Runs).Add(1)
	s.Stats.Int(stats.BytesSpilled).Add(run.Size)
	log.Debug.Printf("extsort: spilled run %d: %d records, %s", index, run.Records, data.Size(run.Size))
	return run, nil
}

// Runs returns the runs tracked by this spiller, ordered by index.
func (s *Spiller) Runs() []Run {
	s.mu.Lock()
	runs := make([]Run, len(s.runs))
	copy(runs, s.runs)
	s.mu.Unlock()
	sort.Slice(runs, func(i, j int) bool { return runs[i].Index < runs[j].Index })
	return runs
}

// Open returns a reader for the provided run. The reader holds one
// open file, which is released when the run is exhausted, when Read
// fails, or when the reader is closed.
func (s *Spiller) Open(run Run) (ReadCloser, error) {
	f, err := os.Open(run.Path)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("open run %d", run.Index))
	}
	return &ClosingReader{NewDecodingReader(f, s.format), f}, nil
}

// OpenAll returns a reader for each provided run. If any run cannot
// be opened, the readers opened so far are closed.
func (s *Spiller) OpenAll(runs []Run) ([]ReadCloser, error) {
	readers := make([]ReadCloser, len(runs))
	for i := range runs {
		r, err := s.Open(runs[i])
		if err != nil {
			for j := 0; j < i; j++ {
				readers[j].Close()
			}
			return nil, err
		}
		readers[i] = r
	}
	return readers, nil
}

// Cleanup removes every run tracked by the spiller, and then the
// scratch directory itself. Cleanup attempts every removal even if
// some fail; runs that are already gone are not failures. The
// returned error, if any, summarizes the failures. Runs that could
// not be removed remain tracked, so a subsequent Cleanup retries
// them. It is safe to call Cleanup after runs have been opened but
// before reading is done, and to call Cleanup more than once.
func (s *Spiller) Cleanup() error {
	s.mu.Lock()
	runs := s.runs
	s.runs = nil
	s.mu.Unlock()

	errs := make([]error, len(runs))
	_ = traverse.Each(len(runs), func(i int) error {
		if err := s.remove(runs[i].Path); err != nil && !os.IsNotExist(err) {
			errs[i] = errors.E(err, fmt.Sprintf("remove run %d", runs[i].Index))
		}
		return nil
	})
	var (
		failed []error
		kept   []Run
	)
	for i, err := range errs {
		if err != nil {
			failed = append(failed, err)
			kept = append(kept, runs[i])
		}
	}
	if len(kept) > 0 {
		// Keep tracking runs that could not be removed so that a later
		// Cleanup retries them.
		s.mu.Lock()
		s.runs = append(s.runs, kept...)
		s.mu.Unlock()
	}
	s.Stats.Int(stats.CleanupFailures).Add(int64(len(failed)))
	if len(failed) == 0 {
		if err := s.remove(s.dir); err != nil && !os.IsNotExist(err) {
			failed = append(failed, errors.E(err, "remove scratch directory"))
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	default:
		return errors.E(fmt.Sprintf("%d scratch files not removed", len(failed)), failed[0])
	}
}
