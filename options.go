// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package extsort

import (
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/status"
	"github.com/grailbio/extsort/runio"
	"github.com/grailbio/extsort/stats"
)

// Options configures a sort.
type Options struct {
	// ChunkSize is the maximum number of records held in memory in a
	// single batch. It must be at least 1.
	ChunkSize int

	// Parallelism is the number of batches that may be sorted and
	// spilled concurrently. Values below 1 are treated as 1, which
	// holds a single batch in memory at a time.
	Parallelism int

	// TempDir is the directory in which the sort's scratch directory
	// is created. The system's temporary directory is used if empty.
	TempDir string

	// Format is the encoding of run files. Input and output are
	// always text.
	Format runio.Format

	// Verify, if set, checks that the output holds exactly the
	// records of the input by comparing their digests.
	Verify bool

	// Stats, if not nil, is updated with the sort's counters as it
	// progresses.
	Stats *stats.Map

	// Status, if not nil, receives a task per phase of the sort.
	Status *status.Group
}

func (o Options) validate() error {
	if o.ChunkSize < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("extsort: chunk size %d: must be at least 1", o.ChunkSize))
	}
	switch o.Format {
	case runio.Text, runio.Binary:
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("extsort: unsupported run format %v", o.Format))
	}
	return nil
}
