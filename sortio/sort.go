// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sortio provides facilities for sorting record streams that
// do not fit in memory: Generate partitions a stream into sorted
// runs spilled to disk, and NewMergeReader merges sorted runs into a
// single sorted stream.
package sortio

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/extsort/runio"
	"golang.org/x/sync/errgroup"
)

// Generate drains r in consecutive batches of at most chunkSize
// records. Each batch is sorted and spilled to a new run in spill.
// Up to parallelism batches are sorted and spilled concurrently;
// since each batch in flight is held in memory, peak memory use is
// O(parallelism*chunkSize) records. Run indices follow input order
// regardless of parallelism. Generate returns the runs it created,
// ordered by index; an empty stream creates no runs.
//
// If Generate fails, the runs created so far remain tracked by the
// spiller, whose Cleanup removes them.
func Generate(ctx context.Context, spill *runio.Spiller, r runio.Reader, chunkSize, parallelism int) ([]runio.Run, error) {
	if chunkSize < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("chunk size %d: must be at least 1", chunkSize))
	}
	if parallelism < 1 {
		parallelism = 1
	}
	var (
		lim     = limiter.New()
		g, gctx = errgroup.WithContext(ctx)
		mu      sync.Mutex
		runs    []runio.Run
		readErr error
	)
	lim.Release(parallelism)
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			readErr = errors.E(errors.Canceled, err)
			break
		}
		if err := lim.Acquire(gctx, 1); err != nil {
			readErr = err
			break
		}
		batch := make([]int64, chunkSize)
		n, err := runio.ReadFull(gctx, r, batch)
		eof := err == runio.EOF
		if err != nil && !eof {
			lim.Release(1)
			readErr = err
			break
		}
		if n == 0 {
			lim.Release(1)
			break
		}
		batch = batch[:n]
		index := index
		g.Go(func() error {
			defer lim.Release(1)
			sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
			run, err := spill.SpillIndex(index, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
		if eof {
			break
		}
	}
	// Worker errors take precedence: they also cause the reading loop
	// above to stop with a cancellation error.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Index < runs[j].Index })
	return runs, nil
}

// SortReader sorts the records of r by spilling sorted runs of at
// most chunkSize records to spill, and returning a reader that
// merges them. The caller must close the returned reader and is
// responsible for cleaning up the spiller once reading is done.
func SortReader(ctx context.Context, spill *runio.Spiller, r runio.Reader, chunkSize, parallelism int) (runio.ReadCloser, error) {
	runs, err := Generate(ctx, spill, r, chunkSize, parallelism)
	if err != nil {
		return nil, err
	}
	var nrec int
	for _, run := range runs {
		nrec += run.Records
	}
	log.Printf("extsort: generated %d runs (%d records, chunk size %d)", len(runs), nrec, chunkSize)
	rcs, err := spill.OpenAll(runs)
	if err != nil {
		return nil, err
	}
	readers := make([]runio.Reader, len(rcs))
	for i := range rcs {
		readers[i] = rcs[i]
	}
	return NewMergeReader(ctx, readers)
}
