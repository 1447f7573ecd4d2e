// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/extsort/runio"
	"github.com/grailbio/extsort/sorttest"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
)

func newSpiller(t *testing.T, format runio.Format) (*runio.Spiller, func()) {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "")
	spill, err := runio.NewSpiller(dir, "test", format)
	if err != nil {
		cleanup()
		t.Fatal(err)
	}
	return spill, func() {
		if err := spill.Cleanup(); err != nil {
			t.Error(err)
		}
		cleanup()
	}
}

func readRuns(t *testing.T, spill *runio.Spiller, runs []runio.Run) [][]int64 {
	t.Helper()
	readers, err := spill.OpenAll(runs)
	assert.NoError(t, err)
	contents := make([][]int64, len(readers))
	for i := range readers {
		contents[i], err = runio.ReadAll(context.Background(), readers[i])
		assert.NoError(t, err)
	}
	return contents
}

func TestGenerate(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		spill, cleanup := newSpiller(t, runio.Text)
		in := runio.SliceReader([]int64{5, 3, 8, 1, 9, 2, 7})
		runs, err := Generate(context.Background(), spill, in, 3, parallelism)
		assert.NoError(t, err)
		got := readRuns(t, spill, runs)
		want := [][]int64{{3, 5, 8}, {1, 2, 9}, {7}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("parallelism %d: got %v, want %v", parallelism, got, want)
		}
		for i, run := range runs {
			assert.EQ(t, run.Index, i)
		}
		cleanup()
	}
}

func TestGenerateDuplicates(t *testing.T) {
	spill, cleanup := newSpiller(t, runio.Binary)
	defer cleanup()
	runs, err := Generate(context.Background(), spill, runio.SliceReader([]int64{4, 4, 4}), 2, 1)
	assert.NoError(t, err)
	got := readRuns(t, spill, runs)
	if want := [][]int64{{4, 4}, {4}}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGenerateBoundaries(t *testing.T) {
	for _, c := range []struct {
		n, chunk, runs int
	}{
		{0, 1, 0},
		{1, 1, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{20, 10, 2},
		{100, 1, 100},
	} {
		spill, cleanup := newSpiller(t, runio.Text)
		runs, err := Generate(context.Background(), spill, runio.SliceReader(sorttest.Fuzz(1, c.n)), c.chunk, 2)
		assert.NoError(t, err)
		if got, want := len(runs), c.runs; got != want {
			t.Errorf("n=%d chunk=%d: got %v runs, want %v", c.n, c.chunk, got, want)
		}
		if got, want := len(sorttest.Entries(t, spill.Dir())), c.runs; got != want {
			t.Errorf("n=%d chunk=%d: got %v files, want %v", c.n, c.chunk, got, want)
		}
		for _, contents := range readRuns(t, spill, runs) {
			if len(contents) == 0 || len(contents) > c.chunk {
				t.Errorf("n=%d chunk=%d: run of length %d", c.n, c.chunk, len(contents))
			}
			if !sorttest.IsSorted(contents) {
				t.Errorf("n=%d chunk=%d: unsorted run", c.n, c.chunk)
			}
		}
		cleanup()
	}
}

func TestGenerateInvalidChunk(t *testing.T) {
	spill, cleanup := newSpiller(t, runio.Text)
	defer cleanup()
	_, err := Generate(context.Background(), spill, runio.SliceReader([]int64{1}), 0, 1)
	if !gerrors.Is(gerrors.Invalid, err) {
		t.Errorf("got %v, want invalid", err)
	}
}

func TestGenerateReadError(t *testing.T) {
	spill, cleanup := newSpiller(t, runio.Text)
	defer cleanup()
	fail := errors.New("bad input")
	in := sorttest.FailingReader(runio.SliceReader(sorttest.Fuzz(2, 100)), 25, fail)
	_, err := Generate(context.Background(), spill, in, 10, 3)
	if got, want := err, fail; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// The runs spilled before the failure are tracked for cleanup.
	if got, want := len(spill.Runs()), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGenerateSpillError(t *testing.T) {
	spill, cleanup := newSpiller(t, runio.Text)
	defer cleanup()
	assert.NoError(t, os.Remove(spill.Dir()))
	_, err := Generate(context.Background(), spill, runio.SliceReader(sorttest.Fuzz(3, 100)), 10, 2)
	assert.NotNil(t, err)
}

func TestGenerateCanceled(t *testing.T) {
	spill, cleanup := newSpiller(t, runio.Text)
	defer cleanup()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, spill, runio.SliceReader(sorttest.Fuzz(3, 100)), 10, 1)
	if !gerrors.Is(gerrors.Canceled, err) {
		t.Errorf("got %v, want canceled", err)
	}
}

func TestSortReader(t *testing.T) {
	const N = 1 << 16
	vals := sorttest.FuzzMod(12345, N, 1000)
	for _, format := range []runio.Format{runio.Text, runio.Binary} {
		spill, cleanup := newSpiller(t, format)
		ctx := context.Background()
		sorted, err := SortReader(ctx, spill, runio.SliceReader(vals), 1000, 4)
		assert.NoError(t, err)
		out, err := runio.ReadAll(ctx, sorted)
		assert.NoError(t, err)
		assert.NoError(t, sorted.Close())
		if got, want := len(spill.Runs()), (N+999)/1000; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if !reflect.DeepEqual(out, sorttest.Sorted(vals)) {
			t.Errorf("%s: output mismatch", format)
		}
		cleanup()
		if _, err := os.Stat(spill.Dir()); !os.IsNotExist(err) {
			t.Errorf("scratch directory left behind: %v", err)
		}
	}
}

func TestMergeTruncatedRun(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	spill, err := runio.NewSpiller(dir, "test", runio.Binary)
	assert.NoError(t, err)
	var (
		ctx  = context.Background()
		vals = sorttest.Fuzz(13, 10000)
	)
	runs, err := Generate(ctx, spill, runio.SliceReader(vals), 1000, 2)
	assert.NoError(t, err)
	assert.EQ(t, len(runs), 10)
	// Cut run 3 in the middle of its 501st record, well past the
	// first vector read while priming the merge.
	assert.NoError(t, os.Truncate(runs[3].Path, 500*8+3))

	rcs, err := spill.OpenAll(runs)
	assert.NoError(t, err)
	readers := make([]runio.Reader, len(rcs))
	for i := range rcs {
		readers[i] = rcs[i]
	}
	m, err := NewMergeReader(ctx, readers)
	assert.NoError(t, err)
	out, err := runio.ReadAll(ctx, m)
	if !gerrors.Is(gerrors.Integrity, err) {
		t.Fatalf("got %v, want integrity error", err)
	}
	if !strings.Contains(err.Error(), "read run 3") {
		t.Errorf("error %q does not name the run", err)
	}
	if len(out) >= len(vals) {
		t.Errorf("merged %d records from a truncated run", len(out))
	}
	if !sorttest.IsSorted(out) {
		t.Error("partial output not sorted")
	}
	assert.NoError(t, m.Close())

	assert.NoError(t, spill.Cleanup())
	if got := sorttest.Entries(t, dir); len(got) != 0 {
		t.Errorf("scratch entries left behind: %v", got)
	}
}
