// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package sortio

import (
	"container/heap"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/extsort/internal/defaultsize"
	"github.com/grailbio/extsort/runio"
)

// A Cursor is the read position in one sorted run. The cursor is
// filled from its reader one vector at a time, and maintains the
// current index into the vector; the record at that index is the
// run's head, its smallest unconsumed record.
type Cursor struct {
	// Index is the run index, used to break ties between equal heads.
	Index int
	// Reader is the run reader from which the cursor is filled.
	runio.Reader

	buf      []int64
	pos, len int
}

// NewCursor returns a cursor for the run with the provided index,
// buffering up to n records at a time. The cursor must be filled
// before its head is accessed.
func NewCursor(index int, r runio.Reader, n int) *Cursor {
	if n < 1 {
		n = 1
	}
	return &Cursor{Index: index, Reader: r, buf: make([]int64, n)}
}

// Head returns the cursor's current record.
func (c *Cursor) Head() int64 {
	return c.buf[c.pos]
}

// Fill (re-) fills the cursor when it's empty. An error is returned
// if the underlying reader returns an error. EOF is returned if no
// more data are available.
func (c *Cursor) Fill(ctx context.Context) error {
	if c.pos != c.len {
		panic("Cursor.Fill: fill on nonempty cursor")
	}
	var err error
	c.len, err = c.Reader.Read(ctx, c.buf)
	c.pos = 0
	if err != nil && err != runio.EOF {
		c.len = 0
		return errors.E(err, fmt.Sprintf("read run %d", c.Index))
	}
	if c.len == 0 {
		return runio.EOF
	}
	return nil
}

// Advance consumes the cursor's head. It returns EOF when the run
// is exhausted.
func (c *Cursor) Advance(ctx context.Context) error {
	c.pos++
	if c.pos < c.len {
		return nil
	}
	return c.Fill(ctx)
}

// CursorHeap implements a min-heap of cursors, ordered by their
// heads and then by their run indices.
type CursorHeap []*Cursor

// Len implements heap.Interface.
func (h CursorHeap) Len() int { return len(h) }

// Less implements heap.Interface.
func (h CursorHeap) Less(i, j int) bool {
	if hi, hj := h[i].Head(), h[j].Head(); hi != hj {
		return hi < hj
	}
	return h[i].Index < h[j].Index
}

// Swap implements heap.Interface.
func (h CursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push implements heap.Interface.
func (h *CursorHeap) Push(x interface{}) {
	*h = append(*h, x.(*Cursor))
}

// Pop implements heap.Interface.
func (h *CursorHeap) Pop() interface{} {
	n := len(*h)
	elem := (*h)[n-1]
	*h = (*h)[:n-1]
	return elem
}

// mergeReader merges multiple (sorted) readers into a
// single sorted reader.
type mergeReader struct {
	heap    CursorHeap
	readers []runio.Reader
	err     error
}

// NewMergeReader returns a new Reader that merges the provided
// readers, each of which must already be sorted. Reader i is run i:
// equal records are produced in ascending run order. The heap holds
// one cursor per nonempty run; a run's cursor leaves the heap when
// the run is exhausted. Closing the returned reader closes every
// reader that implements io.Closer.
//
// The returned reader must be driven by a single goroutine.
func NewMergeReader(ctx context.Context, readers []runio.Reader) (runio.ReadCloser, error) {
	m := &mergeReader{
		heap:    make(CursorHeap, 0, len(readers)),
		readers: readers,
	}
	for i := range readers {
		c := NewCursor(i, readers[i], defaultsize.Vector)
		switch err := c.Fill(ctx); {
		case err == runio.EOF:
			// No data. Skip.
		case err != nil:
			m.Close()
			return nil, err
		default:
			m.heap = append(m.heap, c)
		}
	}
	heap.Init(&m.heap)
	return m, nil
}

// Read implements runio.Reader.
func (m *mergeReader) Read(ctx context.Context, out []int64) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if err := ctx.Err(); err != nil {
		m.err = errors.E(errors.Canceled, err)
		return 0, m.err
	}
	var n int
	for n < len(out) && len(m.heap) > 0 {
		c := m.heap[0]
		out[n] = c.Head()
		n++
		switch err := c.Advance(ctx); {
		case err == runio.EOF:
			heap.Remove(&m.heap, 0)
		case err != nil:
			m.err = err
			return n, err
		default:
			heap.Fix(&m.heap, 0)
		}
	}
	if n == 0 {
		m.err = runio.EOF
	}
	return n, m.err
}

// Close closes the underlying readers.
func (m *mergeReader) Close() error {
	var first error
	for _, r := range m.readers {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
