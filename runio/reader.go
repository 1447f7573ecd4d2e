// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package runio provides the I/O layer of the sort engine: readers
// and writers of record vectors, the run file codecs, and the
// Spiller, which owns the lifecycle of spilled runs.
package runio

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
)

// EOF is the error returned by Reader.Read when no more data is
// available. EOF is intended as a sentinel error: it signals a
// graceful end of output. If output terminates unexpectedly, a
// different error should be returned.
var EOF = errors.New("EOF")

// A Reader represents a stateful stream of records. Each call to
// Read reads the next set of available records.
type Reader interface {
	// Read reads up to len(out) records into out. Read returns the
	// number of records read, or an error. When no more records are
	// available, Read returns EOF. Read may return EOF when n > 0. In
	// this case, n records were read, but no more are available.
	//
	// Read should not be called concurrently.
	Read(ctx context.Context, out []int64) (int, error)
}

// A ReadCloser is a Reader that holds a resource which must be
// released.
type ReadCloser interface {
	Reader
	io.Closer
}

type sliceReader struct {
	vals []int64
}

// SliceReader returns a Reader that reads the provided records to
// completion.
func SliceReader(vals []int64) Reader {
	return &sliceReader{vals}
}

func (s *sliceReader) Read(ctx context.Context, out []int64) (int, error) {
	n := copy(out, s.vals)
	s.vals = s.vals[n:]
	if len(s.vals) == 0 {
		return n, EOF
	}
	return n, nil
}

// ReadFull reads len(out) records. ReadFull reads short vectors
// only on error, including EOF.
func ReadFull(ctx context.Context, r Reader, out []int64) (n int, err error) {
	for n < len(out) {
		m, err := r.Read(ctx, out[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// ReadAll reads all records from r. ReadAll is not tuned for
// performance and is intended for testing purposes.
func ReadAll(ctx context.Context, r Reader) ([]int64, error) {
	var (
		all []int64
		buf = make([]int64, 256)
	)
	for {
		n, err := r.Read(ctx, buf)
		all = append(all, buf[:n]...)
		if err == EOF {
			return all, nil
		}
		if err != nil {
			return all, err
		}
	}
}

// An errReader is a reader that only returns errors.
type errReader struct{ Err error }

// ErrReader returns a reader that returns the provided error
// on every call to read. ErrReader panics if err is nil.
func ErrReader(err error) Reader {
	if err == nil {
		panic("nil error")
	}
	return &errReader{err}
}

func (e errReader) Read(ctx context.Context, out []int64) (int, error) {
	return 0, e.Err
}

// A ClosingReader closes the provided io.Closer when Read returns
// any error, or when it is closed explicitly, whichever happens
// first.
type ClosingReader struct {
	Reader
	Closer io.Closer
}

// Read implements Reader.
func (c *ClosingReader) Read(ctx context.Context, out []int64) (int, error) {
	n, err := c.Reader.Read(ctx, out)
	if err != nil {
		c.Close()
	}
	return n, err
}

// Close releases the underlying resource. It is safe to call Close
// more than once.
func (c *ClosingReader) Close() error {
	if c.Closer == nil {
		return nil
	}
	err := c.Closer.Close()
	c.Closer = nil
	return err
}
