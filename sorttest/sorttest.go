// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sorttest provides utilities for testing the sort engine:
// seeded record generators, text conversions, order and multiset
// checks, and readers that fail on demand. The utilities here are
// not optimized for performance; they are strictly intended for
// unit testing.
package sorttest

import (
	"context"
	"fmt"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/extsort/runio"
)

// Fuzz returns n pseudo-random records drawn from the full int64
// range. The same seed always produces the same records.
func Fuzz(seed int64, n int) []int64 {
	fz := fuzz.NewWithSeed(seed)
	vals := make([]int64, n)
	for i := range vals {
		fz.Fuzz(&vals[i])
	}
	return vals
}

// FuzzMod returns n pseudo-random records in [0, mod), so that
// duplicates are frequent for small mod.
func FuzzMod(seed int64, n int, mod int64) []int64 {
	fz := fuzz.NewWithSeed(seed)
	vals := make([]int64, n)
	for i := range vals {
		var v uint64
		fz.Fuzz(&v)
		vals[i] = int64(v % uint64(mod))
	}
	return vals
}

// Text returns the records formatted one per line.
func Text(vals []int64) string {
	var b strings.Builder
	for _, v := range vals {
		b.WriteString(strconv.FormatInt(v, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse parses text in the one-record-per-line format. Errors are
// reported as fatal to the provided t instance.
func Parse(t testing.TB, text string) []int64 {
	t.Helper()
	vals, err := runio.ReadAll(context.Background(), runio.NewDecodingReader(strings.NewReader(text), runio.Text))
	if err != nil {
		t.Fatal(err)
	}
	return vals
}

// Sorted returns a sorted copy of vals.
func Sorted(vals []int64) []int64 {
	s := make([]int64, len(vals))
	copy(s, vals)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

// IsSorted tells whether vals is non-decreasing.
func IsSorted(vals []int64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i-1] > vals[i] {
			return false
		}
	}
	return true
}

// SameMultiset tells whether a and b contain the same records with
// the same multiplicities.
func SameMultiset(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[int64]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}

// Entries returns the names of the entries in dir, sorted. Errors
// are reported as fatal to the provided t instance.
func Entries(t testing.TB, dir string) []string {
	t.Helper()
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names
}

type failingReader struct {
	runio.Reader
	n   int
	err error
}

// FailingReader returns a reader that reads from r but returns err
// once n records have been read.
func FailingReader(r runio.Reader, n int, err error) runio.Reader {
	return &failingReader{r, n, err}
}

func (f *failingReader) Read(ctx context.Context, out []int64) (int, error) {
	if f.n == 0 {
		return 0, f.err
	}
	if len(out) > f.n {
		out = out[:f.n]
	}
	n, err := f.Reader.Read(ctx, out)
	f.n -= n
	if err == runio.EOF {
		return n, fmt.Errorf("sorttest: underlying reader ended before failure point (%d records remained): %v", f.n, err)
	}
	return n, err
}
