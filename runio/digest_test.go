// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"context"
	"testing"
)

func TestDigest(t *testing.T) {
	var a, b, c Digest
	a.Add([]int64{5, 3, 8, 1, 9, 2, 7})
	b.Add([]int64{1, 2, 3})
	b.Add([]int64{5, 7, 8, 9})
	if got, want := a, b; got != want {
		t.Errorf("permutation: got %v, want %v", got, want)
	}
	c.Add([]int64{1, 2, 3, 5, 7, 8, 9, 9})
	if a == c {
		t.Error("digest does not see a duplicated record")
	}
	var d, e Digest
	d.Add([]int64{4, 4})
	e.Add([]int64{4, 5})
	if d == e {
		t.Error("digest does not distinguish multiplicities")
	}
}

func TestDigestReaderWriter(t *testing.T) {
	ctx := context.Background()
	vals := []int64{4, -4, 4, 1 << 40}
	r := &DigestReader{Reader: SliceReader(vals)}
	out, err := ReadAll(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	w := &DigestWriter{Writer: discard{}}
	if err := w.Write(ctx, out); err != nil {
		t.Fatal(err)
	}
	if got, want := w.Digest, r.Digest; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := r.Digest.Count, int64(len(vals)); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

type discard struct{}

func (discard) Write(ctx context.Context, vals []int64) error { return nil }
