// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// A Digest is an order-independent fingerprint of a multiset of
// records: two streams have equal digests when they contain the same
// records with the same multiplicities, in any order. Digests are
// used to check that sorting neither drops nor duplicates records.
type Digest struct {
	// Count is the number of records added.
	Count int64
	// Sum is the wrapping sum of the records' murmur3 hashes.
	Sum uint64
}

// Add adds the provided records to the digest.
func (d *Digest) Add(vals []int64) {
	var b [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		d.Sum += murmur3.Sum64(b[:])
	}
	d.Count += int64(len(vals))
}

// String returns a compact representation of the digest.
func (d Digest) String() string {
	return fmt.Sprintf("%d:%016x", d.Count, d.Sum)
}

// DigestReader is a Reader that adds every record it reads to
// its digest.
type DigestReader struct {
	Reader
	Digest Digest
}

// Read implements Reader.
func (d *DigestReader) Read(ctx context.Context, out []int64) (int, error) {
	n, err := d.Reader.Read(ctx, out)
	d.Digest.Add(out[:n])
	return n, err
}

// DigestWriter is a Writer that adds every record it writes to its
// digest.
type DigestWriter struct {
	Writer
	Digest Digest
}

// Write implements Writer.
func (d *DigestWriter) Write(ctx context.Context, vals []int64) error {
	if err := d.Writer.Write(ctx, vals); err != nil {
		return err
	}
	d.Digest.Add(vals)
	return nil
}
