// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package defaultsize holds process-wide default sizes used by the
// sort engine. They are configured by flags so that operators can tune
// them without a rebuild.
package defaultsize

import "flag"

var (
	// Chunk is the default number of records held in memory for a
	// single batch before it is sorted and spilled as a run.
	Chunk int
	// Vector is the number of records moved per Read call between
	// readers. Each open run holds one vector during merging, so the
	// merge footprint is roughly (#runs * Vector) records.
	Vector int
)

func init() {
	flag.IntVar(&Chunk, "extsort-default-chunk-records", 1<<20,
		"default number of records per in-memory batch")
	flag.IntVar(&Vector, "extsort-default-vector-records", 128,
		"default number of records read per I/O vector")
}
