// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package extsort implements a bounded-memory external sort of
	integer records stored one per line of text.

	Sorting proceeds in two phases. First, the input is read in
	batches of at most Options.ChunkSize records; each batch is sorted
	in memory and spilled to a run file in a private scratch
	directory. Second, all runs are opened at once and merged by a
	k-way merge driven by a min-heap over the runs' current records.
	The merged stream is written to the output as it is produced; the
	full result is never held in memory. Memory use is therefore
	bounded by the chunk size during the first phase, and by the
	number of runs during the second, so callers should size
	ChunkSize such that input size / ChunkSize open files is
	acceptable.

	Run files are removed when Sort returns, whether it succeeds or
	fails. Failures to remove a run do not fail the sort; they are
	logged and reported in Result.CleanupErr. A process that is killed
	leaves its scratch directory (named extsort-sort-*) behind.

	Equal records are merged in run order, so the output for a given
	input is deterministic.

	The packages sortio and runio provide the underlying run
	generation, merging and run storage, and can be used directly to
	sort other record streams.
*/
package extsort
