// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package extsort

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/extsort/internal/defaultsize"
	"github.com/grailbio/extsort/runio"
	"github.com/grailbio/extsort/sortio"
	"github.com/grailbio/extsort/stats"
)

// progressInterval is the number of merged records between status
// updates.
const progressInterval = 1 << 20

// Result summarizes a sort.
type Result struct {
	// Records is the number of records written to the output.
	Records int64
	// Runs is the number of runs spilled.
	Runs int
	// Spilled is the total encoded size of the runs.
	Spilled data.Size
	// Digest is the digest of the output records.
	Digest runio.Digest
	// CleanupErr reports runs that could not be removed. It does not
	// affect the outcome of the sort.
	CleanupErr error
}

// Sort reads text records, one per line, from src, and writes them
// in ascending order to dst in the same format. Blank lines are
// skipped; any other line that is not a base-10 64-bit integer fails
// the sort with an errors.Invalid error.
//
// Sort removes all of its runs before returning, whether or not it
// succeeds. If Sort returns an error, the contents of dst are
// undefined.
func Sort(ctx context.Context, src io.Reader, dst io.Writer, opts Options) (res Result, err error) {
	if err = opts.validate(); err != nil {
		return res, err
	}
	spill, err := runio.NewSpiller(opts.TempDir, "sort", opts.Format)
	if err != nil {
		return res, err
	}
	spill.Stats = opts.Stats
	defer func() {
		if cerr := spill.Cleanup(); cerr != nil {
			log.Error.Printf("extsort: cleanup %s: %v", spill.Dir(), cerr)
			res.CleanupErr = cerr
		}
	}()

	gen := startPhase(opts.Status, "generate runs")
	in := &runio.DigestReader{
		Reader: &countingReader{runio.NewDecodingReader(src, runio.Text), opts.Stats.Int(stats.RecordsIn)},
	}
	sorted, err := sortio.SortReader(ctx, spill, in, opts.ChunkSize, opts.Parallelism)
	if err != nil {
		gen.done("error: %v", err)
		return res, err
	}
	defer sorted.Close()
	for _, run := range spill.Runs() {
		res.Runs++
		res.Spilled += data.Size(run.Size)
	}
	gen.done("%d records, %d runs, %s", in.Digest.Count, res.Runs, res.Spilled)

	merge := startPhase(opts.Status, "merge runs")
	var (
		enc = runio.NewEncoder(dst, runio.Text)
		out = &runio.DigestWriter{Writer: enc}
		buf = make([]int64, defaultsize.Vector)
		cnt = opts.Stats.Int(stats.RecordsOut)
	)
	for {
		n, rerr := sorted.Read(ctx, buf)
		if n > 0 {
			if err = out.Write(ctx, buf[:n]); err != nil {
				merge.done("error: %v", err)
				return res, errors.E(err, "extsort: write output")
			}
			cnt.Add(int64(n))
			if res.Records/progressInterval != (res.Records+int64(n))/progressInterval {
				merge.printf("%d/%d records", res.Records+int64(n), in.Digest.Count)
			}
			res.Records += int64(n)
		}
		if rerr == runio.EOF {
			break
		}
		if rerr != nil {
			merge.done("error: %v", rerr)
			return res, rerr
		}
	}
	if err = enc.Flush(); err != nil {
		merge.done("error: %v", err)
		return res, errors.E(err, "extsort: write output")
	}
	res.Digest = out.Digest
	if opts.Verify && out.Digest != in.Digest {
		err = errors.E(errors.Integrity,
			fmt.Sprintf("extsort: output digest %v does not match input digest %v", out.Digest, in.Digest))
		merge.done("error: %v", err)
		return res, err
	}
	merge.done("%d records", res.Records)
	log.Printf("extsort: sorted %d records using %d runs (%s spilled)", res.Records, res.Runs, res.Spilled)
	return res, nil
}

// SortFile sorts the records in the file at inPath into a new file at
// outPath. Paths are resolved by github.com/grailbio/base/file, so
// they may name any registered file implementation (e.g., S3). If
// the sort fails, the output is discarded: any file previously at
// outPath is left as it was.
func SortFile(ctx context.Context, inPath, outPath string, opts Options) (res Result, err error) {
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return res, errors.E(err, "extsort: open input")
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = errors.E(cerr, "extsort: close input")
		}
	}()
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return res, errors.E(err, "extsort: create output")
	}
	res, err = Sort(ctx, in.Reader(ctx), out.Writer(ctx), opts)
	if err != nil {
		out.Discard(ctx)
		return res, err
	}
	if err = out.Close(ctx); err != nil {
		return res, errors.E(err, "extsort: close output")
	}
	return res, nil
}

type countingReader struct {
	runio.Reader
	count *stats.Int
}

func (c *countingReader) Read(ctx context.Context, out []int64) (int, error) {
	n, err := c.Reader.Read(ctx, out)
	c.count.Add(int64(n))
	return n, err
}

// Phase reports the progress of one phase of a sort to a status
// task. The zero phase discards updates.
type phase struct {
	task *status.Task
}

func startPhase(group *status.Group, title string) phase {
	if group == nil {
		return phase{}
	}
	return phase{group.Start(title)}
}

func (p phase) printf(format string, args ...interface{}) {
	if p.task != nil {
		p.task.Printf(format, args...)
	}
}

func (p phase) done(format string, args ...interface{}) {
	if p.task != nil {
		p.task.Printf(format, args...)
		p.task.Done()
	}
}
