// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command extsort sorts a file of integers, one per line, using a
// bounded amount of memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/base/status"
	"github.com/grailbio/extsort"
	"github.com/grailbio/extsort/internal/defaultsize"
	"github.com/grailbio/extsort/runio"
	"github.com/grailbio/extsort/stats"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: extsort [flags] input output

Command extsort sorts the integers in input, one per line, in
ascending order, and writes them to output. Input and output may be
local paths or S3 URLs; "-" denotes standard input or output.
Sorted runs of at most -chunk records are spilled to a scratch
directory under -tmpdir, which is removed when extsort exits.

Flags:
`)
		flag.PrintDefaults()
		os.Exit(2)
	}
	var (
		chunk       = flag.Int("chunk", 0, "maximum number of records held in memory per batch (default -extsort-default-chunk-records)")
		parallelism = flag.Int("parallel", 1, "number of batches sorted concurrently")
		tmpdir      = flag.String("tmpdir", "", "directory in which to create the scratch directory")
		format      = flag.String("format", "binary", "run file format: text or binary")
		verify      = flag.Bool("verify", false, "verify that the output is a permutation of the input")
		showStatus  = flag.Bool("status", false, "print sort status to stderr")
	)
	log.AddFlags()
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
	}

	runFormat, err := runio.ParseFormat(*format)
	must.Nil(err)
	opts := extsort.Options{
		ChunkSize:   *chunk,
		Parallelism: *parallelism,
		TempDir:     *tmpdir,
		Format:      runFormat,
		Verify:      *verify,
		Stats:       stats.NewMap(),
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = defaultsize.Chunk
	}
	if *showStatus {
		var (
			st       status.Status
			reporter status.Reporter
		)
		opts.Status = st.Group("extsort")
		go reporter.Go(os.Stderr, &st)
	}

	res, err := sortArgs(context.Background(), flag.Arg(0), flag.Arg(1), opts)
	must.Nil(err, "extsort")
	log.Printf("extsort: %d records, %d runs, %s spilled, digest %v, stats %v",
		res.Records, res.Runs, res.Spilled, res.Digest, opts.Stats.Snapshot())
}

// sortArgs sorts in to out, where either may be "-" to denote
// standard input or output.
func sortArgs(ctx context.Context, in, out string, opts extsort.Options) (extsort.Result, error) {
	if in != "-" && out != "-" {
		return extsort.SortFile(ctx, in, out, opts)
	}
	var (
		src io.Reader = os.Stdin
		dst io.Writer = os.Stdout
	)
	if in != "-" {
		f, err := file.Open(ctx, in)
		if err != nil {
			return extsort.Result{}, err
		}
		defer f.Close(ctx)
		src = f.Reader(ctx)
	}
	if out == "-" {
		return extsort.Sort(ctx, src, dst, opts)
	}
	f, err := file.Create(ctx, out)
	if err != nil {
		return extsort.Result{}, err
	}
	res, err := extsort.Sort(ctx, src, f.Writer(ctx), opts)
	if err != nil {
		f.Discard(ctx)
		return res, err
	}
	return res, f.Close(ctx)
}
