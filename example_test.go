// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package extsort_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/grailbio/extsort"
)

func ExampleSort() {
	in := strings.NewReader("5\n3\n8\n1\n9\n2\n7\n")
	res, err := extsort.Sort(context.Background(), in, os.Stdout, extsort.Options{ChunkSize: 3})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("runs:", res.Runs)
	// Output:
	// 1
	// 2
	// 3
	// 5
	// 7
	// 8
	// 9
	// runs: 3
}
