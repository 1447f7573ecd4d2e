// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package runio

import "context"

// Writer can write a vector of records to an underlying data stream.
type Writer interface {
	// Write writes vals to an underlying data stream. It returns a
	// non-nil error if there is a problem writing, and vals may have
	// been partially written.
	Write(ctx context.Context, vals []int64) error
}
