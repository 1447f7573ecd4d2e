// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package stats provides the counters maintained by a sort. Counters
// are grouped into a Map that can be snapshotted at any time, for
// example to render progress while a sort is still running.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Names of the counters maintained by the sort engine.
const (
	// RecordsIn counts records read from the input stream.
	RecordsIn = "records_in"
	// RecordsOut counts records written to the output sink.
	RecordsOut = "records_out"
	// Runs counts spilled runs.
	Runs = "runs"
	// BytesSpilled counts the encoded size of all runs.
	BytesSpilled = "bytes_spilled"
	// CleanupFailures counts run files that could not be removed.
	CleanupFailures = "cleanup_failures"
)

// Values is a snapshot of the values in a Map.
type Values map[string]int64

// String returns the values sorted by key, formatted as key:value.
func (v Values) String() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for i, key := range keys {
		keys[i] = fmt.Sprintf("%s:%d", key, v[key])
	}
	return strings.Join(keys, " ")
}

// A Map is a set of counters keyed by name. A nil *Map is valid:
// it hands out nil counters, which discard updates.
type Map struct {
	mu     sync.Mutex
	values map[string]*Int
}

// NewMap returns a Map with the sort engine's counters registered
// at zero.
func NewMap() *Map {
	m := &Map{values: make(map[string]*Int)}
	for _, name := range []string{RecordsIn, RecordsOut, Runs, BytesSpilled, CleanupFailures} {
		m.values[name] = new(Int)
	}
	return m
}

// Int returns the counter with the provided name, creating it if
// needed.
func (m *Map) Int(name string) *Int {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.values[name]
	if v == nil {
		v = new(Int)
		m.values[name] = v
	}
	return v
}

// Snapshot returns the current values of every counter in the map.
func (m *Map) Snapshot() Values {
	vals := make(Values)
	if m == nil {
		return vals
	}
	m.mu.Lock()
	for k, v := range m.values {
		vals[k] = v.Get()
	}
	m.mu.Unlock()
	return vals
}

// An Int is an integer counter that may be updated concurrently.
type Int struct {
	val int64
}

// Add increments v by delta.
func (v *Int) Add(delta int64) {
	if v == nil {
		return
	}
	atomic.AddInt64(&v.val, delta)
}

// Get returns the current value of the counter.
func (v *Int) Get() int64 {
	if v == nil {
		return 0
	}
	return atomic.LoadInt64(&v.val)
}
