// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "sync/atomic"

// ProgressCounter is a shared atomic counter workers increment as they
// complete units of work (one scan decoded, one file opened); a UI
// poller reads it on a timer to drive a progress bar without coupling
// this package to any UI.
type ProgressCounter struct {
	n uint64
}

// NewProgressCounter returns a zero-initialized counter.
func NewProgressCounter() *ProgressCounter {
	return &ProgressCounter{}
}

// Tick increments the counter by one. Safe for concurrent use by
// multiple workers.
func (c *ProgressCounter) Tick() {
	atomic.AddUint64(&c.n, 1)
}

// Count returns the counter's current value.
func (c *ProgressCounter) Count() uint64 {
	return atomic.LoadUint64(&c.n)
}
