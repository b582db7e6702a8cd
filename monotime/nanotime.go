// Copyright (C) 2016  Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package monotime provides a fast monotonic clock source, insulated from
// wall-clock adjustments (NTP steps, manual clock changes): Now returns an
// opaque timestamp and Since measures elapsed time between two of them.
package monotime

import "time"

// epoch anchors Now's return values; only differences between two Now()
// results are meaningful, never the absolute value.
var epoch = time.Now()

// Now returns an opaque monotonic timestamp.
func Now() uint64 {
	return uint64(time.Since(epoch))
}

// Since returns the time elapsed since t, a value previously returned by
// Now.
func Since(t uint64) time.Duration {
	return time.Duration(uint64(time.Since(epoch)) - t)
}
