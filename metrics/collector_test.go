// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeStats struct {
	count, capacity, segments int
	largeAllocations          bool
}

func (f fakeStats) Count() int               { return f.count }
func (f fakeStats) Capacity() int             { return f.capacity }
func (f fakeStats) SegmentsCount() int        { return f.segments }
func (f fakeStats) HasLargeAllocations() bool { return f.largeAllocations }

func TestCollectReportsCurrentStats(t *testing.T) {
	stats := fakeStats{count: 3, capacity: 128, segments: 7, largeAllocations: true}
	c := NewCollector(stats)

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	got := map[string]float64{}
	for _, f := range families {
		for _, m := range f.Metric {
			got[f.GetName()] = m.GetGauge().GetValue()
		}
	}

	want := map[string]float64{
		"stripedict_count":                 3,
		"stripedict_capacity":              128,
		"stripedict_segments":              7,
		"stripedict_has_large_allocations": 1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}
}
