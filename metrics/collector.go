// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package metrics exposes a stripedict.StripedDict as a
// prometheus.Collector, grounded on the teacher's
// cmd/ocprometheus/collector.go Describe/Collect shape.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stats is the subset of *stripedict.StripedDict[K, V, H] this package
// depends on. It is expressed as an interface, rather than importing the
// stripedict package directly, so stripedict itself stays free to use
// metrics.NewCollector without an import cycle.
type Stats interface {
	Count() int
	Capacity() int
	SegmentsCount() int
	HasLargeAllocations() bool
}

var (
	countDesc = prometheus.NewDesc(
		"stripedict_count", "Number of live key/value pairs.", nil, nil)
	capacityDesc = prometheus.NewDesc(
		"stripedict_capacity", "Nominal capacity (segments * MaxCapacityBeforeLOH).", nil, nil)
	segmentsDesc = prometheus.NewDesc(
		"stripedict_segments", "Current number of segments.", nil, nil)
	largeAllocDesc = prometheus.NewDesc(
		"stripedict_has_large_allocations",
		"1 if any segment's entry array exceeds the large-object threshold, else 0.", nil, nil)
)

// Collector adapts a Stats (normally a *stripedict.StripedDict) to
// prometheus.Collector.
type Collector struct {
	stats Stats
}

// NewCollector wraps stats for registration with a prometheus.Registerer.
func NewCollector(stats Stats) *Collector {
	return &Collector{stats: stats}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- countDesc
	ch <- capacityDesc
	ch <- segmentsDesc
	ch <- largeAllocDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(countDesc, prometheus.GaugeValue, float64(c.stats.Count()))
	ch <- prometheus.MustNewConstMetric(capacityDesc, prometheus.GaugeValue, float64(c.stats.Capacity()))
	ch <- prometheus.MustNewConstMetric(segmentsDesc, prometheus.GaugeValue, float64(c.stats.SegmentsCount()))
	large := 0.0
	if c.stats.HasLargeAllocations() {
		large = 1.0
	}
	ch <- prometheus.MustNewConstMetric(largeAllocDesc, prometheus.GaugeValue, large)
}
