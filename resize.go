// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package stripedict

import (
	"math"

	"github.com/aristanetworks/stripedict/segment"
)

// afterInsert runs the growth-on-add policy (spec.md §4.2) after a
// successful insert into seg at segIdx within segs.
func (d *StripedDict[K, V, H]) afterInsert(segs []*segment.Segment[K, V, H], segIdx int, seg *segment.Segment[K, V, H]) {
	if d.cooldown > 0 {
		d.cooldown--
		return
	}
	if seg.Count() < d.maxCapBeforeLOH {
		return
	}
	if d.resizeAfterAdding(segs) {
		return
	}
	d.cooldown = MinimumAddsBetweenFailedResizes
	d.logger.Errorf("stripedict: resize exhausted %d attempts after segment %d filled; "+
		"cooling down for %d adds", MaximumResizeAttempts, segIdx, MinimumAddsBetweenFailedResizes)
}

// resizeAfterAdding attempts up to MaximumResizeAttempts global resizes at
// capacities capacity * GrowMultiplier^k, k = 1..MaximumResizeAttempts. It
// returns true on the first attempt that succeeds.
func (d *StripedDict[K, V, H]) resizeAfterAdding(segs []*segment.Segment[K, V, H]) bool {
	base := float64(d.capacity)
	for k := 1; k <= MaximumResizeAttempts; k++ {
		desired := int(base * math.Pow(GrowMultiplier, float64(k)))
		if d.globalResize(segs, desired) {
			return true
		}
	}
	return false
}

// afterRemove runs the shrink-on-remove policy (spec.md §4.2) after a
// successful remove from seg.
func (d *StripedDict[K, V, H]) afterRemove(segs []*segment.Segment[K, V, H], segIdx int, seg *segment.Segment[K, V, H]) {
	if len(segs) <= MinimumSegmentsCount {
		return
	}
	if float64(d.Count()) > float64(d.capacity)*ShrinkThreshold {
		return
	}
	desired := int(float64(d.capacity) * ShrinkMultiplier)
	d.globalResize(segs, desired)
}

// globalResize rebuilds the segments array for the given desired capacity,
// moving every live pair with Segment.AddUnsafe. It aborts (returning
// false, leaving the dictionary unchanged) if any new segment would need
// to exceed primes.MaxCapacity, per spec.md §4.2.
func (d *StripedDict[K, V, H]) globalResize(oldSegs []*segment.Segment[K, V, H], desired int) bool {
	maxCapBeforeLOH := d.maxCapBeforeLOH
	optimalSegCap := int(0.9 * float64(maxCapBeforeLOH))
	newCount := segmentsFor(desired, optimalSegCap)
	if newCount == len(oldSegs) {
		return true
	}
	newPerSeg := perSegmentCapacity(desired, newCount)

	newSegs := make([]*segment.Segment[K, V, H], newCount)
	for i := range newSegs {
		newSegs[i] = segment.New[K, V, H](newPerSeg)
	}

	var h H
	for _, oldSeg := range oldSegs {
		ok := true
		oldSeg.Range(func(key K, value V) bool {
			hash := h.Hash(key)
			target, _ := route(newSegs, hash)
			if !target.AddUnsafe(key, value, hash) {
				ok = false
				return false
			}
			return true
		})
		if !ok {
			return false
		}
	}

	d.segments.Store(&newSegs)
	d.capacity = newCount * maxCapBeforeLOH
	d.cooldown = 0
	d.logger.Infof("stripedict: resized from %d to %d segments", len(oldSegs), newCount)
	return true
}
