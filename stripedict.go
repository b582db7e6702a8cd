// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package stripedict implements a striped, segmented hash dictionary: a
// single writer may mutate it at a time (serialized by the caller), while
// any number of readers and enumerators run concurrently without ever
// blocking. Each stripe (segment) is a small seqlock-protected chained hash
// table; see package segment for the per-stripe protocol, and DESIGN.md
// for how the pieces fit together.
package stripedict

import (
	"sync/atomic"

	"github.com/aristanetworks/stripedict/capability"
	"github.com/aristanetworks/stripedict/errs"
	"github.com/aristanetworks/stripedict/internal/primes"
	"github.com/aristanetworks/stripedict/logger"
	"github.com/aristanetworks/stripedict/segment"
)

// Resize policy constants.
const (
	// MinimumSegmentsCount is the smallest number of segments a
	// dictionary ever has, regardless of requested capacity.
	MinimumSegmentsCount = 7
	// MinimumSegmentCapacity is the smallest per-segment capacity used
	// when sizing segments at construction or during a global resize.
	MinimumSegmentCapacity = 16
	// GrowMultiplier is the factor applied to the dictionary's current
	// nominal capacity on each attempt of ResizeAfterAdding.
	GrowMultiplier = 1.75
	// ShrinkThreshold is the live-fraction of capacity below which a
	// shrink is attempted after a successful Remove.
	ShrinkThreshold = 0.40
	// ShrinkMultiplier is the factor applied to capacity when shrinking.
	ShrinkMultiplier = 0.50
	// MaximumResizeAttempts bounds how many growth factors
	// ResizeAfterAdding tries before giving up and entering cooldown.
	MaximumResizeAttempts = 3
	// MinimumAddsBetweenFailedResizes is the cooldown, in successful
	// adds, imposed after ResizeAfterAdding exhausts its attempts.
	MinimumAddsBetweenFailedResizes = 1000

	defaultCapacity = 128
)

// options collects constructor settings built up by Option values.
type options struct {
	capacity int
	logger   logger.Logger
}

// Option configures a StripedDict at construction time.
type Option func(*options)

// WithCapacity sets the initial expected key count; segment count and
// per-segment capacity are both derived from it. The default is 128.
func WithCapacity(capacity int) Option {
	return func(o *options) { o.capacity = capacity }
}

// WithLogger attaches a logger.Logger used for the two observability
// lines this package emits: a warning when ResizeAfterAdding exhausts its
// attempts and enters cooldown, and an info line after a successful
// global resize. Metrics are not wired here; wrap the constructed
// *StripedDict with metrics.NewCollector and register it yourself, the
// same way you would wrap any other prometheus.Collector.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// StripedDict is a concurrent hash dictionary striped across segments, each
// independently seqlock-protected. K is the key type, V the value type,
// and H a stateless hash/equality capability for K (see package
// capability). Exactly one goroutine may call a mutating method
// (Add, TryAdd, Set, Remove) at a time; the caller is responsible for that
// serialization, the same way spec.md's single-writer discipline requires.
// Any number of goroutines may call TryGetValue, ContainsKey, MustGet, or
// Range concurrently with each other and with the single writer.
type StripedDict[K any, V any, H capability.HashEqual[K]] struct {
	segments        atomic.Pointer[[]*segment.Segment[K, V, H]]
	capacity        int
	maxCapBeforeLOH int
	cooldown        int
	logger          logger.Logger
}

// New constructs a StripedDict sized for the requested capacity (128 by
// default; see WithCapacity). It panics with an *errs.Error of
// errs.KindInvalidArgument if a negative capacity was supplied via
// WithCapacity.
func New[K any, V any, H capability.HashEqual[K]](opts ...Option) *StripedDict[K, V, H] {
	o := options{capacity: defaultCapacity, logger: logger.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity < 0 {
		panic(errs.InvalidArgument("capacity must be non-negative, got %d", o.capacity))
	}

	maxCapBeforeLOH := segment.MaxCapacityBeforeLOH[K, V]()
	optimalSegCap := int(0.9 * float64(maxCapBeforeLOH))

	segCount := segmentsFor(o.capacity, optimalSegCap)
	perSeg := perSegmentCapacity(o.capacity, segCount)

	segs := make([]*segment.Segment[K, V, H], segCount)
	for i := range segs {
		segs[i] = segment.New[K, V, H](perSeg)
	}

	d := &StripedDict[K, V, H]{
		capacity:        segCount * maxCapBeforeLOH,
		maxCapBeforeLOH: maxCapBeforeLOH,
		logger:          o.logger,
	}
	d.segments.Store(&segs)
	return d
}

// segmentsFor computes S(desired) = max(MinimumSegmentsCount,
// NextPrime(desired / optimalSegCap)).
func segmentsFor(desired, optimalSegCap int) int {
	if optimalSegCap <= 0 {
		optimalSegCap = 1
	}
	n := ceilDiv(desired, optimalSegCap)
	s := primes.Next(n)
	if s < MinimumSegmentsCount {
		s = MinimumSegmentsCount
	}
	return s
}

// perSegmentCapacity computes perSegment(desired, S) = max(
// MinimumSegmentCapacity, desired / S).
func perSegmentCapacity(desired, segCount int) int {
	v := desired / segCount
	if v < MinimumSegmentCapacity {
		v = MinimumSegmentCapacity
	}
	return v
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func (d *StripedDict[K, V, H]) loadSegments() []*segment.Segment[K, V, H] {
	return *d.segments.Load()
}

// route picks the segment responsible for hash and its index within the
// current segments array.
func route[K any, V any, H capability.HashEqual[K]](segs []*segment.Segment[K, V, H], hash int32) (*segment.Segment[K, V, H], int) {
	idx := int(uint32(hash)&0x7fffffff) % len(segs)
	return segs[idx], idx
}

func (d *StripedDict[K, V, H]) hashOf(key K) int32 {
	var h H
	return h.Hash(key)
}

// TryAdd inserts key/value, returning false without error if key already
// exists.
func (d *StripedDict[K, V, H]) TryAdd(key K, value V) bool {
	hash := d.hashOf(key)
	segs := d.loadSegments()
	seg, idx := route(segs, hash)
	ok, err := seg.Insert(key, value, hash, false)
	if err != nil {
		return false
	}
	d.afterInsert(segs, idx, seg)
	return ok
}

// Add inserts key/value, returning an error (errs.ErrDuplicateKey,
// errs.ErrCapacityExceeded) if it could not.
func (d *StripedDict[K, V, H]) Add(key K, value V) error {
	hash := d.hashOf(key)
	segs := d.loadSegments()
	seg, idx := route(segs, hash)
	if _, err := seg.Insert(key, value, hash, false); err != nil {
		return err
	}
	d.afterInsert(segs, idx, seg)
	return nil
}

// Set upserts key/value, overwriting any existing value for key.
func (d *StripedDict[K, V, H]) Set(key K, value V) error {
	hash := d.hashOf(key)
	segs := d.loadSegments()
	seg, idx := route(segs, hash)
	if _, err := seg.Insert(key, value, hash, true); err != nil {
		return err
	}
	d.afterInsert(segs, idx, seg)
	return nil
}

// Remove deletes key, returning true if it was present.
func (d *StripedDict[K, V, H]) Remove(key K) bool {
	hash := d.hashOf(key)
	segs := d.loadSegments()
	seg, idx := route(segs, hash)
	if err := seg.Remove(key, hash); err != nil {
		return false
	}
	d.afterRemove(segs, idx, seg)
	return true
}

// TryGetValue looks up key. It never blocks and never takes a lock.
func (d *StripedDict[K, V, H]) TryGetValue(key K) (V, bool) {
	hash := d.hashOf(key)
	segs := d.loadSegments()
	seg, _ := route(segs, hash)
	return seg.TryGetValue(key, hash)
}

// ContainsKey reports whether key is present.
func (d *StripedDict[K, V, H]) ContainsKey(key K) bool {
	_, found := d.TryGetValue(key)
	return found
}

// MustGet looks up key, returning errs.ErrKeyNotFound if it is absent.
func (d *StripedDict[K, V, H]) MustGet(key K) (V, error) {
	v, found := d.TryGetValue(key)
	if !found {
		return v, errs.KeyNotFound(key)
	}
	return v, nil
}

// Count returns the number of live key/value pairs. It is relaxed-
// consistent: concurrent with a writer, it may momentarily undercount or
// overcount by the in-flight operation.
func (d *StripedDict[K, V, H]) Count() int {
	segs := d.loadSegments()
	n := 0
	for _, seg := range segs {
		n += seg.Count()
	}
	return n
}

// Capacity returns S * MaxCapacityBeforeLOH, the dictionary's nominal
// capacity for the current segment count.
func (d *StripedDict[K, V, H]) Capacity() int {
	return len(d.loadSegments()) * d.maxCapBeforeLOH
}

// SegmentsCount returns the current number of segments.
func (d *StripedDict[K, V, H]) SegmentsCount() int {
	return len(d.loadSegments())
}

// HasLargeAllocations reports whether any segment's entry array has grown
// past the large-object threshold for this K, V instantiation.
func (d *StripedDict[K, V, H]) HasLargeAllocations() bool {
	threshold := segment.MaxCapacityBeforeLOH[K, V]()
	for _, seg := range d.loadSegments() {
		if seg.Capacity() > threshold {
			return true
		}
	}
	return false
}

// Range calls f for every live key/value pair, segment by segment and
// bucket by bucket within each segment; see segment.Segment.Range for the
// exact consistency guarantees. Range stops early if f returns false.
func (d *StripedDict[K, V, H]) Range(f func(key K, value V) bool) {
	for _, seg := range d.loadSegments() {
		stop := false
		seg.Range(func(k K, v V) bool {
			if !f(k, v) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}
