// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package segment implements the seqlock-protected, fixed-capacity hash
// table that backs one stripe of a striped dictionary: a single writer
// mutates it under external serialization while any number of readers and
// enumerators walk it lock-free, per spec.md §4.
package segment

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/aristanetworks/stripedict/capability"
	"github.com/aristanetworks/stripedict/errs"
	"github.com/aristanetworks/stripedict/internal/primes"
)

// largeObjectThreshold approximates the point past which a single
// allocation is expensive enough to track separately from ordinary
// allocations; it plays the same role here as the .NET LOH threshold this
// design is descended from, scaled to Go's allocator.
const largeObjectThreshold = 85000

// maxSpinAttemptsBeforeYield bounds how long a reader spins before yielding the
// processor to whatever else is runnable.
const maxSpinAttemptsBeforeYield = 8

// segmentGrowFactor is the expansion factor a segment applies to itself
// when it fills up (spec.md §4.1's ExpandPrime(count, 1.5)). It is
// smaller than the striped dictionary's own GrowMultiplier (1.75), which
// instead grows the *number* of segments; see stripedict.go.
const segmentGrowFactor = 1.5

// Segment is a single stripe: a fixed-capacity chained hash table whose
// buckets are individually seqlock-protected. K and V are the key and
// value types; H supplies hashing and equality for K, injected as a
// zero-sized type parameter so the compiler devirtualizes every call
// instead of going through an interface vtable.
type Segment[K any, V any, H capability.HashEqual[K]] struct {
	st         atomic.Pointer[state[K, V]]
	count      int
	freeHead   int16
	nextUnused int16
	pool       stagerPool[K, V]
}

// New builds a Segment with room for at least capacity entries; the actual
// capacity is rounded up to the next prime, per spec.md §2.
func New[K any, V any, H capability.HashEqual[K]](capacity int) *Segment[K, V, H] {
	s := &Segment[K, V, H]{freeHead: emptyBucket}
	s.st.Store(newState[K, V](primes.Next(capacity)))
	return s
}

// MaxCapacityBeforeLOH returns the largest prime capacity whose entry pool
// stays under largeObjectThreshold bytes for this K, V instantiation. It
// is computed from unsafe.Sizeof rather than carried as a constant because
// it depends on the generic instantiation: a Segment[string, int64, ...]
// and a Segment[int32, [256]byte, ...] have very differently sized entries.
func MaxCapacityBeforeLOH[K any, V any]() int {
	var e entry[K, V]
	size := unsafe.Sizeof(e)
	if size == 0 {
		return primes.MaxCapacity
	}
	return primes.AtMost(largeObjectThreshold / int(size))
}

// Capacity returns the number of entry slots in the segment's current
// backing storage.
func (s *Segment[K, V, H]) Capacity() int {
	return len(s.st.Load().entries)
}

// Count returns the number of live key/value pairs. Only the segment's
// writer may call this without external synchronization.
func (s *Segment[K, V, H]) Count() int { return s.count }

// TryGetValue looks up key, whose hash has already been computed by the
// caller (the owning StripedDict, which needs the hash to route to this
// segment anyway). It never blocks: a concurrent write is observed as a
// version mismatch and retried.
func (s *Segment[K, V, H]) TryGetValue(key K, hash int32) (V, bool) {
	st := s.st.Load()
	bucket := bucketIndex(hash, len(st.buckets))
	var h H
	for attempt := 0; ; attempt++ {
		v0 := st.version(bucket)
		if v0&versionWriteFlag != 0 {
			spinWait(attempt)
			continue
		}
		value, found, consistent := scanBucket(st, bucket, v0, h, key)
		if consistent {
			return value, found
		}
		spinWait(attempt)
	}
}

// scanBucket walks bucket's chain looking for key, returning whether the
// scan completed without an intervening write (consistent). Callers must
// retry when consistent is false; the returned value and found are
// meaningless in that case.
func scanBucket[K any, V any, H capability.HashEqual[K]](
	st *state[K, V], bucket int, v0 uint32, h H, key K,
) (value V, found, consistent bool) {
	idx := st.buckets[bucket]
	for idx != emptyBucket {
		e := &st.entries[idx]
		entryState := e.state
		if st.version(bucket) != v0 {
			var zero V
			return zero, false, false
		}
		if entryState == slotLive && h.Equal(e.key, key) {
			value = e.value
			found = true
			if st.version(bucket) != v0 {
				var zero V
				return zero, false, false
			}
			break
		}
		next := e.next
		if st.version(bucket) != v0 {
			var zero V
			return zero, false, false
		}
		idx = next
	}
	if st.version(bucket) != v0 {
		var zero V
		return zero, false, false
	}
	return value, found, true
}

// Insert adds key/value, or overwrites the existing value for key when
// overwrite is true. The returned bool is true iff a new pair was added;
// it is false when key already existed, whether or not overwrite applied.
// It returns errs.ErrDuplicateKey when the key already exists and overwrite
// is false, and errs.ErrCapacityExceeded when the segment is full and
// cannot grow any further (it is already at primes.MaxCapacity).
func (s *Segment[K, V, H]) Insert(key K, value V, hash int32, overwrite bool) (bool, error) {
	st := s.st.Load()
	bucket := bucketIndex(hash, len(st.buckets))
	var h H

	idx := st.buckets[bucket]
	for idx != emptyBucket {
		e := &st.entries[idx]
		if e.state == slotLive && h.Equal(e.key, key) {
			if !overwrite {
				return false, errs.DuplicateKey(key)
			}
			st.markWriting(bucket)
			e.value = value
			st.unmark(bucket)
			return false, nil
		}
		idx = e.next
	}

	slot, st, err := s.allocate(st)
	if err != nil {
		return false, err
	}
	bucket = bucketIndex(hash, len(st.buckets))

	st.markWriting(bucket)
	e := &st.entries[slot]
	e.key = key
	e.value = value
	e.next = st.buckets[bucket]
	e.state = slotLive
	st.buckets[bucket] = slot
	st.unmark(bucket)

	s.count++
	return true, nil
}

// Remove deletes key, returning errs.ErrKeyNotFound if it is not present.
func (s *Segment[K, V, H]) Remove(key K, hash int32) error {
	st := s.st.Load()
	bucket := bucketIndex(hash, len(st.buckets))
	var h H

	var prev int16 = emptyBucket
	idx := st.buckets[bucket]
	for idx != emptyBucket {
		e := &st.entries[idx]
		if e.state == slotLive && h.Equal(e.key, key) {
			st.markWriting(bucket)
			if prev == emptyBucket {
				st.buckets[bucket] = e.next
			} else {
				st.entries[prev].next = e.next
			}
			var zeroK K
			var zeroV V
			e.key = zeroK
			e.value = zeroV
			e.state = slotFree
			e.next = s.freeHead
			st.unmark(bucket)

			s.freeHead = idx
			s.count--
			return nil
		}
		prev = idx
		idx = e.next
	}
	return errs.KeyNotFound(key)
}

// allocate returns a slot index for a new entry, preferring a freed slot
// over an unused one so the entry pool fills contiguously from index 0. If
// the segment is full, it grows itself first (spec.md §4.1's "Resize
// (grow), triggered when count == entries.Length") and returns the
// post-grow state the caller must use for any further bucket math, since
// growing rebuilds the bucket table at a different size.
func (s *Segment[K, V, H]) allocate(st *state[K, V]) (int16, *state[K, V], error) {
	if s.freeHead != emptyBucket {
		slot := s.freeHead
		s.freeHead = st.entries[slot].next
		return slot, st, nil
	}
	if int(s.nextUnused) < len(st.entries) {
		slot := s.nextUnused
		s.nextUnused++
		return slot, st, nil
	}
	if err := s.Grow(segmentGrowFactor); err != nil {
		return emptyBucket, st, err
	}
	st = s.st.Load()
	slot := s.nextUnused
	s.nextUnused++
	return slot, st, nil
}

// AddUnsafe inserts key/value without seqlock bracketing or a free-list
// check; it is for the StripedDict resize path only, where the segment is
// a brand-new one not yet reachable from any reader and every key is
// known to be unique. Like Insert, it grows the segment in place
// (primes.Expand) when it fills up; it returns false only when the
// segment has already grown to primes.MaxCapacity and still has no room,
// signaling the caller to abort the resize per spec.md §4.2.
func (s *Segment[K, V, H]) AddUnsafe(key K, value V, hash int32) bool {
	st := s.st.Load()
	if int(s.nextUnused) >= len(st.entries) {
		if err := s.Grow(segmentGrowFactor); err != nil {
			return false
		}
		st = s.st.Load()
	}
	slot := s.nextUnused
	s.nextUnused++
	bucket := bucketIndex(hash, len(st.buckets))
	e := &st.entries[slot]
	e.key = key
	e.value = value
	e.next = st.buckets[bucket]
	e.state = slotLive
	st.buckets[bucket] = slot
	s.count++
	return true
}

// Grow rebuilds the segment with a larger backing state sized by
// primes.Expand, rehashing every live entry, then atomically publishes the
// new state. Readers in flight against the old state keep seeing it until
// they next call Load; none of their in-progress scans observe a
// torn state.
func (s *Segment[K, V, H]) Grow(growthFactor float64) error {
	old := s.st.Load()
	newCap := primes.Expand(len(old.entries), growthFactor)
	if newCap <= len(old.entries) {
		return errs.CapacityExceeded(0)
	}
	if newCap > primes.MaxCapacity {
		newCap = primes.MaxCapacity
		if newCap <= len(old.entries) {
			return errs.CapacityExceeded(0)
		}
	}

	newSt := newState[K, V](newCap)
	var h H
	var nextUnused int16
	for i := range old.entries {
		e := &old.entries[i]
		if e.state != slotLive {
			continue
		}
		hash := h.Hash(e.key)
		bucket := bucketIndex(hash, len(newSt.buckets))
		slot := nextUnused
		nextUnused++
		ne := &newSt.entries[slot]
		ne.key = e.key
		ne.value = e.value
		ne.next = newSt.buckets[bucket]
		ne.state = slotLive
		newSt.buckets[bucket] = slot
	}

	s.st.Store(newSt)
	s.nextUnused = nextUnused
	s.freeHead = emptyBucket
	return nil
}

// spinWait bounds how long a reader busy-waits on a write in progress
// before yielding, trading a little latency for not starving the writer
// on a single-core or heavily oversubscribed runtime.
func spinWait(attempt int) {
	if attempt < maxSpinAttemptsBeforeYield {
		return
	}
	runtime.Gosched()
}
