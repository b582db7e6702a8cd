// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package segment

import "sync"

// pair is one snapshotted key/value, staged during enumeration before
// being handed to the caller's callback.
type pair[K any, V any] struct {
	Key   K
	Value V
}

// stagerPool recycles the []pair buffers Range uses to copy a bucket's
// contents out from under the seqlock. sync.Pool stores interface values,
// so a generic package-level pool is not expressible directly; wrapping it
// in a type parameterized on K, V gives each Segment instantiation its own
// pool of correctly-typed buffers.
type stagerPool[K any, V any] struct {
	pool sync.Pool
}

func (p *stagerPool[K, V]) get(minCap int) []pair[K, V] {
	if v := p.pool.Get(); v != nil {
		buf := v.([]pair[K, V])
		if cap(buf) >= minCap {
			return buf[:0]
		}
	}
	c := 4
	for c < minCap {
		c *= 2
	}
	return make([]pair[K, V], 0, c)
}

func (p *stagerPool[K, V]) put(buf []pair[K, V]) {
	p.pool.Put(buf[:0]) //nolint:staticcheck // intentional: reuse the backing array only
}

// copyResult reports the outcome of one attempt to snapshot a bucket.
type copyResult int

const (
	copyOK copyResult = iota
	copyRetry
	copyNeedsBiggerBuffer
)

// tryCopyBucket snapshots bucket's chain into buf, which is reset to
// length 0 first. It never appends past cap(buf); a chain longer than
// cap(buf) is reported as copyNeedsBiggerBuffer rather than allocating,
// so the caller can grow the pooled buffer and retry with that larger
// buffer on every later bucket too.
func tryCopyBucket[K any, V any](st *state[K, V], bucket int, buf []pair[K, V]) ([]pair[K, V], copyResult) {
	v0 := st.version(bucket)
	if v0&versionWriteFlag != 0 {
		return buf, copyRetry
	}
	buf = buf[:0]
	idx := st.buckets[bucket]
	for idx != emptyBucket {
		if len(buf) == cap(buf) {
			return buf, copyNeedsBiggerBuffer
		}
		e := &st.entries[idx]
		key, value := e.key, e.value
		if st.version(bucket) != v0 {
			return buf, copyRetry
		}
		buf = append(buf, pair[K, V]{Key: key, Value: value})
		next := e.next
		if st.version(bucket) != v0 {
			return buf, copyRetry
		}
		idx = next
	}
	if st.version(bucket) != v0 {
		return buf, copyRetry
	}
	return buf, copyOK
}

func copyBucket[K any, V any](st *state[K, V], bucket int, buf []pair[K, V]) []pair[K, V] {
	attempt := 0
	for {
		copied, result := tryCopyBucket(st, bucket, buf)
		switch result {
		case copyOK:
			return copied
		case copyNeedsBiggerBuffer:
			buf = make([]pair[K, V], 0, cap(buf)*2)
		case copyRetry:
			spinWait(attempt)
			attempt++
		}
	}
}

// Range calls f for every live key/value pair in the segment, bucket by
// bucket, each bucket snapshotted under its own seqlock so Range never
// blocks a concurrent writer. The snapshot is weakly consistent: a key
// present for the whole call is reported with some value it held during
// the call, a key absent for the whole call is never reported, but a key
// added or removed partway through may or may not appear. Range stops
// early if f returns false.
func (s *Segment[K, V, H]) Range(f func(key K, value V) bool) {
	st := s.st.Load()
	buf := s.pool.get(4)
	defer func() { s.pool.put(buf) }()

	for bucket := range st.buckets {
		buf = copyBucket(st, bucket, buf)
		for _, p := range buf {
			if !f(p.Key, p.Value) {
				return
			}
		}
	}
}
