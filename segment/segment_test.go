// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package segment

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aristanetworks/stripedict/capability"
	"github.com/aristanetworks/stripedict/errs"
	"github.com/aristanetworks/stripedict/internal/primes"
)

func newStringSegment(capacity int) *Segment[string, int, capability.String] {
	return New[string, int, capability.String](capacity)
}

func hashOf(k string) int32 {
	var h capability.String
	return h.Hash(k)
}

func TestInsertAndGet(t *testing.T) {
	s := newStringSegment(16)
	ok, err := s.Insert("a", 1, hashOf("a"), false)
	if !ok || err != nil {
		t.Fatalf("Insert(a) = %v, %v", ok, err)
	}
	if v, found := s.TryGetValue("a", hashOf("a")); !found || v != 1 {
		t.Fatalf("TryGetValue(a) = %v, %v, want 1, true", v, found)
	}
	if _, found := s.TryGetValue("b", hashOf("b")); found {
		t.Fatalf("TryGetValue(b) unexpectedly found")
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	s := newStringSegment(16)
	if _, err := s.Insert("a", 1, hashOf("a"), false); err != nil {
		t.Fatal(err)
	}
	_, err := s.Insert("a", 2, hashOf("a"), false)
	if !errors.Is(err, errs.ErrDuplicateKey) {
		t.Fatalf("Insert(a) second time: err = %v, want ErrDuplicateKey", err)
	}
	if v, _ := s.TryGetValue("a", hashOf("a")); v != 1 {
		t.Fatalf("value changed despite rejected duplicate insert: %v", v)
	}
}

func TestInsertOverwrite(t *testing.T) {
	s := newStringSegment(16)
	if _, err := s.Insert("a", 1, hashOf("a"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert("a", 2, hashOf("a"), true); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.TryGetValue("a", hashOf("a")); v != 2 {
		t.Fatalf("TryGetValue(a) = %v, want 2", v)
	}
}

func TestRemove(t *testing.T) {
	s := newStringSegment(16)
	s.Insert("a", 1, hashOf("a"), false)
	s.Insert("b", 2, hashOf("b"), false)
	if err := s.Remove("a", hashOf("a")); err != nil {
		t.Fatal(err)
	}
	if _, found := s.TryGetValue("a", hashOf("a")); found {
		t.Fatalf("a still present after Remove")
	}
	if v, found := s.TryGetValue("b", hashOf("b")); !found || v != 2 {
		t.Fatalf("b disturbed by removing a: %v, %v", v, found)
	}
	if err := s.Remove("a", hashOf("a")); !errors.Is(err, errs.ErrKeyNotFound) {
		t.Fatalf("Remove(a) again: err = %v, want ErrKeyNotFound", err)
	}
}

func TestRemovedSlotIsReused(t *testing.T) {
	s := newStringSegment(7)
	for i := 0; i < s.Capacity(); i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := s.Insert(key, i, hashOf(key), false); err != nil {
			t.Fatalf("Insert(%s): %v", key, err)
		}
	}
	if err := s.Remove("k0", hashOf("k0")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert("new", 99, hashOf("new"), false); err != nil {
		t.Fatalf("Insert after freeing a slot should succeed: %v", err)
	}
	if s.Capacity() != 7 {
		t.Fatalf("Capacity() = %d after reinsert, want 7 (freed slot reused, no grow)", s.Capacity())
	}
}

func TestInsertGrowsAutomaticallyWhenFull(t *testing.T) {
	s := newStringSegment(2) // rounds up to the prime 2
	initialCap := s.Capacity()
	for i := 0; i < initialCap; i++ {
		key := fmt.Sprintf("k%d", i)
		if _, err := s.Insert(key, i, hashOf(key), false); err != nil {
			t.Fatalf("Insert(%s): %v", key, err)
		}
	}
	// The segment was exactly full; this insert must trigger an internal
	// grow (spec.md §4.1) rather than fail.
	if _, err := s.Insert("overflow", 0, hashOf("overflow"), false); err != nil {
		t.Fatalf("Insert past initial capacity: %v", err)
	}
	if s.Capacity() <= initialCap {
		t.Fatalf("Capacity() = %d after overflow insert, want > %d", s.Capacity(), initialCap)
	}
	if v, found := s.TryGetValue("overflow", hashOf("overflow")); !found || v != 0 {
		t.Fatalf("TryGetValue(overflow) = %v, %v after auto-grow", v, found)
	}
}

func TestGrowReturnsErrorAtMaxCapacity(t *testing.T) {
	s := newStringSegment(primes.MaxCapacity)
	if s.Capacity() != primes.MaxCapacity {
		t.Fatalf("Capacity() = %d, want MaxCapacity %d", s.Capacity(), primes.MaxCapacity)
	}
	if err := s.Grow(1.5); !errors.Is(err, errs.ErrCapacityExceeded) {
		t.Fatalf("Grow at MaxCapacity: err = %v, want ErrCapacityExceeded", err)
	}
}

func TestGrowPreservesEntries(t *testing.T) {
	s := newStringSegment(7)
	want := map[string]int{}
	for i := 0; i < 7; i++ {
		key := fmt.Sprintf("k%d", i)
		s.Insert(key, i, hashOf(key), false)
		want[key] = i
	}
	if err := s.Grow(1.75); err != nil {
		t.Fatal(err)
	}
	if s.Capacity() <= 7 {
		t.Fatalf("Capacity() = %d after Grow, want > 7", s.Capacity())
	}
	for key, v := range want {
		got, found := s.TryGetValue(key, hashOf(key))
		if !found || got != v {
			t.Errorf("TryGetValue(%s) = %v, %v after grow, want %v, true", key, got, found, v)
		}
	}
	// room for new inserts beyond the old capacity
	if _, err := s.Insert("extra", 100, hashOf("extra"), false); err != nil {
		t.Fatalf("Insert after grow: %v", err)
	}
}

// TestZeroValueNotConfusedWithEmptySlot exercises spec.md §3's slot-state
// supplement: a live entry whose key and value are both the zero value for
// their type must still be reported as present, never mistaken for a free
// or never-used slot.
func TestZeroValueNotConfusedWithEmptySlot(t *testing.T) {
	s := newStringSegment(16)
	if _, err := s.Insert("", 0, hashOf(""), false); err != nil {
		t.Fatal(err)
	}
	v, found := s.TryGetValue("", hashOf(""))
	if !found || v != 0 {
		t.Fatalf(`TryGetValue("") = %v, %v, want 0, true`, v, found)
	}
	n := 0
	s.Range(func(k string, v int) bool {
		if k == "" {
			n++
		}
		return true
	})
	if n != 1 {
		t.Fatalf("Range visited the zero-value entry %d times, want 1", n)
	}
}

func TestRangeVisitsEveryLiveEntry(t *testing.T) {
	s := newStringSegment(16)
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		s.Insert(k, v, hashOf(k), false)
	}
	got := map[string]int{}
	s.Range(func(k string, v int) bool {
		got[k] = v
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("Range visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Range reported %s = %d, want %d", k, got[k], v)
		}
	}
}

func TestRangeStopsEarly(t *testing.T) {
	s := newStringSegment(16)
	for i := 0; i < 8; i++ {
		key := fmt.Sprintf("k%d", i)
		s.Insert(key, i, hashOf(key), false)
	}
	n := 0
	s.Range(func(k string, v int) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Fatalf("Range called f %d times, want exactly 3", n)
	}
}

// TestConcurrentReadersDuringWrites exercises the seqlock under race
// detection: one writer repeatedly overwrites the values of existing keys
// while many readers hammer TryGetValue and Range concurrently. It asserts no crash and no
// torn read (a value that belongs to no insert that ever happened), not
// a precise final state.
func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := newStringSegment(31)
	const keys = 20
	for i := 0; i < keys; i++ {
		key := fmt.Sprintf("k%d", i)
		s.Insert(key, i, hashOf(key), false)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 0; i < keys; i++ {
					key := fmt.Sprintf("k%d", i)
					if v, found := s.TryGetValue(key, hashOf(key)); found && v != i {
						t.Errorf("torn read: %s = %d, want %d", key, v, i)
					}
				}
				s.Range(func(k string, v int) bool { return true })
			}
		}()
	}

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("k%d", i%keys)
		s.Insert(key, i%keys, hashOf(key), true)
	}
	close(stop)
	wg.Wait()
}
