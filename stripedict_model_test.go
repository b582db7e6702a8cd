// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package stripedict

import (
	"fmt"
	"math/rand"
	"testing"

	hash "github.com/aristanetworks/stripedict/internal/refmap"
)

// newShadow builds the ground-truth model a random operation sequence is
// checked against: a plain, single-threaded map with no seqlock protocol
// of its own, so any divergence from the StripedDict under test points at
// a real bug in the striped implementation rather than an artifact of its
// concurrency protocol.
func newShadow() *hash.Map[string, int] {
	return hash.New[string, int](
		func(a, b string) bool { return a == b },
		func(k string) uint64 { return uint64(stringHash(k)) },
	)
}

func stringHash(k string) uint32 {
	// FNV-1a, just for the shadow model's bucketing; it needn't match
	// capability.String's hash, only be deterministic and well-distributed.
	var h uint32 = 2166136261
	for i := 0; i < len(k); i++ {
		h ^= uint32(k[i])
		h *= 16777619
	}
	return h
}

// TestModelRandomOpsAgreeWithShadowMap runs a long random sequence of Add,
// TryAdd, Set, Remove and TryGetValue against both a StripedDict and a
// refmap.Map shadow, asserting they agree after every single operation.
// This exercises invariants 1-8 from spec.md §8 far more thoroughly than
// the scenario-style tests in stripedict_test.go.
func TestModelRandomOpsAgreeWithShadowMap(t *testing.T) {
	const keySpace = 200
	const steps = 20000

	d := newTestDict(WithCapacity(64))
	shadow := newShadow()
	rng := rand.New(rand.NewSource(42))

	keyFor := func(i int) string { return fmt.Sprintf("k%d", i) }

	for step := 0; step < steps; step++ {
		k := keyFor(rng.Intn(keySpace))
		switch rng.Intn(5) {
		case 0, 1: // Add
			wantErr := false
			if _, ok := shadow.Get(k); ok {
				wantErr = true
			}
			err := d.Add(k, step)
			if (err != nil) != wantErr {
				t.Fatalf("step %d: Add(%s) err = %v, want error: %v", step, k, err, wantErr)
			}
			if err == nil {
				shadow.Set(k, step)
			}
		case 2: // TryAdd
			_, existed := shadow.Get(k)
			ok := d.TryAdd(k, step)
			if ok == existed {
				t.Fatalf("step %d: TryAdd(%s) = %v, existed = %v", step, k, ok, existed)
			}
			if ok {
				shadow.Set(k, step)
			}
		case 3: // Set
			if err := d.Set(k, step); err != nil {
				t.Fatalf("step %d: Set(%s): %v", step, k, err)
			}
			shadow.Set(k, step)
		case 4: // Remove
			_, existed := shadow.Get(k)
			ok := d.Remove(k)
			if ok != existed {
				t.Fatalf("step %d: Remove(%s) = %v, want %v", step, k, ok, existed)
			}
			shadow.Delete(k)
		}

		gotV, gotFound := d.TryGetValue(k)
		wantV, wantFound := shadow.Get(k)
		if gotFound != wantFound || (gotFound && gotV != wantV) {
			t.Fatalf("step %d: TryGetValue(%s) = (%v, %v), want (%v, %v)",
				step, k, gotV, gotFound, wantV, wantFound)
		}
	}

	if d.Count() != shadow.Len() {
		t.Fatalf("Count() = %d, shadow has %d live pairs", d.Count(), shadow.Len())
	}

	// Property 3 and 8: Count must match the enumerated multiset, and
	// enumeration must reproduce the shadow exactly, with no duplicates.
	seen := map[string]int{}
	d.Range(func(k string, v int) bool {
		if _, dup := seen[k]; dup {
			t.Fatalf("Range: duplicate key %s", k)
		}
		seen[k] = v
		return true
	})
	if len(seen) != shadow.Len() {
		t.Fatalf("Range visited %d pairs, shadow has %d", len(seen), shadow.Len())
	}
	for it := shadow.Iter(); it != nil && it.Next(); {
		k, wantV := it.Key(), it.Elem()
		gotV, ok := seen[k]
		if !ok || gotV != wantV {
			t.Errorf("Range missed or mismatched %s: got (%v, %v), want (%v, true)", k, gotV, ok, wantV)
		}
	}
}
