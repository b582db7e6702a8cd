// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package smoke is the living oracle for spec.md §8's concurrency
// properties (13-15): a fixed 100-key space, one writer churning the
// upper half while readers and enumerators run concurrently, checked
// against the invariants those properties describe. Each property is an
// exported function that returns an error on the first violation, so
// cmd/stripedict-smoke can drive it outside of go test.
package smoke

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristanetworks/stripedict"
	"github.com/aristanetworks/stripedict/capability"
	"github.com/aristanetworks/stripedict/monotime"
	"github.com/aristanetworks/stripedict/sync/semaphore"
)

// KeySpace is the fixed 100-key space properties 13-15 are defined over.
const KeySpace = 100

// Dict is the concrete instantiation the smoke harness exercises: keys
// are the decimal string form of their index, matching property 13's "a
// reader never sees a value other than the key's string form".
type Dict = *stripedict.StripedDict[string, string, capability.String]

// NewPrepopulated builds a Dict with every key in [0, KeySpace) set to its
// own string form.
func NewPrepopulated() Dict {
	d := stripedict.New[string, string, capability.String](stripedict.WithCapacity(KeySpace))
	for i := 0; i < KeySpace; i++ {
		k := keyFor(i)
		d.Add(k, k)
	}
	return d
}

func keyFor(i int) string { return fmt.Sprintf("%d", i) }

// StallBudget is the longest a reader may go without making progress
// before RunReaders reports a stall, per property 13.
const StallBudget = 500 * time.Millisecond

// churnWriter runs random Set/Remove on the upper half of the key space
// ([KeySpace/2, KeySpace)) until ctx is done.
func churnWriter(ctx context.Context, d Dict, rng *rand.Rand) {
	for ctx.Err() == nil {
		i := KeySpace/2 + rng.Intn(KeySpace/2)
		k := keyFor(i)
		if rng.Intn(2) == 0 {
			d.Set(k, k)
		} else {
			d.Remove(k)
		}
	}
}

// RunReaders exercises property 13: four readers continuously
// TryGetValue random keys while a writer churns the upper half. It fails
// if a reader ever observes a torn value, if a lower-half key (never
// removed) is ever reported missing, or if a reader goes StallBudget
// without making progress.
func RunReaders(duration time.Duration) error {
	d := NewPrepopulated()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		churnWriter(ctx, d, rand.New(rand.NewSource(1)))
		return nil
	})

	const readers = 4
	for r := 0; r < readers; r++ {
		r := r
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(1000 + r)))
			lastProgress := monotime.Now()
			for ctx.Err() == nil {
				if stalled := monotime.Since(lastProgress); stalled > StallBudget {
					return fmt.Errorf("reader %d: stalled for %v", r, stalled)
				}
				i := rng.Intn(KeySpace)
				k := keyFor(i)
				v, found := d.TryGetValue(k)
				if i < KeySpace/2 && !found {
					return fmt.Errorf("reader %d: lower-half key %s unexpectedly absent", r, k)
				}
				if found && v != k {
					return fmt.Errorf("reader %d: key %s has torn value %q", r, k, v)
				}
				lastProgress = monotime.Now()
			}
			return nil
		})
	}
	return g.Wait()
}

// RunEnumerators exercises property 14: four concurrent enumerators run
// while a writer churns the upper half. Every yielded key must belong to
// the fixed key space, no pass may yield a duplicate key, and every pass
// must yield at least 50 pairs (the lower half alone).
func RunEnumerators(duration time.Duration) error {
	d := NewPrepopulated()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		churnWriter(ctx, d, rand.New(rand.NewSource(2)))
		return nil
	})

	sem := semaphore.NewWeighted(4)
	const enumerators = 4
	for e := 0; e < enumerators; e++ {
		e := e
		g.Go(func() error {
			for ctx.Err() == nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					return nil
				}
				err := enumerateOnce(d, e)
				sem.Release(1)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func enumerateOnce(d Dict, enumeratorID int) error {
	seen := make(map[string]bool)
	var outOfRange error
	d.Range(func(k, v string) bool {
		i := 0
		if _, err := fmt.Sscanf(k, "%d", &i); err != nil || i < 0 || i >= KeySpace {
			outOfRange = fmt.Errorf("enumerator %d: key %q outside the fixed key space", enumeratorID, k)
			return false
		}
		if seen[k] {
			outOfRange = fmt.Errorf("enumerator %d: duplicate key %q within one pass", enumeratorID, k)
			return false
		}
		seen[k] = true
		return true
	})
	if outOfRange != nil {
		return outOfRange
	}
	if len(seen) < KeySpace/2 {
		return fmt.Errorf("enumerator %d: pass yielded only %d pairs, want >= %d",
			enumeratorID, len(seen), KeySpace/2)
	}
	return nil
}

// RunQuiescentEnumerators exercises property 15: with all 100 keys
// present and no writer, four enumerators must each observe exactly 100
// distinct, correct pairs on every pass.
func RunQuiescentEnumerators(passes int) error {
	d := NewPrepopulated()

	g := new(errgroup.Group)
	const enumerators = 4
	for e := 0; e < enumerators; e++ {
		e := e
		g.Go(func() error {
			for p := 0; p < passes; p++ {
				got := make(map[string]string)
				d.Range(func(k, v string) bool {
					got[k] = v
					return true
				})
				if len(got) != KeySpace {
					return fmt.Errorf("enumerator %d pass %d: saw %d pairs, want %d",
						e, p, len(got), KeySpace)
				}
				for k, v := range got {
					if v != k {
						return fmt.Errorf("enumerator %d pass %d: key %s has value %q, want %q",
							e, p, k, v, k)
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}
