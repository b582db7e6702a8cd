// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package capability defines the hash/equality capability that stripedict's
// containers take as a type parameter, and provides a handful of concrete,
// zero-sized implementations for common key types.
//
// The capability is injected rather than looked up from the key's own
// methods (contrast with the teacher's key.Hashable interface) so the
// compiler can monomorphize a Segment or StripedDict over a concrete,
// zero-sized H and devirtualize every Hash/Equal call at the generic
// instantiation site instead of through an interface vtable indirection.
package capability

// HashEqual hashes a key of type K and compares two keys of type K for
// equality. Implementations must be deterministic and, for any two keys
// a, b where Equal(a, b) is true, Hash(a) must equal Hash(b).
//
// Implementations should be zero-sized (an empty struct) so that passing H
// as a type parameter costs nothing at runtime.
type HashEqual[K any] interface {
	// Hash returns a hash code for k. The sign bit carries no meaning; callers
	// mask it off before using the result as an index (spec.md §2).
	Hash(k K) int32
	// Equal reports whether a and b are the same key.
	Equal(a, b K) bool
}
