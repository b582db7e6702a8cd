// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package capability

import "hash/maphash"

// seed is process-wide: two capabilities of the same built-in type must
// agree on a hash, including across the segments of one StripedDict, so the
// seed cannot vary per-instance the way hash/maphash normally recommends.
var seed = maphash.MakeSeed()

// String hashes and compares plain string keys. Grounded on the teacher's
// key.hashString (key/hash.go), rebuilt here as a stateless capability
// instead of a case in a dynamic-key switch.
type String struct{}

// Hash implements HashEqual.
func (String) Hash(k string) int32 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(k)
	return int32(h.Sum64())
}

// Equal implements HashEqual.
func (String) Equal(a, b string) bool { return a == b }

// Bytes hashes and compares []byte keys.
type Bytes struct{}

// Hash implements HashEqual.
func (Bytes) Hash(k []byte) int32 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.Write(k)
	return int32(h.Sum64())
}

// Equal implements HashEqual.
func (Bytes) Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Int64 hashes and compares int64 keys using a 64-bit avalanche mix
// (splitmix64's finalizer), cheaper than routing a fixed-width integer
// through maphash.
type Int64 struct{}

// Hash implements HashEqual.
func (Int64) Hash(k int64) int32 {
	u := uint64(k)
	u = (u ^ (u >> 30)) * 0xbf58476d1ce4e5b9
	u = (u ^ (u >> 27)) * 0x94d049bb133111eb
	u = u ^ (u >> 31)
	return int32(u)
}

// Equal implements HashEqual.
func (Int64) Equal(a, b int64) bool { return a == b }

// Int hashes and compares platform-width int keys.
type Int struct{}

// Hash implements HashEqual.
func (Int) Hash(k int) int32 { return Int64{}.Hash(int64(k)) }

// Equal implements HashEqual.
func (Int) Equal(a, b int) bool { return a == b }
