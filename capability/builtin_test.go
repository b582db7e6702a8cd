// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package capability

import "testing"

func TestStringHashStable(t *testing.T) {
	var s String
	h1 := s.Hash("hello")
	h2 := s.Hash("hello")
	if h1 != h2 {
		t.Fatalf("hash not stable across calls: %d != %d", h1, h2)
	}
	if s.Hash("hello") == s.Hash("world") {
		t.Fatalf("distinct strings hashed to the same value (allowed, but suspicious for this pair)")
	}
	if !s.Equal("a", "a") || s.Equal("a", "b") {
		t.Fatalf("String.Equal is wrong")
	}
}

func TestBytesEqual(t *testing.T) {
	var b Bytes
	if !b.Equal([]byte("abc"), []byte("abc")) {
		t.Fatalf("expected equal byte slices to compare equal")
	}
	if b.Equal([]byte("abc"), []byte("abd")) {
		t.Fatalf("expected different byte slices to compare unequal")
	}
	if b.Equal([]byte("abc"), []byte("ab")) {
		t.Fatalf("expected different-length byte slices to compare unequal")
	}
}

func TestInt64HashDistinctForSmallRange(t *testing.T) {
	var h Int64
	seen := map[int32]int64{}
	for i := int64(0); i < 1000; i++ {
		v := h.Hash(i)
		if other, ok := seen[v]; ok {
			t.Fatalf("hash collision between %d and %d within a small dense range", i, other)
		}
		seen[v] = i
	}
}
