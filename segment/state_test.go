// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package segment

import "testing"

func TestMarkWritingSetsFlag(t *testing.T) {
	st := newState[string, int](16)
	st.markWriting(2)
	if st.version(2)&versionWriteFlag == 0 {
		t.Fatalf("version flag not set after markWriting")
	}
	// bucket 3 shares a group with bucket 2.
	if st.version(3)&versionWriteFlag == 0 {
		t.Fatalf("group mate's version flag not set")
	}
}

func TestUnmarkClearsFlagAndBumpsVersion(t *testing.T) {
	st := newState[string, int](16)
	before := st.version(0)
	st.markWriting(0)
	st.unmark(0)
	after := st.version(0)
	if after&versionWriteFlag != 0 {
		t.Fatalf("write flag still set after unmark")
	}
	if after == before {
		t.Fatalf("version did not change across mark/unmark")
	}
}

func TestGroupOf(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 1, 5: 1, 8: 2}
	for bucket, want := range cases {
		if got := groupOf(bucket); got != want {
			t.Errorf("groupOf(%d) = %d, want %d", bucket, got, want)
		}
	}
}

func TestBucketIndexMasksSignBit(t *testing.T) {
	idx := bucketIndex(-1, 16)
	if idx < 0 || idx >= 16 {
		t.Fatalf("bucketIndex(-1, 16) = %d, out of range", idx)
	}
}
