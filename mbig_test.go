// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmalloc

import (
	"testing"
	"unsafe"
)

// A freed span of the right size is handed back verbatim.
func TestBigExactFitReuse(t *testing.T) {
	b := Malloc(5000)
	if b == nil {
		t.Fatal("Malloc(5000) = nil")
	}
	Free(b)
	b2 := Malloc(5000)
	if b2 == nil {
		t.Fatal("second Malloc(5000) = nil")
	}
	if b2 != b {
		t.Errorf("exact-fit reuse returned %p, want %p", b2, b)
	}
	Free(b2)
}

// A larger free span is carved from its tail: the remaining entry
// keeps its base, the carved pages come off the high end.
func TestBigTailCarve(t *testing.T) {
	big := Malloc(6*pageSize - hdrSize) // exactly 6 pages
	if big == nil {
		t.Fatal("Malloc(6 pages) = nil")
	}
	if n := *(*int32)(unsafe.Pointer(uintptr(big) - 4)); n != 6 {
		t.Fatalf("span page count = %d, want 6", n)
	}
	Free(big)

	small := Malloc(2*pageSize - hdrSize) // exactly 2 pages
	if small == nil {
		t.Fatal("Malloc(2 pages) = nil")
	}
	if got, want := uintptr(small), uintptr(big)+4*pageSize; got != want {
		t.Errorf("carved allocation at %#x, want tail of the 6-page span at %#x", got, want)
	}
	if s := *(*int32)(unsafe.Pointer(uintptr(small) - 8)); s != -1 {
		t.Errorf("carved span sentinel = %d, want -1", s)
	}
	if n := *(*int32)(unsafe.Pointer(uintptr(small) - 4)); n != 2 {
		t.Errorf("carved span page count = %d, want 2", n)
	}

	// The shrunken head entry still serves its remaining 4 pages.
	rest := Malloc(4*pageSize - hdrSize)
	if rest == nil {
		t.Fatal("Malloc(4 pages) = nil")
	}
	if rest != big {
		t.Errorf("remaining pages served from %p, want %p", rest, big)
	}
	Free(small)
	Free(rest)
}

// Frees of big spans are visible to the sub-page dispatcher as
// not-mine, both straight after allocation and after reuse.
func TestBigDispatch(t *testing.T) {
	b := Malloc(3000) // above maxSubpage, so big despite being < 1 page
	if b == nil {
		t.Fatal("Malloc(3000) = nil")
	}
	base := uintptr(b) &^ pageMask
	if s := *(*int32)(unsafe.Pointer(base)); s != -1 {
		t.Fatalf("big span not marked at its page base: %d", s)
	}
	Free(b)
	b2 := Malloc(3000)
	if b2 != b {
		t.Errorf("one-page span not reused: got %p, want %p", b2, b)
	}
	Free(b2)
}
