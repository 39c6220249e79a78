// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmalloc

import (
	"testing"
	"unsafe"
)

func TestPoolCacheLineStride(t *testing.T) {
	a, _ := refpool.acquire()
	b, _ := refpool.acquire()
	if a == nil || b == nil {
		t.Fatal("acquire = nil")
	}
	if a == b {
		t.Fatal("acquire handed out the same descriptor twice")
	}
	for _, r := range []*pageref{a, b} {
		if uintptr(unsafe.Pointer(r))%cacheLineSize != 0 {
			t.Errorf("descriptor %p not cache-line aligned", r)
		}
	}
	refpool.release(a)
	refpool.release(b)
}

// A released descriptor keeps its backing page and comes back
// non-fresh, most recently released first.
func TestPoolReusableKeepsBase(t *testing.T) {
	ref, fresh := refpool.acquire()
	if ref == nil {
		t.Fatal("acquire = nil")
	}
	if fresh {
		base := mem.extend(pageSize)
		if base == 0 {
			t.Fatal("extend = 0")
		}
		ref.base = base
	}
	base := ref.base
	refpool.release(ref)

	got, fresh2 := refpool.acquire()
	if got != ref {
		t.Errorf("acquire after release returned %p, want %p", got, ref)
	}
	if fresh2 {
		t.Error("descriptor with a backing page came back fresh")
	}
	if got.base != base {
		t.Errorf("base not retained: %#x, want %#x", got.base, base)
	}
	refpool.release(got)
}

// A descriptor that never got a backing page must not reach the
// reusable stack.
func TestPoolReleaseWithoutBase(t *testing.T) {
	ref, _ := refpool.acquire()
	if ref == nil {
		t.Fatal("acquire = nil")
	}
	saved := ref.base
	ref.base = 0
	refpool.release(ref)
	got, fresh := refpool.acquire()
	if got == ref && !fresh {
		t.Error("baseless descriptor came off the reusable stack")
	}
	// Hand the acquired descriptor back, restoring the page of the
	// baseless one when it is the descriptor that came back.
	if got == ref {
		got.base = saved
	}
	refpool.release(got)
}
