// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Heap region façade.
//
// The allocator grows a single monotonic region, the moral
// equivalent of sbrk: one anonymous read/write mapping is reserved up
// front and a break pointer is bumped inside it.  All growth anywhere
// in the allocator goes through extend, which is serialized by the
// region lock; the bounds are readable at any time.
//
// 堆区域一次性mmap预留，extend在预留范围内推进brk指针，
// 由一把锁串行化。lo/hi随时可读。

package pmalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

type heapRegion struct {
	lock sync.Mutex

	base uintptr // low bound, fixed once mapped 映射后不再变化
	brk  uintptr // high bound, read atomically
	end  uintptr // end of the reservation

	mapped []byte // keeps the mapping referenced
}

var mem heapRegion

// init reserves the backing mapping.  The reservation is virtual
// address space only; pages are committed by the OS on first touch.
func (h *heapRegion) init(reserve uintptr) error {
	b, err := unix.Mmap(-1, 0, int(reserve),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return err
	}
	h.mapped = b
	h.base = uintptr(unsafe.Pointer(&b[0])) // mmap返回页对齐地址
	h.end = h.base + reserve
	atomic.StoreUintptr(&h.brk, h.base)
	return nil
}

// extend grows the region by n bytes and returns the new space's low
// address, or 0 when the reservation is exhausted.  extend是分配器里
// 唯一的增长入口。
func (h *heapRegion) extend(n uintptr) uintptr {
	h.lock.Lock()
	p := atomic.LoadUintptr(&h.brk)
	if n > h.end-p {
		h.lock.Unlock()
		return 0
	}
	atomic.StoreUintptr(&h.brk, p+n)
	h.lock.Unlock()
	return p
}

// lo returns the region's low bound, 0 before init.
func (h *heapRegion) lo() uintptr { return h.base }

// hi returns the region's current break.
func (h *heapRegion) hi() uintptr { return atomic.LoadUintptr(&h.brk) }

// Bounds reports the heap region's current [lo, hi) bounds.
func Bounds() (lo, hi uintptr) {
	return mem.lo(), mem.hi()
}
