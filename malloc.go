// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmalloc is a per-processor segregated memory allocator.
//
// 基于每个处理器独立管理空闲链表的分配器，小对象按2的幂分成9个class，
// 大对象按整页分配，尽量减少多核下的锁竞争。
//
// The allocator works at page (4096-byte) granularity on top of a
// single sbrk-style region.  Requests of at most half a page are
// rounded up to one of numClasses power-of-two size classes, each of
// which has per-processor lists of slabs carved into blocks of
// exactly that size.  Requests above half a page are served whole
// pages from a serialized global freelist.
//
// The allocator's data structures are:
//
//	heapRegion: the sbrk façade, an mmap-backed monotonic region.
//	pageref: out-of-band descriptor for one slab page.
//	refPool: fresh/reusable stacks handing out pagerefs.
//	head table: nproc × numClasses list heads at the region's low end.
//	big freelist: variable-page-count spans for large requests.
//
// Allocating a small object:
//
//	1. Round the size up to a class and take the per-processor lock
//	   for the current CPU index.  每次malloc只锁当前处理器的锁。
//	2. Walk that (processor, class) slab list for a slab with a free
//	   block; pop the head of its intrusive freelist.
//	3. If no slab has room, bind a new slab: take a descriptor from
//	   the pool (reusing an emptied slab page when one exists,
//	   extending the heap otherwise) and thread its freelist.
//
// Freeing a small object:
//
//	1. Round the pointer down to its page and read the two owner
//	   integers stamped at the page base.  释放时从页头元数据找回归属，
//	   不依赖调用线程当前所在的CPU。
//	2. Take that processor's lock, push the block, and when the slab
//	   drains completely, zero it and recycle the descriptor.
//
// Large allocations bypass all of the above and go to the big
// freelist, which never splits below a page and never coalesces.
package pmalloc

import (
	"errors"
	"runtime"
	"sync"
	"unsafe"
)

// PageSize is the slab and big-span granularity.
const PageSize = pageSize

const (
	pageShift = 12
	pageSize  = 1 << pageShift // 4KB页
	pageMask  = pageSize - 1

	cacheLineSize = 64

	// Block classes are 2^(baseClass+i) bytes for i in [0, numClasses):
	// 8, 16, 32, ..., 2048. 块大小从8字节到2048字节
	numClasses = 9
	baseClass  = 3

	// Largest request served by the sub-page path.
	maxSubpage = pageSize / 2

	// Two int32 owner fields at every slab base; the same budget is
	// the sentinel+count header of a big span.
	hdrSize = 2 * 4

	bigSentinel = int32(-1)

	ptrSize = 4 << (^uintptr(0) >> 63)

	// Size of the mmap reservation backing the sbrk region.
	heapReserve = 1 << 30
)

var errHeapExhausted = errors.New("pmalloc: heap region exhausted")

var (
	nproc     int     // number of processor arenas 处理器个数
	headBase  uintptr // nproc*numClasses list-head slots at region lo
	locksBase uintptr // nproc cache-line-padded mutexes after the table
)

// Init lays out the allocator's resident state and must be called
// exactly once before Malloc or Free.  It maps the backing region if
// it is not already mapped, then extends the heap by enough pages to
// hold the freelist-head table followed by the per-processor lock
// array, zero-fills both, and constructs each lock in place.
// Init初始化堆区域，并在堆的低端布置表头数组和每处理器的锁数组。
func Init() error {
	if mem.lo() == 0 {
		if err := mem.init(heapReserve); err != nil {
			return err
		}
	}

	nproc = runtime.NumCPU()

	tableBytes := uintptr(nproc) * numClasses * ptrSize
	lockBytes := uintptr(nproc) * cacheLineSize
	npages := (tableBytes + lockBytes + pageSize - 1) / pageSize
	base := mem.extend(npages * pageSize)
	if base == 0 {
		return errHeapExhausted
	}
	memclr(unsafe.Pointer(base), npages*pageSize)

	headBase = base
	locksBase = base + tableBytes
	// 锁以cache line为步长摆放，任意两把锁不在同一cache line，避免伪共享
	for i := 0; i < nproc; i++ {
		*procMutex(i) = sync.Mutex{}
	}
	return nil
}

// Malloc returns a block of at least size bytes, or nil when the heap
// cannot be extended.  A sub-page block is aligned to its class size,
// except the block at a slab base, which starts hdrSize bytes into its
// page; a big allocation starts hdrSize bytes past a page boundary.
func Malloc(size uintptr) unsafe.Pointer {
	if size <= maxSubpage {
		return subpageAlloc(size) // 小对象走子页分配器
	}
	// Large path: the span header is charged to the request here so
	// that the big engine sizes the span in whole pages.
	return bigAlloc(size + hdrSize)
}

// Free returns a block previously obtained from Malloc.  A nil
// pointer is a no-op.  Double frees and foreign pointers are not
// detected on the big path.
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if !subpageFree(p) { // 页头哨兵为-1时说明是大对象
		bigFree(p)
	}
}

// procMutex returns the lock guarding processor p's slab lists.  The
// locks live inside the heap region; a zeroed sync.Mutex is unlocked,
// so the in-place construction in Init is a plain store.
func procMutex(p int) *sync.Mutex {
	return (*sync.Mutex)(unsafe.Pointer(locksBase + uintptr(p)*cacheLineSize))
}

// headSlot returns the head-table slot for (processor, class).
// 表头按 处理器*numClasses+class 线性排列在堆低端
func headSlot(p, c int) *uintptr {
	return (*uintptr)(unsafe.Pointer(headBase + (uintptr(p)*numClasses+uintptr(c))*ptrSize))
}

func loadHead(p, c int) *pageref {
	return (*pageref)(unsafe.Pointer(*headSlot(p, c)))
}

func storeHead(p, c int, ref *pageref) {
	*headSlot(p, c) = uintptr(unsafe.Pointer(ref))
}

// memclr zeroes n bytes at p.
func memclr(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}
