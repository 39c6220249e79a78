// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Big allocator.
//
// Requests above half a page are served whole pages from one global
// freelist of spans.  A live span starts with the big sentinel and
// its page count, the same eight bytes a slab spends on its owner
// stamp, which is how Free tells the two kinds of page apart.  Spans
// are never split below a page, never coalesced and never returned to
// the region, so the list walk is the whole algorithm.
//
// 大对象分配器。整页为单位，单一全局空闲链表，串行化处理。
// 活跃span的头8字节是(-1, 页数)，与子页slab的元数据位置重合，
// 释放时以此区分两类页。不合并、不归还。

package pmalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// bigspan overlays a free span's base: the page count where a live
// span keeps its header, the link after it.
// 空闲span的记录直接覆盖在span开头
type bigspan struct {
	npages uintptr
	next   *bigspan
}

var biglist struct {
	lock sync.Mutex
	head *bigspan
}

// bigAlloc serves a request already inflated by hdrSize.  It prefers
// the freelist: an exact fit is unlinked, a larger span is carved
// from its tail so the remaining entry stays linked in place.  Only
// when the walk fails does the region grow; the list lock is dropped
// first, keeping it independent of the region lock.
func bigAlloc(size uintptr) unsafe.Pointer {
	n := (size + pageSize - 1) / pageSize

	var v uintptr
	biglist.lock.Lock()
	var prev *bigspan
	for s := biglist.head; s != nil; s = s.next {
		if s.npages == n {
			if prev != nil {
				prev.next = s.next
			} else {
				biglist.head = s.next
			}
			v = uintptr(unsafe.Pointer(s))
			break
		}
		if s.npages > n {
			// Carve off the tail: the entry keeps its place in the
			// list with a smaller count, no relinking.
			// 从尾部切走n页，表项原地缩小，不用重新挂链。
			s.npages -= n
			v = uintptr(unsafe.Pointer(s)) + s.npages*pageSize
			break
		}
		prev = s
	}
	biglist.lock.Unlock()

	if v == 0 {
		v = mem.extend(n * pageSize)
		if v == 0 {
			return nil
		}
	}

	*(*int32)(unsafe.Pointer(v)) = bigSentinel
	*(*int32)(unsafe.Pointer(v + 4)) = int32(n)
	atomic.AddUint64(&memstats.nbigmalloc, 1)
	return unsafe.Pointer(v + hdrSize)
}

// bigFree pushes v's span back on the freelist.  The page count is
// read from the live header before the free record overlays it.
func bigFree(v unsafe.Pointer) {
	base := uintptr(v) - hdrSize
	n := uintptr(*(*int32)(unsafe.Pointer(base + 4)))

	s := (*bigspan)(unsafe.Pointer(base))
	s.npages = n
	biglist.lock.Lock()
	s.next = biglist.head
	biglist.head = s
	biglist.lock.Unlock()
	atomic.AddUint64(&memstats.nbigfree, 1)
}
