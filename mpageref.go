// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Slab descriptor pool.
//
// Descriptors are themselves slab-allocated: the pool carves one heap
// page at a time into cache-line-strided pageref slots, so two
// descriptors never share a line.  Descriptor storage is never
// returned to the region.
//
// 描述符池。描述符本身也按页批量获取，并以cache line为步长切分，
// 避免伪共享。描述符占用的页不再归还。
//
// A descriptor moves through: fresh stack (no backing slab yet) ->
// bound to one (processor, class) list -> reusable stack once its
// slab drains.  A reusable descriptor keeps base across release and
// acquire, so the emptied slab page is rebound instead of extending
// the heap again.

package pmalloc

import (
	"sync"
	"unsafe"
)

// mlink is a node in a block freelist threaded through free memory.
// 块空闲链表的节点，直接写在空闲块的头部
type mlink struct {
	next *mlink
}

// pageref describes one slab page.  All fields are guarded by the
// lock of the (processor, class) the descriptor is bound to, or by
// the pool lock while it sits on a pool stack; the two states are
// disjoint.
type pageref struct {
	next     *pageref // link in a (processor, class) list or pool stack
	freelist *mlink   // intrusive freelist inside the slab 页内空闲块链表
	base     uintptr  // slab page base, kept across recycling
	nfree    int32    // free blocks currently in freelist
}

type refPool struct {
	lock     sync.Mutex
	fresh    *pageref // never bound; base not yet assigned 还没有后备页
	reusable *pageref // drained slabs, base retained 可重新绑定的空页
}

var refpool refPool

// acquire hands out a descriptor.  fresh reports whether the caller
// must obtain a backing page for it; a non-fresh descriptor arrives
// with its drained, zeroed slab still attached.  Returns nil when the
// fresh stack needs a refill and the region cannot grow.
//
// 优先复用reusable栈；fresh栈空时一次性从堆取一页切出一批描述符。
func (pp *refPool) acquire() (ref *pageref, fresh bool) {
	pp.lock.Lock()
	if pp.reusable != nil {
		ref = pp.reusable
		pp.reusable = ref.next
		pp.lock.Unlock()
		return ref, false
	}
	if pp.fresh == nil {
		// Refill: the first slot of the new page is the current
		// return value, the rest go onto the fresh stack.
		base := mem.extend(pageSize)
		if base == 0 {
			pp.lock.Unlock()
			return nil, false
		}
		ref = (*pageref)(unsafe.Pointer(base))
		for off := uintptr(cacheLineSize); off < pageSize; off += cacheLineSize {
			r := (*pageref)(unsafe.Pointer(base + off))
			r.next = pp.fresh
			pp.fresh = r
		}
		pp.lock.Unlock()
		return ref, true
	}
	ref = pp.fresh
	pp.fresh = ref.next
	pp.lock.Unlock()
	return ref, true
}

// release hands a descriptor back.  A drained descriptor goes onto
// the reusable stack with base intact for the next binding; the
// caller has already unlinked it and zeroed the slab.  A descriptor
// that never obtained a backing page (base 0) goes back onto the
// fresh stack instead, so a later acquire does not hand out a binding
// with no slab behind it.
// 没拿到后备页的描述符退回fresh栈，其余进reusable栈。
func (pp *refPool) release(ref *pageref) {
	pp.lock.Lock()
	if ref.base == 0 {
		ref.next = pp.fresh
		pp.fresh = ref
	} else {
		ref.next = pp.reusable
		pp.reusable = ref
	}
	pp.lock.Unlock()
}
