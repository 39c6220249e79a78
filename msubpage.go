// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Sub-page allocator.
//
// Every slab page is owned by one (processor, class) pair and carries
// its owner stamped as two int32s at the page base, so free needs
// nothing but the pointer: round down, read the owner, take that
// processor's lock.  The first block of a slab overlaps the stamp and
// loses hdrSize bytes of capacity, which is the one special case in
// the allocation walk below.
//
// 子页分配器。每个slab页开头盖有(处理器,class)两个int32，释放时按页
// 对齐找回归属，O(1)定位。页首块与元数据重叠，可用空间少8字节，
// 是分配路径上唯一的特殊情况。

package pmalloc

import (
	"sync/atomic"
	"unsafe"
)

func init() {
	if unsafe.Sizeof(pageref{}) > cacheLineSize {
		panic("pmalloc: pageref does not fit a cache line")
	}
}

func subpageAlloc(size uintptr) unsafe.Pointer {
	return subpageAllocP(procIndex(), size)
}

// subpageAllocP allocates size bytes from processor p's arena.  Split
// out from subpageAlloc so the arena can be chosen explicitly.
func subpageAllocP(p int, size uintptr) unsafe.Pointer {
	c := sizeToClass(size)
	if c < 0 {
		panic("pmalloc: sub-page request above largest class")
	}
	bsize := classToSize[c]

	mu := procMutex(p)
	mu.Lock()

	// First slab with a free block wins, except that the slab-base
	// block only has bsize-hdrSize usable bytes.
	// 顺序找第一个有空闲块的slab；链表头恰好是页首块时要检查缩水后
	// 是否还装得下。
	ref := loadHead(p, c)
	for ref != nil {
		if ref.nfree > 0 {
			// A freed slab-base block is pushed at base+hdrSize so the
			// stamp survives; above the 8-byte class that address is no
			// block boundary, so a node there is the base block too.
			head := uintptr(unsafe.Pointer(ref.freelist))
			if head == ref.base || (bsize > hdrSize && head == ref.base+hdrSize) {
				if bsize-hdrSize >= size {
					break
				}
				if ref.nfree >= 2 {
					// Swap the first two freelist entries so this
					// allocation takes a full block and the page-base
					// block stays available for a smaller request.
					// 交换前两个空闲块，把页首块留给更小的请求。
					second := ref.freelist.next
					if second == nil {
						panic("pmalloc: slab freelist shorter than nfree")
					}
					ref.freelist.next = second.next
					second.next = ref.freelist
					ref.freelist = second
					break
				}
				// Only the shrunken base block is left; try the next
				// slab in the list.
			} else {
				break
			}
		}
		ref = ref.next
	}

	if ref == nil {
		ref = bindSlab(p, c)
		if ref == nil {
			mu.Unlock()
			return nil
		}
	}

	v := uintptr(unsafe.Pointer(ref.freelist))
	ref.freelist = ref.freelist.next
	ref.nfree--
	if v == ref.base {
		// The popped block shares its first hdrSize bytes with the
		// owner stamp; the caller gets the remainder.
		v += hdrSize
	}
	mu.Unlock()

	atomic.AddUint64(&memstats.nmalloc, 1)
	return unsafe.Pointer(v)
}

// bindSlab binds a slab to (p, c) and front-inserts its descriptor on
// head[p][c].  The caller holds procMutex(p); the pool lock and, on a
// refill, the region lock nest inside it.  Returns nil when the heap
// cannot grow, with the descriptor handed back to the pool.
//
// 绑定一个新slab：描述符来自池子，fresh的还要向堆要一页做后备。
// 然后按class步长把整页穿成空闲链表，盖上归属元数据，头插进表。
func bindSlab(p, c int) *pageref {
	ref, fresh := refpool.acquire()
	if ref == nil {
		return nil
	}
	if fresh {
		base := mem.extend(pageSize)
		if base == 0 {
			refpool.release(ref)
			return nil
		}
		ref.base = base
		atomic.AddUint64(&memstats.nslabcreate, 1)
	} else {
		atomic.AddUint64(&memstats.nslabreuse, 1)
	}

	// Thread every block through a next-pointer prefix, low to high,
	// leaving the highest block at the list head and the page-base
	// block at the tail.
	bsize := classToSize[c]
	ref.freelist = nil
	ref.nfree = 0
	for off := uintptr(0); off < pageSize; off += bsize {
		l := (*mlink)(unsafe.Pointer(ref.base + off))
		l.next = ref.freelist
		ref.freelist = l
		ref.nfree++
	}

	// Stamp the owner.  This overwrites the page-base block's link,
	// which is the freelist tail and never followed: pops stop when
	// nfree reaches zero.
	// 元数据会覆盖页首块的next指针；它是链表尾，nfree清零后不会再被跟随。
	*(*int32)(unsafe.Pointer(ref.base)) = int32(p)
	*(*int32)(unsafe.Pointer(ref.base + 4)) = int32(c)

	ref.next = loadHead(p, c)
	storeHead(p, c, ref)
	return ref
}

// subpageFree returns v's block to its slab.  It reports false,
// without touching any lock, when the page metadata marks a big span;
// the dispatcher then falls through to the big path.
func subpageFree(v unsafe.Pointer) bool {
	base := uintptr(v) &^ pageMask
	p := int(*(*int32)(unsafe.Pointer(base)))
	if p == int(bigSentinel) {
		return false
	}
	c := int(*(*int32)(unsafe.Pointer(base + 4)))

	// The owner comes from the stamp, not from the caller's current
	// CPU, so a thread migrating between malloc and free is safe.
	mu := procMutex(p)
	mu.Lock()

	var prev *pageref
	ref := loadHead(p, c)
	for ref != nil && ref.base != base {
		prev = ref
		ref = ref.next
	}
	if ref == nil {
		panic("pmalloc: free of block with no bound slab")
	}

	l := (*mlink)(v)
	l.next = ref.freelist
	ref.freelist = l
	ref.nfree++

	if ref.nfree == classNumBlocks(c) {
		// Slab fully drained: unlink, zero the whole page (stamp
		// included; it is re-stamped on the next binding) and recycle
		// the descriptor.  The backing page stays with it.
		// 整页空了就摘链、清零、连页一起归还池子等待重新绑定。
		if prev != nil {
			prev.next = ref.next
		} else {
			storeHead(p, c, ref.next)
		}
		memclr(unsafe.Pointer(base), pageSize)
		refpool.release(ref)
		atomic.AddUint64(&memstats.nslabrecycle, 1)
	}
	mu.Unlock()

	atomic.AddUint64(&memstats.nfree, 1)
	return true
}
