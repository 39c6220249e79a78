// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Allocator statistics.
//
// 统计信息。计数器用原子操作累加，ReadStats拍快照时逐个处理器加锁
// 统计各class当前绑定的slab和空闲块。

package pmalloc

import "sync/atomic"

// memstats holds the running counters; fields are updated with
// atomic adds on the allocation paths.
var memstats struct {
	nmalloc      uint64 // sub-page allocations
	nfree        uint64 // sub-page frees
	nbigmalloc   uint64 // big allocations
	nbigfree     uint64 // big frees
	nslabcreate  uint64 // slabs backed by fresh heap pages
	nslabreuse   uint64 // slabs rebound from the reusable stack
	nslabrecycle uint64 // slabs drained and recycled
}

// Stats is a snapshot of allocator activity.
type Stats struct {
	Mallocs     uint64 // cumulative sub-page allocations
	Frees       uint64 // cumulative sub-page frees
	BigMallocs  uint64 // cumulative big allocations
	BigFrees    uint64 // cumulative big frees
	SlabCreate  uint64 // slabs created from fresh heap pages
	SlabReuse   uint64 // slab bindings served from recycled pages
	SlabRecycle uint64 // slabs drained back to the pool
	HeapInuse   uint64 // bytes between the region's lo and hi bounds
	BySize      [numClasses]ClassStats
}

// ClassStats describes one size class at snapshot time.
type ClassStats struct {
	Size       uint32 // block size of the class
	Slabs      uint64 // slabs currently bound, all processors
	FreeBlocks uint64 // free blocks across those slabs
}

// ReadStats fills st with a snapshot.  Counters are read atomically;
// the per-class gauges walk every (processor, class) list under that
// processor's lock, so concurrent allocation is slowed but not
// stopped while a snapshot is taken.
func ReadStats(st *Stats) {
	st.Mallocs = atomic.LoadUint64(&memstats.nmalloc)
	st.Frees = atomic.LoadUint64(&memstats.nfree)
	st.BigMallocs = atomic.LoadUint64(&memstats.nbigmalloc)
	st.BigFrees = atomic.LoadUint64(&memstats.nbigfree)
	st.SlabCreate = atomic.LoadUint64(&memstats.nslabcreate)
	st.SlabReuse = atomic.LoadUint64(&memstats.nslabreuse)
	st.SlabRecycle = atomic.LoadUint64(&memstats.nslabrecycle)

	lo, hi := Bounds()
	st.HeapInuse = uint64(hi - lo)

	for c := 0; c < numClasses; c++ {
		st.BySize[c] = ClassStats{Size: uint32(classToSize[c])}
	}
	for p := 0; p < nproc; p++ {
		mu := procMutex(p)
		mu.Lock()
		for c := 0; c < numClasses; c++ {
			for ref := loadHead(p, c); ref != nil; ref = ref.next {
				st.BySize[c].Slabs++
				st.BySize[c].FreeBlocks += uint64(ref.nfree)
			}
		}
		mu.Unlock()
	}
}
