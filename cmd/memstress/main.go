// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memstress drives the allocator with a mixed-size workload from
// several OS threads and reports the allocator's counters.
//
// Each worker keeps a bounded window of live blocks, fills every
// block with a marker byte and verifies the marker before freeing,
// so any overlap between concurrent allocations is caught as
// corruption.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/spf13/cobra"

	pmalloc "github.com/Rachelz1231/Parallel-Memory-Allocator"
)

var (
	threads int
	iters   int
	window  int
	seed    int64
	sizes   []int
)

func main() {
	root := &cobra.Command{
		Use:   "memstress",
		Short: "stress the per-processor allocator and print its stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().IntVar(&threads, "threads", 8, "worker threads")
	root.Flags().IntVar(&iters, "iters", 100000, "allocations per thread")
	root.Flags().IntVar(&window, "window", 64, "live blocks held per thread")
	root.Flags().Int64Var(&seed, "seed", 1, "base RNG seed")
	root.Flags().IntSliceVar(&sizes, "sizes", []int{7, 120, 1000, 3000, 9000}, "request sizes drawn uniformly")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type block struct {
	p  unsafe.Pointer
	sz uintptr
	b  byte
}

func run() error {
	if err := pmalloc.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, threads)
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Workers are real OS threads so the per-CPU routing is
			// exercised the way a threaded program would.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			rng := rand.New(rand.NewSource(seed + int64(w)))
			live := make([]block, 0, window)
			for i := 0; i < iters; i++ {
				sz := uintptr(sizes[rng.Intn(len(sizes))])
				p := pmalloc.Malloc(sz)
				if p == nil {
					errs <- fmt.Errorf("worker %d: out of memory on %d bytes", w, sz)
					return
				}
				b := byte(rng.Intn(255) + 1)
				fill(p, sz, b)
				live = append(live, block{p, sz, b})
				if len(live) == cap(live) {
					for _, l := range live {
						if !verify(l.p, l.sz, l.b) {
							errs <- fmt.Errorf("worker %d: block %p corrupted", w, l.p)
							return
						}
						pmalloc.Free(l.p)
					}
					live = live[:0]
				}
			}
			for _, l := range live {
				if !verify(l.p, l.sz, l.b) {
					errs <- fmt.Errorf("worker %d: block %p corrupted", w, l.p)
					return
				}
				pmalloc.Free(l.p)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}

	var st pmalloc.Stats
	pmalloc.ReadStats(&st)
	lo, hi := pmalloc.Bounds()
	log.Printf("sub-page: %d allocs, %d frees", st.Mallocs, st.Frees)
	log.Printf("big:      %d allocs, %d frees", st.BigMallocs, st.BigFrees)
	log.Printf("slabs:    %d created, %d rebound, %d recycled", st.SlabCreate, st.SlabReuse, st.SlabRecycle)
	log.Printf("heap:     %d bytes used of region [%#x, %#x)", st.HeapInuse, lo, hi)
	for _, cs := range st.BySize {
		if cs.Slabs > 0 {
			log.Printf("  class %4d: %d slabs bound, %d free blocks", cs.Size, cs.Slabs, cs.FreeBlocks)
		}
	}
	return nil
}

func fill(p unsafe.Pointer, n uintptr, b byte) {
	s := unsafe.Slice((*byte)(p), n)
	for i := range s {
		s[i] = b
	}
}

func verify(p unsafe.Pointer, n uintptr, b byte) bool {
	s := unsafe.Slice((*byte)(p), n)
	for i := range s {
		if s[i] != b {
			return false
		}
	}
	return true
}
