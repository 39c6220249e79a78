// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Heapmap runs a synthetic workload against the allocator and renders
// the per-class slab occupancy as a PNG bar chart: one bar pair per
// size class, bound slabs next to the share of their blocks still
// free.  Useful for eyeballing fragmentation after a workload.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"unsafe"

	"github.com/fogleman/gg"

	pmalloc "github.com/Rachelz1231/Parallel-Memory-Allocator"
)

var (
	out    = flag.String("o", "heapmap.png", "output image")
	allocs = flag.Int("allocs", 50000, "allocations in the synthetic workload")
	keep   = flag.Int("keep", 4000, "blocks left live when the snapshot is taken")
	seed   = flag.Int64("seed", 1, "RNG seed")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run() error {
	if err := pmalloc.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	// Mixed sub-page workload, freeing most blocks so recycling and
	// partial slabs both show up in the snapshot.
	rng := rand.New(rand.NewSource(*seed))
	live := make([]unsafe.Pointer, 0, *keep)
	for i := 0; i < *allocs; i++ {
		sz := uintptr(1) << uint(3+rng.Intn(9))
		p := pmalloc.Malloc(sz - uintptr(rng.Intn(4)))
		if p == nil {
			return fmt.Errorf("out of memory after %d allocations", i)
		}
		if len(live) < cap(live) {
			live = append(live, p)
		} else {
			j := rng.Intn(len(live))
			pmalloc.Free(live[j])
			live[j] = p
		}
	}

	var st pmalloc.Stats
	pmalloc.ReadStats(&st)
	return render(&st)
}

const (
	imgW    = 900
	imgH    = 480
	margin  = 60.0
	barGap  = 12.0
)

func render(st *pmalloc.Stats) error {
	maxSlabs := uint64(1)
	for _, cs := range st.BySize {
		if cs.Slabs > maxSlabs {
			maxSlabs = cs.Slabs
		}
	}

	dc := gg.NewContext(imgW, imgH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plotW := float64(imgW) - 2*margin
	plotH := float64(imgH) - 2*margin
	barW := (plotW - barGap*float64(len(st.BySize))) / float64(len(st.BySize)*2)

	x := margin
	for _, cs := range st.BySize {
		slabH := plotH * float64(cs.Slabs) / float64(maxSlabs)
		freeH := 0.0
		if total := cs.Slabs * uint64(pmalloc.PageSize) / uint64(cs.Size); total > 0 {
			freeH = slabH * float64(cs.FreeBlocks) / float64(total)
		}

		// Bound slabs.
		dc.SetRGB(0.25, 0.45, 0.85)
		dc.DrawRectangle(x, margin+plotH-slabH, barW, slabH)
		dc.Fill()
		// Free share of those slabs' blocks.
		dc.SetRGB(0.55, 0.75, 0.55)
		dc.DrawRectangle(x+barW, margin+plotH-freeH, barW, freeH)
		dc.Fill()

		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(fmt.Sprintf("%d", cs.Size), x+barW, margin+plotH+14, 0.5, 0.5)
		dc.DrawStringAnchored(fmt.Sprintf("%d", cs.Slabs), x+barW, margin+plotH-slabH-10, 0.5, 0.5)
		x += 2*barW + barGap
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored("bound slabs (blue) and free blocks (green) per size class", float64(imgW)/2, margin/2, 0.5, 0.5)
	lo, hi := pmalloc.Bounds()
	dc.DrawStringAnchored(fmt.Sprintf("heap in use: %d KB", (hi-lo)/1024), float64(imgW)/2, float64(imgH)-margin/2, 0.5, 0.5)

	if err := dc.SavePNG(*out); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}
