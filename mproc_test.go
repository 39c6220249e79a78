// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmalloc

import (
	"sync"
	"testing"
)

func TestProcIndexInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		p := procIndex()
		if p < 0 || p >= nproc {
			t.Fatalf("procIndex() = %d, want [0, %d)", p, nproc)
		}
	}
}

func TestProcIndexConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if p := procIndex(); p < 0 || p >= nproc {
					t.Errorf("procIndex() = %d out of range", p)
					return
				}
			}
		}()
	}
	wg.Wait()
}
