// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package pmalloc

import "sync/atomic"

var procSeq uint32

// procIndex spreads callers round-robin on platforms without a
// current-CPU query.  Any in-range value is correct; the arena is
// fixed by the lock taken after this returns.
func procIndex() int {
	return int(atomic.AddUint32(&procSeq, 1) % uint32(nproc))
}
