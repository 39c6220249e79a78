// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Malloc small size classes.
//
// Sub-page requests are rounded up to a power of two between 8 and
// 2048 bytes, so for requests above 4 bytes rounding wastes less than
// half the block.  Every slab
// page is carved into blocks of exactly one class, which keeps the
// per-page accounting a single counter.
//
// 小对象按2的幂分级：class i 对应 2^(baseClass+i) 字节。
// 一页只切成一种大小的块。

package pmalloc

// classToSize[i] is the block size of class i.
// classToSize[i] 为第i类的块大小
var classToSize = [numClasses]uintptr{8, 16, 32, 64, 128, 256, 512, 1024, 2048}

// sizeToClass returns the smallest class whose block size holds size
// bytes, or -1 when the request exceeds the largest class.  Callers
// guarantee size <= maxSubpage before consulting, so the -1 arm is an
// internal error on that path.  A zero size maps to class 0.
// 返回能容纳size的最小class，超出最大class时返回-1
func sizeToClass(size uintptr) int {
	for c := 0; c < numClasses; c++ {
		if classToSize[c] >= size {
			return c
		}
	}
	return -1
}

// classNumBlocks returns how many blocks of class c fit in one slab.
// 一页能切出的块数
func classNumBlocks(c int) int32 {
	return int32(pageSize >> uint(baseClass+c))
}
