// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package pmalloc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// procIndex derives the arena index from the CPU the caller is
// running on, modulo nproc.  The value only has to land in
// [0, nproc); it does not have to be stable between consecutive calls
// from one thread, because a block's owner is recovered from its slab
// metadata on free, never from the freeing thread's current CPU.
// 返回当前处理器编号（取模nproc）。同一线程前后两次调用可能不同，
// 释放路径依赖页头元数据而不是这里的返回值。getcpu失败时退回0号。
func procIndex() int {
	var cpu, node uint32
	_, _, errno := unix.Syscall(unix.SYS_GETCPU,
		uintptr(unsafe.Pointer(&cpu)), uintptr(unsafe.Pointer(&node)), 0)
	if errno != 0 {
		return 0
	}
	return int(cpu % uint32(nproc))
}
