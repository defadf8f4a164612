//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

//go:build linux

package alloc

import "golang.org/x/sys/unix"

// Arena storage on Linux is an anonymous mapping that can be remapped
// in place to grow and shrunk by unmapping the tail.

func osMap(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
}

func osGrow(data []byte, newSize int) ([]byte, error) {
	return unix.Mremap(data, newSize, unix.MREMAP_MAYMOVE)
}

func osShrink(data []byte, newSize int) ([]byte, error) {
	// Shrinking never moves the mapping.
	return unix.Mremap(data, newSize, 0)
}

func osUnmap(data []byte) {
	if data != nil {
		_ = unix.Munmap(data)
	}
}
