//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

//go:build !linux

package alloc

// Portable arena storage: plain heap buffers. Growing copies and
// trimming releases the tail to the garbage collector.

func osMap(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func osGrow(data []byte, newSize int) ([]byte, error) {
	grown := make([]byte, newSize)
	copy(grown, data)
	return grown, nil
}

func osShrink(data []byte, newSize int) ([]byte, error) {
	shrunk := make([]byte, newSize)
	copy(shrunk, data[:newSize])
	return shrunk, nil
}

func osUnmap(data []byte) {}
