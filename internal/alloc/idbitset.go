//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import "math/bits"

// IdBitset is a dense bitmap allocator for small integer IDs. The
// zero value is an empty set of the given capacity after Init.
type IdBitset struct {
	words []uint64
	count int
}

// NewIdBitset returns a bitset handing out IDs in [0, count).
func NewIdBitset(count int) *IdBitset {
	return &IdBitset{
		words: make([]uint64, (count+63)/64),
		count: count,
	}
}

// Alloc returns the lowest free ID, or (-1, false) when the set is full.
func (bs *IdBitset) Alloc() (int, bool) {
	for wi, w := range bs.words {
		if w == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^w)
		id := wi*64 + bit
		if id >= bs.count {
			break
		}
		bs.words[wi] = w | 1<<bit
		return id, true
	}
	return -1, false
}

// Free releases an ID; freeing an unset or out of range ID is a no-op.
func (bs *IdBitset) Free(id int) {
	if id < 0 || id >= bs.count {
		return
	}
	bs.words[id/64] &^= 1 << (id % 64)
}

// Test reports whether an ID is currently allocated.
func (bs *IdBitset) Test(id int) bool {
	if id < 0 || id >= bs.count {
		return false
	}
	return bs.words[id/64]&(1<<(id%64)) != 0
}

// Next returns the lowest allocated ID >= from, or -1. Iterating with
// Next visits every set bit exactly once in ascending order.
func (bs *IdBitset) Next(from int) int {
	if from < 0 {
		from = 0
	}
	for id := from; id < bs.count; {
		w := bs.words[id/64] >> (id % 64)
		if w == 0 {
			id = (id/64 + 1) * 64
			continue
		}
		id += bits.TrailingZeros64(w)
		if id >= bs.count {
			return -1
		}
		return id
	}
	return -1
}

// Weight returns the number of allocated IDs.
func (bs *IdBitset) Weight() int {
	n := 0
	for _, w := range bs.words {
		n += bits.OnesCount64(w)
	}
	return n
}
