//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"encoding/binary"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
)

// Relocate rewrites every out of line pointer reachable from root by
// adding delta, mutating the arena bytes in place, and returns the
// relocated root word. data is the contiguous arena that was based at
// oldBase. Shared payloads are rewritten exactly once.
func Relocate(data []byte, oldBase alloc.Addr, root Value, delta uint64) Value {
	r := &relocator{
		data:    data,
		oldBase: oldBase,
		delta:   delta,
		seen:    map[alloc.Addr]bool{},
	}
	return r.walk(root)
}

type relocator struct {
	data    []byte
	oldBase alloc.Addr
	delta   uint64
	seen    map[alloc.Addr]bool
}

func (r *relocator) rebase(v Value) Value {
	addr := outAddr(v)
	newAddr := alloc.Addr(uint64(addr) + r.delta)
	if (v & vTagMask) == vTagStringOut {
		return Value(newAddr) | (v & 0x7)
	}
	return Value(newAddr) | (v & 0xf)
}

func (r *relocator) payload(addr alloc.Addr, size int) []byte {
	off := int(addr - r.oldBase)
	if off < 0 || off+size > len(r.data) {
		return nil
	}
	return r.data[off : off+size]
}

func (r *relocator) walk(v Value) Value {
	if Inplace(v) {
		return v
	}
	addr := outAddr(v)
	out := r.rebase(v)
	if r.seen[addr] {
		// Shared payload, already rewritten.
		return out
	}

	switch v & vTagMask {
	case vTagCollection:
		r.seen[addr] = true
		hdr := r.payload(addr, 8)
		if hdr == nil {
			return out
		}
		count := int(binary.LittleEndian.Uint64(hdr))
		stride := 1
		if v&vSubBit != 0 {
			stride = 2
		}
		body := r.payload(addr+8, count*stride*8)
		for i := 0; i < count*stride; i++ {
			w := Value(binary.LittleEndian.Uint64(body[i*8:]))
			w = r.walk(w)
			binary.LittleEndian.PutUint64(body[i*8:], uint64(w))
		}
	case vTagIndirect:
		if v&vSubBit != 0 {
			break // alias carries only text.
		}
		r.seen[addr] = true
		body := r.payload(addr, 24)
		if body == nil {
			return out
		}
		for i := 0; i < 3; i++ {
			w := Value(binary.LittleEndian.Uint64(body[i*8:]))
			w = r.walk(w)
			binary.LittleEndian.PutUint64(body[i*8:], uint64(w))
		}
	}
	return out
}
