//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import (
	"io"
)

const linearMaxTags = 64

// Linear is a single arena bump allocator. Capacity is fixed up front;
// there is no per-object free. Tags follow a stack discipline: GetTag
// marks the current watermark and ReleaseTag rewinds to it, so nested
// scratch scopes reuse the same buffer.
type Linear struct {
	base Addr
	buf  []byte
	next uint64

	tags  *IdBitset
	marks [linearMaxTags]uint64
}

// NewLinear creates a linear allocator over cfg.Buffer, or over a fresh
// buffer of cfg.Size bytes.
func NewLinear(cfg *Config) (*Linear, error) {
	buf := cfg.Buffer
	if buf == nil {
		size := cfg.Size
		if size <= 0 {
			size = 1 << 16
		}
		buf = make([]byte, size)
	}
	return &Linear{
		base: reserveRange(uint64(len(buf))),
		buf:  buf,
		tags: NewIdBitset(linearMaxTags),
	}, nil
}

func (l *Linear) Name() string { return "linear" }

func (l *Linear) Alloc(tag Tag, size, align int) (Addr, error) {
	if !l.tags.Test(int(tag)) {
		return AddrNone, ErrBadTag
	}
	off := alignUp(l.next, align)
	if off+uint64(size) > uint64(len(l.buf)) {
		return AddrNone, ErrNoSpace
	}
	l.next = off + uint64(size)
	return l.base + Addr(off), nil
}

// Free is a no-op; linear storage is only reclaimed by tag release.
func (l *Linear) Free(Tag, Addr) {}

func (l *Linear) Store(tag Tag, data []byte, align int) (Addr, error) {
	addr, err := l.Alloc(tag, len(data), align)
	if err != nil {
		return AddrNone, err
	}
	copy(l.buf[addr-l.base:], data)
	return addr, nil
}

func (l *Linear) Storev(tag Tag, data [][]byte, align int) (Addr, error) {
	return storevFlatten(l, tag, data, align)
}

// Release is a no-op for a bump backend.
func (l *Linear) Release(Tag, Addr, int) {}

func (l *Linear) Resolve(addr Addr, size int) []byte {
	if addr < l.base || addr+Addr(size) > l.base+Addr(l.next) {
		return nil
	}
	off := addr - l.base
	return l.buf[off : off+Addr(size)]
}

func (l *Linear) GetTag() (Tag, error) {
	id, ok := l.tags.Alloc()
	if !ok {
		return TagNone, ErrNoTags
	}
	l.marks[id] = l.next
	return Tag(id), nil
}

func (l *Linear) ReleaseTag(tag Tag) {
	if !l.tags.Test(int(tag)) {
		return
	}
	l.next = l.marks[tag]
	l.tags.Free(int(tag))
}

// TrimTag is a no-op; the buffer is owned whole.
func (l *Linear) TrimTag(Tag) {}

func (l *Linear) ResetTag(tag Tag) {
	if l.tags.Test(int(tag)) {
		l.next = l.marks[tag]
	}
}

func (l *Linear) GetInfo() *Info {
	info := &Info{
		Used:  l.next,
		Free:  uint64(len(l.buf)) - l.next,
		Total: uint64(len(l.buf)),
	}
	for id := l.tags.Next(0); id >= 0; id = l.tags.Next(id + 1) {
		used := l.next - l.marks[id]
		info.Tags = append(info.Tags, TagInfo{
			Tag:  Tag(id),
			Used: used,
			Free: uint64(len(l.buf)) - l.next,
			// The tag owns the tail of the single arena.
			Total: uint64(len(l.buf)) - l.marks[id],
			Arenas: []ArenaInfo{{
				Used:  used,
				Free:  uint64(len(l.buf)) - l.next,
				Total: uint64(len(l.buf)) - l.marks[id],
				Base:  l.base + Addr(l.marks[id]),
				Size:  uint64(len(l.buf)) - l.marks[id],
			}},
		})
	}
	return info
}

func (l *Linear) GetSingleArea(tag Tag) (Addr, []byte, error) {
	if !l.tags.Test(int(tag)) {
		return AddrNone, nil, ErrBadTag
	}
	mark := l.marks[tag]
	return l.base + Addr(mark), l.buf[mark:l.next], nil
}

func (l *Linear) Dump(w io.Writer) { dumpInfo(w, l.Name(), l.GetInfo()) }

func (l *Linear) Destroy() {
	l.buf = nil
	l.next = 0
}
