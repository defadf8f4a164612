//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import (
	"io"
	"sort"
)

const mallocMaxTags = 256

// mallocRecord tracks one allocation; records form a per-tag doubly
// linked list so bulk release is a single traversal.
type mallocRecord struct {
	prev, next *mallocRecord
	base       Addr
	data       []byte
}

type mallocTag struct {
	head *mallocRecord
	used uint64
}

// Malloc is a per-object tracking wrapper over the Go heap. Unlike the
// bump backends it supports efficient individual Free, and a Contains
// capability used by diagnostics.
type Malloc struct {
	tags    *IdBitset
	tagData map[Tag]*mallocTag

	// All live records ordered by base, for Resolve/Contains.
	records []*mallocRecord
}

func NewMalloc(*Config) (*Malloc, error) {
	return &Malloc{
		tags:    NewIdBitset(mallocMaxTags),
		tagData: map[Tag]*mallocTag{},
	}, nil
}

func (m *Malloc) Name() string { return "malloc" }

func (m *Malloc) Alloc(tag Tag, size, align int) (Addr, error) {
	mt := m.tagData[tag]
	if mt == nil {
		return AddrNone, ErrBadTag
	}
	rec := &mallocRecord{
		base: reserveRange(uint64(size)),
		data: make([]byte, size),
	}
	rec.next = mt.head
	if mt.head != nil {
		mt.head.prev = rec
	}
	mt.head = rec
	mt.used += uint64(size)
	m.records = append(m.records, rec)
	return rec.base, nil
}

func (m *Malloc) findRecord(addr Addr) (int, *mallocRecord) {
	i := sort.Search(len(m.records), func(i int) bool {
		r := m.records[i]
		return r.base+Addr(len(r.data)) > addr
	})
	if i < len(m.records) && addr >= m.records[i].base {
		return i, m.records[i]
	}
	return -1, nil
}

func (m *Malloc) Free(tag Tag, addr Addr) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	i, rec := m.findRecord(addr)
	if rec == nil || rec.base != addr {
		return
	}
	if rec.prev != nil {
		rec.prev.next = rec.next
	} else {
		mt.head = rec.next
	}
	if rec.next != nil {
		rec.next.prev = rec.prev
	}
	mt.used -= uint64(len(rec.data))
	m.records = append(m.records[:i], m.records[i+1:]...)
}

func (m *Malloc) Store(tag Tag, data []byte, align int) (Addr, error) {
	addr, err := m.Alloc(tag, len(data), align)
	if err != nil {
		return AddrNone, err
	}
	copy(m.Resolve(addr, len(data)), data)
	return addr, nil
}

func (m *Malloc) Storev(tag Tag, data [][]byte, align int) (Addr, error) {
	return storevFlatten(m, tag, data, align)
}

// Release is treated as Free; the backend does not share content.
func (m *Malloc) Release(tag Tag, addr Addr, size int) { m.Free(tag, addr) }

func (m *Malloc) Resolve(addr Addr, size int) []byte {
	_, rec := m.findRecord(addr)
	if rec == nil || addr+Addr(size) > rec.base+Addr(len(rec.data)) {
		return nil
	}
	off := addr - rec.base
	return rec.data[off : off+Addr(size)]
}

// Contains reports whether addr falls inside an allocation of the tag.
func (m *Malloc) Contains(tag Tag, addr Addr) bool {
	mt := m.tagData[tag]
	if mt == nil {
		return false
	}
	for rec := mt.head; rec != nil; rec = rec.next {
		if addr >= rec.base && addr < rec.base+Addr(len(rec.data)) {
			return true
		}
	}
	return false
}

func (m *Malloc) GetTag() (Tag, error) {
	id, ok := m.tags.Alloc()
	if !ok {
		return TagNone, ErrNoTags
	}
	tag := Tag(id)
	m.tagData[tag] = &mallocTag{}
	return tag, nil
}

func (m *Malloc) ReleaseTag(tag Tag) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	for rec := mt.head; rec != nil; rec = rec.next {
		if i, r := m.findRecord(rec.base); r == rec {
			m.records = append(m.records[:i], m.records[i+1:]...)
		}
	}
	delete(m.tagData, tag)
	m.tags.Free(int(tag))
}

// TrimTag is a no-op; the Go heap manages its own pages.
func (m *Malloc) TrimTag(Tag) {}

func (m *Malloc) ResetTag(tag Tag) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	for rec := mt.head; rec != nil; rec = rec.next {
		if i, r := m.findRecord(rec.base); r == rec {
			m.records = append(m.records[:i], m.records[i+1:]...)
		}
	}
	mt.head = nil
	mt.used = 0
}

func (m *Malloc) GetInfo() *Info {
	info := &Info{}
	for id := m.tags.Next(0); id >= 0; id = m.tags.Next(id + 1) {
		mt := m.tagData[Tag(id)]
		ti := TagInfo{Tag: Tag(id), Used: mt.used, Total: mt.used}
		for rec := mt.head; rec != nil; rec = rec.next {
			ti.Arenas = append(ti.Arenas, ArenaInfo{
				Used:  uint64(len(rec.data)),
				Total: uint64(len(rec.data)),
				Base:  rec.base,
				Size:  uint64(len(rec.data)),
			})
		}
		info.Used += ti.Used
		info.Total += ti.Total
		info.Tags = append(info.Tags, ti)
	}
	return info
}

func (m *Malloc) GetSingleArea(tag Tag) (Addr, []byte, error) {
	mt := m.tagData[tag]
	if mt == nil {
		return AddrNone, nil, ErrBadTag
	}
	if mt.head == nil || mt.head.next != nil {
		return AddrNone, nil, ErrNotSingleArea
	}
	return mt.head.base, mt.head.data, nil
}

func (m *Malloc) Dump(w io.Writer) { dumpInfo(w, m.Name(), m.GetInfo()) }

func (m *Malloc) Destroy() {
	for tag := range m.tagData {
		m.ReleaseTag(tag)
	}
}
