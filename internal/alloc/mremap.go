//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import (
	"io"
	"os"
)

// Mremap tunable defaults.
const (
	mremapDefaultMinArena  = 1 << 16
	mremapDefaultBigAlloc  = 1 << 20
	mremapDefaultEmpty     = 64
	mremapDefaultGrowRatio = 1.5
	mremapDefaultBalloon   = 16.0
	mremapMaxTags          = 256
)

type arenaFlags uint8

const (
	arenaFull arenaFlags = 1 << iota // retired, skipped by the fit search.
	arenaCantGrow
)

type arena struct {
	base     Addr
	data     []byte // mapped storage; len is the current arena size.
	next     uint64 // bump offset.
	reserved uint64 // virtual span; growth beyond it needs a new arena.
	flags    arenaFlags
}

func (a *arena) free() uint64 { return uint64(len(a.data)) - a.next }

type mremapTag struct {
	arenas   []*arena // head first; head is the growth target.
	lastSize uint64   // size of the most recently created arena.
}

// Mremap is a growable arena family. Each arena is an anonymous
// mapping that grows in place (mremap on Linux, reallocation
// elsewhere); a ballooned virtual reservation keeps grown arenas at
// their original address.
type Mremap struct {
	bigAlloc  uint64
	empty     uint64
	minArena  uint64
	growRatio float64
	balloon   float64
	pageSize  uint64

	tags    *IdBitset
	tagData map[Tag]*mremapTag
}

func NewMremap(cfg *Config) (*Mremap, error) {
	m := &Mremap{
		bigAlloc:  uint64(cfg.BigAllocThreshold),
		empty:     uint64(cfg.EmptyThreshold),
		minArena:  uint64(cfg.MinimumArenaSize),
		growRatio: cfg.GrowRatio,
		balloon:   cfg.BalloonRatio,
		pageSize:  uint64(os.Getpagesize()),
		tags:      NewIdBitset(mremapMaxTags),
		tagData:   map[Tag]*mremapTag{},
	}
	if m.bigAlloc == 0 {
		m.bigAlloc = mremapDefaultBigAlloc
	}
	if m.empty == 0 {
		m.empty = mremapDefaultEmpty
	}
	if m.minArena == 0 {
		m.minArena = mremapDefaultMinArena
	}
	if m.growRatio < 1 {
		m.growRatio = mremapDefaultGrowRatio
	}
	if m.balloon < 1 {
		m.balloon = mremapDefaultBalloon
	}
	return m, nil
}

func (m *Mremap) Name() string { return "mremap" }

func (m *Mremap) pageAlign(v uint64) uint64 {
	return (v + m.pageSize - 1) &^ (m.pageSize - 1)
}

func (m *Mremap) newArena(mt *mremapTag, size uint64) (*arena, error) {
	size = m.pageAlign(size)
	reserved := m.pageAlign(uint64(float64(size) * m.balloon))
	data, err := osMap(int(size))
	if err != nil {
		return nil, err
	}
	a := &arena{
		base:     reserveRange(reserved),
		data:     data,
		reserved: reserved,
	}
	mt.arenas = append([]*arena{a}, mt.arenas...)
	mt.lastSize = size
	return a, nil
}

// grow attempts to grow the arena in place to at least want bytes.
func (m *Mremap) grow(a *arena, want uint64) bool {
	if a.flags&arenaCantGrow != 0 {
		return false
	}
	newSize := m.pageAlign(uint64(float64(len(a.data)) * m.growRatio))
	if newSize < want {
		newSize = m.pageAlign(want)
	}
	if newSize > a.reserved {
		a.flags |= arenaCantGrow
		return false
	}
	data, err := osGrow(a.data, int(newSize))
	if err != nil {
		a.flags |= arenaCantGrow
		return false
	}
	a.data = data
	return true
}

func (m *Mremap) Alloc(tag Tag, size, align int) (Addr, error) {
	mt := m.tagData[tag]
	if mt == nil {
		return AddrNone, ErrBadTag
	}

	// Big allocations become their own arena, sized to the request.
	if uint64(size) >= m.bigAlloc {
		a, err := m.newArena(mt, uint64(size))
		if err != nil {
			return AddrNone, err
		}
		a.next = uint64(size)
		a.flags |= arenaFull
		return a.base, nil
	}

	// Head first search for an arena that fits after alignment.
	for _, a := range mt.arenas {
		if a.flags&arenaFull != 0 {
			continue
		}
		off := alignUp(a.next, align)
		if off+uint64(size) <= uint64(len(a.data)) {
			a.next = off + uint64(size)
			if a.free() < m.empty {
				a.flags |= arenaFull
			}
			return a.base + Addr(off), nil
		}
	}

	// Try to grow the head arena in place.
	if len(mt.arenas) > 0 {
		a := mt.arenas[0]
		if a.flags&arenaFull == 0 {
			off := alignUp(a.next, align)
			if m.grow(a, off+uint64(size)) {
				a.next = off + uint64(size)
				return a.base + Addr(off), nil
			}
		}
	}

	// Create the next arena in the growth progression.
	nextSize := m.minArena
	if mt.lastSize > 0 {
		nextSize = uint64(float64(mt.lastSize) * m.growRatio)
	}
	if nextSize < uint64(size) {
		nextSize = uint64(size)
	}
	a, err := m.newArena(mt, nextSize)
	if err != nil {
		return AddrNone, err
	}
	a.next = uint64(size)
	return a.base, nil
}

// Free is a no-op; arena storage is reclaimed by tag release.
func (m *Mremap) Free(Tag, Addr) {}

func (m *Mremap) Store(tag Tag, data []byte, align int) (Addr, error) {
	addr, err := m.Alloc(tag, len(data), align)
	if err != nil {
		return AddrNone, err
	}
	copy(m.Resolve(addr, len(data)), data)
	return addr, nil
}

func (m *Mremap) Storev(tag Tag, data [][]byte, align int) (Addr, error) {
	total := 0
	for _, d := range data {
		total += len(d)
	}
	addr, err := m.Alloc(tag, total, align)
	if err != nil {
		return AddrNone, err
	}
	dst := m.Resolve(addr, total)
	for _, d := range data {
		n := copy(dst, d)
		dst = dst[n:]
	}
	return addr, nil
}

// Release is a no-op for a bump backend.
func (m *Mremap) Release(Tag, Addr, int) {}

func (m *Mremap) Resolve(addr Addr, size int) []byte {
	for _, mt := range m.tagData {
		for _, a := range mt.arenas {
			if addr >= a.base && addr+Addr(size) <= a.base+Addr(a.next) {
				off := addr - a.base
				return a.data[off : off+Addr(size)]
			}
		}
	}
	return nil
}

func (m *Mremap) GetTag() (Tag, error) {
	id, ok := m.tags.Alloc()
	if !ok {
		return TagNone, ErrNoTags
	}
	tag := Tag(id)
	m.tagData[tag] = &mremapTag{}
	return tag, nil
}

func (m *Mremap) ReleaseTag(tag Tag) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	for _, a := range mt.arenas {
		osUnmap(a.data)
		a.data = nil
	}
	delete(m.tagData, tag)
	m.tags.Free(int(tag))
}

func (m *Mremap) TrimTag(tag Tag) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	for _, a := range mt.arenas {
		want := m.pageAlign(a.next)
		if want == 0 {
			want = m.pageSize
		}
		if want >= uint64(len(a.data)) {
			continue
		}
		data, err := osShrink(a.data, int(want))
		if err != nil {
			continue
		}
		a.data = data
	}
}

func (m *Mremap) ResetTag(tag Tag) {
	mt := m.tagData[tag]
	if mt == nil {
		return
	}
	// Keep the head arena for reuse, drop the rest.
	for _, a := range mt.arenas[1:] {
		osUnmap(a.data)
		a.data = nil
	}
	if len(mt.arenas) > 0 {
		head := mt.arenas[0]
		head.next = 0
		head.flags = 0
		mt.arenas = mt.arenas[:1]
	}
}

func (m *Mremap) GetInfo() *Info {
	info := &Info{}
	for id := m.tags.Next(0); id >= 0; id = m.tags.Next(id + 1) {
		mt := m.tagData[Tag(id)]
		ti := TagInfo{Tag: Tag(id)}
		for _, a := range mt.arenas {
			ai := ArenaInfo{
				Used:  a.next,
				Free:  a.free(),
				Total: uint64(len(a.data)),
				Base:  a.base,
				Size:  uint64(len(a.data)),
			}
			ti.Used += ai.Used
			ti.Free += ai.Free
			ti.Total += ai.Total
			ti.Arenas = append(ti.Arenas, ai)
		}
		info.Used += ti.Used
		info.Free += ti.Free
		info.Total += ti.Total
		info.Tags = append(info.Tags, ti)
	}
	return info
}

func (m *Mremap) GetSingleArea(tag Tag) (Addr, []byte, error) {
	mt := m.tagData[tag]
	if mt == nil {
		return AddrNone, nil, ErrBadTag
	}
	if len(mt.arenas) != 1 {
		return AddrNone, nil, ErrNotSingleArea
	}
	a := mt.arenas[0]
	return a.base, a.data[:a.next], nil
}

func (m *Mremap) Dump(w io.Writer) { dumpInfo(w, m.Name(), m.GetInfo()) }

func (m *Mremap) Destroy() {
	for tag := range m.tagData {
		m.ReleaseTag(tag)
	}
}
