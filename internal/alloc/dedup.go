//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Dedup defaults.
const (
	dedupDefaultThreshold  = 8
	dedupDefaultBloomBits  = 13
	dedupDefaultBucketBits = 7
	dedupMaxTags           = 64
)

// chainGrowth is the longest-chain threshold keyed by bucket bit
// count; exceeding it grows both the bloom filter and the bucket
// array by one bit. The tail entry is effectively infinity.
var chainGrowth = []int{
	1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 5, 5, 6, 7, 8, 9, 10, 1 << 30,
}

func chainLimit(bits uint) int {
	if int(bits) >= len(chainGrowth) {
		return chainGrowth[len(chainGrowth)-1]
	}
	return chainGrowth[bits]
}

// Entry record layout inside the entries allocator:
//
//	0  hash      uint64
//	8  refcount  uint32
//	12 size      uint32
//	16 content   Addr
//	24 next      Addr (chain link, 0 terminates)
const dedupEntrySize = 32

type dedupTag struct {
	parentTag  Tag
	entriesTag Tag

	bloom      []uint64
	bloomBits  uint
	bloomStale bool // releases marked bits for deferred refresh.

	buckets    []Addr
	bucketBits uint

	count    int
	stored   uint64 // bytes handed to the parent.
	dupSaved uint64 // bytes saved by returning an existing pointer.
}

// Dedup is a transparent content addressed filter over a parent
// allocator. Stores above the threshold are hashed with XXH64 and
// chained into hash buckets behind a bloom filter; matching content is
// shared by reference count. Entry records live in a separate internal
// allocator so the parent content region stays amenable to
// linearization.
type Dedup struct {
	parent    Allocator
	ownParent bool
	entries   *Mremap

	threshold int

	initBloomBits  uint
	initBucketBits uint

	tags    *IdBitset
	tagData map[Tag]*dedupTag
}

func NewDedup(cfg *Config) (*Dedup, error) {
	parent := cfg.Parent
	ownParent := false
	if parent == nil {
		var err error
		parent, err = NewMremap(&Config{})
		if err != nil {
			return nil, err
		}
		ownParent = true
	}
	entries, err := NewMremap(&Config{MinimumArenaSize: 1 << 12})
	if err != nil {
		return nil, err
	}
	d := &Dedup{
		parent:         parent,
		ownParent:      ownParent,
		entries:        entries,
		threshold:      cfg.DedupThreshold,
		initBloomBits:  cfg.BloomFilterBits,
		initBucketBits: cfg.BucketBits,
		tags:           NewIdBitset(dedupMaxTags),
		tagData:        map[Tag]*dedupTag{},
	}
	if d.threshold == 0 {
		d.threshold = dedupDefaultThreshold
	}
	if d.initBloomBits == 0 {
		d.initBloomBits = dedupDefaultBloomBits
	}
	if d.initBucketBits == 0 {
		d.initBucketBits = dedupDefaultBucketBits
	}
	return d, nil
}

func (d *Dedup) Name() string { return "dedup" }

// Alloc passes through; only Store participates in deduplication.
func (d *Dedup) Alloc(tag Tag, size, align int) (Addr, error) {
	dt := d.tagData[tag]
	if dt == nil {
		return AddrNone, ErrBadTag
	}
	return d.parent.Alloc(dt.parentTag, size, align)
}

func (d *Dedup) Free(tag Tag, addr Addr) {
	if dt := d.tagData[tag]; dt != nil {
		d.parent.Free(dt.parentTag, addr)
	}
}

func (dt *dedupTag) bloomTest(hash uint64) bool {
	bit := hash & (1<<dt.bloomBits - 1)
	return dt.bloom[bit/64]&(1<<(bit%64)) != 0
}

func (dt *dedupTag) bloomSet(hash uint64) {
	bit := hash & (1<<dt.bloomBits - 1)
	dt.bloom[bit/64] |= 1 << (bit % 64)
}

func (d *Dedup) entry(addr Addr) []byte {
	return d.entries.Resolve(addr, dedupEntrySize)
}

func entryHash(e []byte) uint64    { return binary.LittleEndian.Uint64(e[0:]) }
func entryRefs(e []byte) uint32    { return binary.LittleEndian.Uint32(e[8:]) }
func entrySize(e []byte) int       { return int(binary.LittleEndian.Uint32(e[12:])) }
func entryContent(e []byte) Addr   { return Addr(binary.LittleEndian.Uint64(e[16:])) }
func entryNext(e []byte) Addr      { return Addr(binary.LittleEndian.Uint64(e[24:])) }
func setEntryRefs(e []byte, v uint32) {
	binary.LittleEndian.PutUint32(e[8:], v)
}
func setEntryNext(e []byte, v Addr) {
	binary.LittleEndian.PutUint64(e[24:], uint64(v))
}

func (d *Dedup) Store(tag Tag, data []byte, align int) (Addr, error) {
	dt := d.tagData[tag]
	if dt == nil {
		return AddrNone, ErrBadTag
	}
	if len(data) < d.threshold {
		dt.stored += uint64(len(data))
		return d.parent.Store(dt.parentTag, data, align)
	}

	hash := xxhash.Sum64(data)
	// A negative filter short-circuits the lookup, but only while no
	// release has left stale bits behind.
	if dt.bloomTest(hash) || dt.bloomStale {
		bucket := hash & (1<<dt.bucketBits - 1)
		for ea := dt.buckets[bucket]; ea != AddrNone; {
			e := d.entry(ea)
			if entryHash(e) == hash && entrySize(e) == len(data) {
				content := d.parent.Resolve(entryContent(e), len(data))
				// The shared copy must also satisfy the caller's
				// alignment; entries do not record it.
				if bytes.Equal(content, data) &&
					(align <= 1 || uint64(entryContent(e))%uint64(align) == 0) {
					setEntryRefs(e, entryRefs(e)+1)
					dt.dupSaved += uint64(len(data))
					return entryContent(e), nil
				}
			}
			ea = entryNext(e)
		}
	}

	// Miss: store the content and insert a fresh entry.
	addr, err := d.parent.Store(dt.parentTag, data, align)
	if err != nil {
		return AddrNone, err
	}
	dt.stored += uint64(len(data))

	ea, err := d.entries.Alloc(dt.entriesTag, dedupEntrySize, 8)
	if err != nil {
		return AddrNone, err
	}
	e := d.entry(ea)
	binary.LittleEndian.PutUint64(e[0:], hash)
	binary.LittleEndian.PutUint32(e[8:], 1)
	binary.LittleEndian.PutUint32(e[12:], uint32(len(data)))
	binary.LittleEndian.PutUint64(e[16:], uint64(addr))

	bucket := hash & (1<<dt.bucketBits - 1)
	setEntryNext(e, dt.buckets[bucket])
	dt.buckets[bucket] = ea
	dt.bloomSet(hash)
	dt.count++

	if n := d.chainLen(dt, bucket); n > chainLimit(dt.bucketBits) {
		d.growTag(dt)
	}
	return addr, nil
}

func (d *Dedup) chainLen(dt *dedupTag, bucket uint64) int {
	n := 0
	for ea := dt.buckets[bucket]; ea != AddrNone; ea = entryNext(d.entry(ea)) {
		n++
	}
	return n
}

// growTag grows both dimensions by one bit and rehashes every entry;
// the rebuild also refreshes any stale bloom bits.
func (d *Dedup) growTag(dt *dedupTag) {
	old := dt.buckets
	dt.bucketBits++
	dt.bloomBits++
	dt.buckets = make([]Addr, 1<<dt.bucketBits)
	dt.bloom = make([]uint64, (1<<dt.bloomBits+63)/64)
	dt.bloomStale = false
	for _, head := range old {
		for ea := head; ea != AddrNone; {
			e := d.entry(ea)
			next := entryNext(e)
			hash := entryHash(e)
			bucket := hash & (1<<dt.bucketBits - 1)
			setEntryNext(e, dt.buckets[bucket])
			dt.buckets[bucket] = ea
			dt.bloomSet(hash)
			ea = next
		}
	}
}

func (d *Dedup) Storev(tag Tag, data [][]byte, align int) (Addr, error) {
	return storevFlatten(d, tag, data, align)
}

// Release decrements the reference count of deduplicated content; on
// reaching zero the entry is removed and the content freed. The bloom
// bit is left for deferred refresh at the next growth.
func (d *Dedup) Release(tag Tag, addr Addr, size int) {
	dt := d.tagData[tag]
	if dt == nil || size < d.threshold {
		return
	}
	content := d.parent.Resolve(addr, size)
	if content == nil {
		return
	}
	hash := xxhash.Sum64(content)
	bucket := hash & (1<<dt.bucketBits - 1)
	var prev Addr
	for ea := dt.buckets[bucket]; ea != AddrNone; {
		e := d.entry(ea)
		if entryContent(e) == addr {
			refs := entryRefs(e)
			if refs > 1 {
				setEntryRefs(e, refs-1)
				return
			}
			if prev == AddrNone {
				dt.buckets[bucket] = entryNext(e)
			} else {
				setEntryNext(d.entry(prev), entryNext(e))
			}
			d.entries.Free(dt.entriesTag, ea)
			d.parent.Free(dt.parentTag, addr)
			dt.count--
			dt.bloomStale = true
			return
		}
		prev = ea
		ea = entryNext(e)
	}
}

func (d *Dedup) Resolve(addr Addr, size int) []byte {
	return d.parent.Resolve(addr, size)
}

func (d *Dedup) GetTag() (Tag, error) {
	id, ok := d.tags.Alloc()
	if !ok {
		return TagNone, ErrNoTags
	}
	parentTag, err := d.parent.GetTag()
	if err != nil {
		d.tags.Free(id)
		return TagNone, err
	}
	entriesTag, err := d.entries.GetTag()
	if err != nil {
		d.parent.ReleaseTag(parentTag)
		d.tags.Free(id)
		return TagNone, err
	}
	tag := Tag(id)
	d.tagData[tag] = &dedupTag{
		parentTag:  parentTag,
		entriesTag: entriesTag,
		bloomBits:  d.initBloomBits,
		bucketBits: d.initBucketBits,
		bloom:      make([]uint64, (1<<d.initBloomBits+63)/64),
		buckets:    make([]Addr, 1<<d.initBucketBits),
	}
	return tag, nil
}

func (d *Dedup) ReleaseTag(tag Tag) {
	dt := d.tagData[tag]
	if dt == nil {
		return
	}
	d.parent.ReleaseTag(dt.parentTag)
	d.entries.ReleaseTag(dt.entriesTag)
	delete(d.tagData, tag)
	d.tags.Free(int(tag))
}

func (d *Dedup) TrimTag(tag Tag) {
	if dt := d.tagData[tag]; dt != nil {
		d.parent.TrimTag(dt.parentTag)
		d.entries.TrimTag(dt.entriesTag)
	}
}

func (d *Dedup) ResetTag(tag Tag) {
	dt := d.tagData[tag]
	if dt == nil {
		return
	}
	d.parent.ResetTag(dt.parentTag)
	d.entries.ResetTag(dt.entriesTag)
	dt.bloom = make([]uint64, (1<<dt.bloomBits+63)/64)
	dt.buckets = make([]Addr, 1<<dt.bucketBits)
	dt.bloomStale = false
	dt.count = 0
}

// Counters reports the byte totals of a tag: content handed to the
// parent and content saved by deduplication.
func (d *Dedup) Counters(tag Tag) (stored, dupSaved uint64) {
	if dt := d.tagData[tag]; dt != nil {
		return dt.stored, dt.dupSaved
	}
	return 0, 0
}

func (d *Dedup) GetInfo() *Info {
	return d.parent.GetInfo()
}

// GetSingleArea fails once any deduplication entries exist; the
// content cannot be promised contiguous across sub-allocators.
func (d *Dedup) GetSingleArea(tag Tag) (Addr, []byte, error) {
	dt := d.tagData[tag]
	if dt == nil {
		return AddrNone, nil, ErrBadTag
	}
	if dt.count > 0 {
		return AddrNone, nil, ErrNotSingleArea
	}
	return d.parent.GetSingleArea(dt.parentTag)
}

func (d *Dedup) Dump(w io.Writer) {
	dumpInfo(w, d.Name(), d.GetInfo())
	d.entries.Dump(w)
}

func (d *Dedup) Destroy() {
	for tag := range d.tagData {
		d.ReleaseTag(tag)
	}
	d.entries.Destroy()
	if d.ownParent {
		d.parent.Destroy()
	}
}
