//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package alloc implements the tiered allocator family: a linear bump
// allocator, a growable arena allocator, a tracking malloc wrapper, a
// content deduplicating filter and a policy driven auto composer.
//
// Allocations live in a process wide virtual address space: every arena
// occupies a unique address range, and an Addr is stable for the
// lifetime of its tag even when the backing storage is reallocated.
// Resolve turns an Addr back into backing bytes.
package alloc

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Tag identifies an allocation scope with an independent lifetime.
type Tag int

// TagNone is the invalid tag.
const TagNone Tag = -1

// Addr is a virtual address inside an allocator; 0 is the nil address.
type Addr uint64

// AddrNone is the nil address.
const AddrNone Addr = 0

// Common allocator errors.
var (
	ErrNoSpace       = errors.New("allocator: out of space")
	ErrNoTags        = errors.New("allocator: tag space exhausted")
	ErrBadTag        = errors.New("allocator: bad tag")
	ErrBadAddr       = errors.New("allocator: bad address")
	ErrNotSingleArea = errors.New("allocator: tag does not own a single arena")
)

// ArenaInfo describes one arena of a tag.
type ArenaInfo struct {
	Free  uint64
	Used  uint64
	Total uint64
	Base  Addr
	Size  uint64
}

// TagInfo describes a tag and its arenas.
type TagInfo struct {
	Tag    Tag
	Free   uint64
	Used   uint64
	Total  uint64
	Arenas []ArenaInfo
}

// Info describes an allocator.
type Info struct {
	Free  uint64
	Used  uint64
	Total uint64
	Tags  []TagInfo
}

// Allocator is the uniform interface all backends implement.
type Allocator interface {
	// Name returns the backend name ("linear", "mremap", ...).
	Name() string

	// Alloc returns size bytes aligned to align under the tag.
	Alloc(tag Tag, size, align int) (Addr, error)

	// Free releases an individual allocation where the backend
	// supports it; a no-op otherwise.
	Free(tag Tag, addr Addr)

	// Store copies data into the allocator and returns its address.
	// Backends with content deduplication may return a shared address.
	Store(tag Tag, data []byte, align int) (Addr, error)

	// Storev is the vectored form of Store.
	Storev(tag Tag, data [][]byte, align int) (Addr, error)

	// Release drops a reference where the backend counts them; a
	// no-op for bump backends.
	Release(tag Tag, addr Addr, size int)

	// Resolve returns the size backing bytes at addr, or nil when the
	// address is not live in this allocator.
	Resolve(addr Addr, size int) []byte

	// GetTag acquires a new allocation scope.
	GetTag() (Tag, error)

	// ReleaseTag frees every allocation under the tag.
	ReleaseTag(tag Tag)

	// TrimTag returns unused tail space to the system where possible.
	TrimTag(tag Tag)

	// ResetTag drops all content under the tag but keeps it usable.
	ResetTag(tag Tag)

	// GetInfo reports totals and per-tag arena details.
	GetInfo() *Info

	// GetSingleArea returns the contiguous backing region of a tag;
	// it fails unless the tag owns exactly one arena.
	GetSingleArea(tag Tag) (base Addr, data []byte, err error)

	// Dump writes a human readable report.
	Dump(w io.Writer)

	// Destroy releases all resources of the allocator.
	Destroy()
}

// The virtual address space. Arena base addresses are carved out of a
// monotonic counter, spaced so ranges never overlap; address 0 stays
// unused so AddrNone is never a valid allocation.
var addrSpace uint64 = 1 << 16

// reserveRange reserves span bytes of virtual address space.
func reserveRange(span uint64) Addr {
	span = (span + 0xfff) &^ uint64(0xfff)
	return Addr(atomic.AddUint64(&addrSpace, span) - span)
}

// alignUp rounds v up to align, which must be a power of two.
func alignUp(v uint64, align int) uint64 {
	if align <= 1 {
		return v
	}
	a := uint64(align)
	return (v + a - 1) &^ (a - 1)
}

// Factory creates an allocator from a configuration.
type Factory func(cfg *Config) (Allocator, error)

// Config carries the knobs of every backend; each backend reads the
// fields it understands and ignores the rest.
type Config struct {
	// Linear.
	Buffer []byte // optional preallocated buffer.
	Size   int    // capacity when Buffer is nil.

	// Mremap.
	BigAllocThreshold int     // allocations above it get their own arena.
	EmptyThreshold    int     // arenas with less free space are retired.
	MinimumArenaSize  int     // first arena size.
	GrowRatio         float64 // next arena multiplier.
	BalloonRatio      float64 // initial reservation factor.

	// Dedup.
	Parent          Allocator // content parent; nil creates an mremap one.
	DedupThreshold  int       // stores below it bypass deduplication.
	BloomFilterBits uint      // initial bloom filter bits.
	BucketBits      uint      // initial bucket count bits.

	// Auto.
	Scenario Scenario
}

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register installs a backend factory under a name. Registering a
// duplicate name panics; this runs from package init only.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic("alloc: duplicate backend " + name)
	}
	registry[name] = f
}

// Create instantiates a registered backend.
func Create(name string, cfg *Config) (Allocator, error) {
	registryMu.Lock()
	f, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, errors.Errorf("alloc: unknown backend %q", name)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return f(cfg)
}

// Backends returns the registered backend names.
func Backends() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func init() {
	Register("linear", func(cfg *Config) (Allocator, error) { return NewLinear(cfg) })
	Register("mremap", func(cfg *Config) (Allocator, error) { return NewMremap(cfg) })
	Register("malloc", func(cfg *Config) (Allocator, error) { return NewMalloc(cfg) })
	Register("dedup", func(cfg *Config) (Allocator, error) { return NewDedup(cfg) })
	Register("auto", func(cfg *Config) (Allocator, error) { return NewAuto(cfg) })
}

// dumpInfo is the shared Dump implementation.
func dumpInfo(w io.Writer, name string, info *Info) {
	fmt.Fprintf(w, "%s: total %s, used %s, free %s\n",
		name, humanize.IBytes(info.Total), humanize.IBytes(info.Used), humanize.IBytes(info.Free))
	for _, ti := range info.Tags {
		fmt.Fprintf(w, "  tag %d: total %s, used %s, free %s, %d arena(s)\n",
			ti.Tag, humanize.IBytes(ti.Total), humanize.IBytes(ti.Used), humanize.IBytes(ti.Free), len(ti.Arenas))
		for i, ai := range ti.Arenas {
			fmt.Fprintf(w, "    arena %d: base %#x size %s used %s\n",
				i, uint64(ai.Base), humanize.IBytes(ai.Size), humanize.IBytes(ai.Used))
		}
	}
}

// storevFlatten is the fallback vectored store for backends without a
// native one.
func storevFlatten(a Allocator, tag Tag, data [][]byte, align int) (Addr, error) {
	total := 0
	for _, d := range data {
		total += len(d)
	}
	flat := make([]byte, 0, total)
	for _, d := range data {
		flat = append(flat, d...)
	}
	return a.Store(tag, flat, align)
}
