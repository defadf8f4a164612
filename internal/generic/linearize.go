//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"encoding/binary"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
)

// Snapshot is a value tree in a single contiguous region, detached
// from any allocator. It resolves addresses against its own bytes and
// can be persisted and reloaded, relocating when the base moves.
type Snapshot struct {
	base alloc.Addr
	data []byte
	root Value

	mapped mmap.MMap // set when the data is a private file mapping.
}

func (s *Snapshot) Root() Value      { return s.root }
func (s *Snapshot) Base() alloc.Addr { return s.base }
func (s *Snapshot) Size() int        { return len(s.data) }

func (s *Snapshot) Resolve(addr alloc.Addr, size int) []byte {
	off := int64(addr) - int64(s.base)
	if off < 0 || off+int64(size) > int64(len(s.data)) {
		return nil
	}
	return s.data[off : off+int64(size)]
}

// Close unmaps file backed snapshots.
func (s *Snapshot) Close() error {
	if s.mapped != nil {
		m := s.mapped
		s.mapped = nil
		s.data = nil
		return m.Unmap()
	}
	s.data = nil
	return nil
}

// Linearize deep copies a value into a single contiguous arena and
// returns it as a snapshot. The first attempt copies into a growable
// arena; when that ends up multi arena, the exact size is now known
// and a second copy into a right sized buffer is performed.
func Linearize(src Resolver, v Value) (*Snapshot, error) {
	m, err := alloc.NewMremap(&alloc.Config{})
	if err != nil {
		return nil, err
	}
	defer m.Destroy()
	tag, err := m.GetTag()
	if err != nil {
		return nil, err
	}
	root, err := NewBuilder(m, tag).Copy(src, v)
	if err != nil {
		return nil, err
	}

	base, data, err := m.GetSingleArea(tag)
	if err == nil {
		return snapshotClone(base, data, root), nil
	}

	// Multi arena fallback: size a linear buffer from the totals.
	var used uint64
	for _, ti := range m.GetInfo().Tags {
		if ti.Tag == tag {
			used = ti.Used
		}
	}
	l, err := alloc.NewLinear(&alloc.Config{Size: int(used) + 64})
	if err != nil {
		return nil, err
	}
	defer l.Destroy()
	ltag, err := l.GetTag()
	if err != nil {
		return nil, err
	}
	root, err = NewBuilder(l, ltag).Copy(m, root)
	if err != nil {
		return nil, err
	}
	base, data, err = l.GetSingleArea(ltag)
	if err != nil {
		return nil, err
	}
	return snapshotClone(base, data, root), nil
}

func snapshotClone(base alloc.Addr, data []byte, root Value) *Snapshot {
	clone := make([]byte, len(data))
	copy(clone, data)
	return &Snapshot{base: base, data: clone, root: root}
}

// Cache blob layout: 8 bytes original base, 8 bytes root word, arena
// contents verbatim.
const cacheHeaderSize = 16

// SaveCache serializes the snapshot into the persisted cache format.
func (s *Snapshot) SaveCache() []byte {
	blob := make([]byte, cacheHeaderSize+len(s.data))
	binary.LittleEndian.PutUint64(blob[0:], uint64(s.base))
	binary.LittleEndian.PutUint64(blob[8:], uint64(s.root))
	copy(blob[cacheHeaderSize:], s.data)
	return blob
}

// SaveCacheFile writes the cache blob to a file.
func (s *Snapshot) SaveCacheFile(path string) error {
	return errors.Wrap(os.WriteFile(path, s.SaveCache(), 0o644), "cache write")
}

// LoadCache revives a cache blob. With atBase zero the snapshot is
// placed at its original base and no pointer needs rewriting; with a
// different base the loader relocates in place by the delta.
func LoadCache(blob []byte, atBase alloc.Addr) (*Snapshot, error) {
	s, err := loadCacheBytes(blob, atBase, nil)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func loadCacheBytes(blob []byte, atBase alloc.Addr, mapped mmap.MMap) (*Snapshot, error) {
	if len(blob) < cacheHeaderSize {
		return nil, errors.New("cache blob truncated")
	}
	storedBase := alloc.Addr(binary.LittleEndian.Uint64(blob[0:]))
	root := Value(binary.LittleEndian.Uint64(blob[8:]))
	data := blob[cacheHeaderSize:]

	s := &Snapshot{base: storedBase, data: data, root: root, mapped: mapped}
	if atBase != alloc.AddrNone && atBase != storedBase {
		delta := uint64(atBase) - uint64(storedBase)
		s.root = Relocate(data, storedBase, root, delta)
		s.base = atBase
	}
	return s, nil
}

// LoadCacheFile maps a cache file copy-on-write so relocation can
// rewrite pointers without touching the file. disableMmap falls back
// to reading the file into memory.
func LoadCacheFile(path string, atBase alloc.Addr, disableMmap bool) (*Snapshot, error) {
	if disableMmap {
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "cache read")
		}
		return LoadCache(blob, atBase)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cache open")
	}
	defer f.Close()
	m, err := mmap.Map(f, mmap.COPY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "cache mmap")
	}
	s, err := loadCacheBytes(m, atBase, m)
	if err != nil {
		_ = m.Unmap()
		return nil, err
	}
	return s, nil
}
