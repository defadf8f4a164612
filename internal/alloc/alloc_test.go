//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdBitset(t *testing.T) {
	bs := NewIdBitset(130)

	for i := 0; i < 130; i++ {
		id, ok := bs.Alloc()
		require.True(t, ok)
		require.Equal(t, i, id)
	}
	_, ok := bs.Alloc()
	require.False(t, ok)
	require.Equal(t, 130, bs.Weight())

	bs.Free(64)
	require.False(t, bs.Test(64))
	id, ok := bs.Alloc()
	require.True(t, ok)
	require.Equal(t, 64, id)

	// Out of range frees are no-ops.
	bs.Free(-1)
	bs.Free(1000)
	require.Equal(t, 130, bs.Weight())
}

func TestIdBitsetNext(t *testing.T) {
	bs := NewIdBitset(200)
	for i := 0; i < 200; i++ {
		_, ok := bs.Alloc()
		require.True(t, ok)
	}
	want := []int{0, 63, 64, 127, 199}
	for i := 0; i < 200; i++ {
		keep := false
		for _, w := range want {
			keep = keep || w == i
		}
		if !keep {
			bs.Free(i)
		}
	}

	var got []int
	for id := bs.Next(0); id >= 0; id = bs.Next(id + 1) {
		got = append(got, id)
	}
	require.Equal(t, want, got)
	require.Equal(t, -1, bs.Next(200))
}

func TestVarLenRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7f, 0x80, 0x3fff, 0x4000,
		1 << 35, 1<<56 - 1, 1 << 56, math.MaxUint64,
	}
	for _, v := range values {
		buf := make([]byte, MaxVarLen64)
		n := PutVarLen(buf, v)
		require.Equal(t, VarLenSize(v), n, "value %#x", v)

		got, m := GetVarLen(buf[:n])
		require.Equal(t, n, m, "value %#x", v)
		require.Equal(t, v, got, "value %#x", v)

		// Truncated buffers must not decode.
		_, m = GetVarLen(buf[:n-1])
		require.Equal(t, 0, m, "value %#x", v)
	}
}

func TestLinearStoreResolve(t *testing.T) {
	l, err := NewLinear(&Config{Size: 4096})
	require.NoError(t, err)
	defer l.Destroy()

	tag, err := l.GetTag()
	require.NoError(t, err)

	data := []byte("hello, allocator")
	addr, err := l.Store(tag, data, 1)
	require.NoError(t, err)
	require.NotEqual(t, AddrNone, addr)
	require.Equal(t, data, l.Resolve(addr, len(data)))

	// Aligned allocations land on aligned addresses.
	a16, err := l.Alloc(tag, 32, 16)
	require.NoError(t, err)
	require.Zero(t, uint64(a16)%16)

	base, area, err := l.GetSingleArea(tag)
	require.NoError(t, err)
	off := int(uint64(addr) - uint64(base))
	require.Equal(t, data, area[off:off+len(data)])

	l.ResetTag(tag)
	addr2, err := l.Store(tag, data, 1)
	require.NoError(t, err)
	require.Equal(t, addr, addr2)

	l.ReleaseTag(tag)
}

func TestLinearExhaustion(t *testing.T) {
	l, err := NewLinear(&Config{Size: 64})
	require.NoError(t, err)
	defer l.Destroy()

	tag, err := l.GetTag()
	require.NoError(t, err)
	_, err = l.Alloc(tag, 1024, 1)
	require.ErrorIs(t, err, ErrNoSpace)
}

func TestMremapGrow(t *testing.T) {
	m, err := NewMremap(&Config{MinimumArenaSize: 4096})
	require.NoError(t, err)
	defer m.Destroy()

	tag, err := m.GetTag()
	require.NoError(t, err)

	// Push well past the first arena; every store stays resolvable.
	type stored struct {
		addr Addr
		data []byte
	}
	var all []stored
	for i := 0; i < 256; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 512+i)
		addr, err := m.Store(tag, data, 8)
		require.NoError(t, err)
		all = append(all, stored{addr, data})
	}
	for _, s := range all {
		require.Equal(t, s.data, m.Resolve(s.addr, len(s.data)))
	}

	info := m.GetInfo()
	require.Len(t, info.Tags, 1)
	require.Greater(t, len(info.Tags[0].Arenas), 1)

	m.TrimTag(tag)
	for _, s := range all {
		require.Equal(t, s.data, m.Resolve(s.addr, len(s.data)))
	}

	m.ResetTag(tag)
	require.Nil(t, m.Resolve(all[0].addr, len(all[0].data)))
}

func TestMremapBigAlloc(t *testing.T) {
	m, err := NewMremap(&Config{MinimumArenaSize: 4096, BigAllocThreshold: 1024})
	require.NoError(t, err)
	defer m.Destroy()

	tag, err := m.GetTag()
	require.NoError(t, err)

	small, err := m.Store(tag, []byte("small"), 1)
	require.NoError(t, err)
	big := bytes.Repeat([]byte("B"), 8192)
	bigAddr, err := m.Store(tag, big, 1)
	require.NoError(t, err)

	require.Equal(t, []byte("small"), m.Resolve(small, 5))
	require.Equal(t, big, m.Resolve(bigAddr, len(big)))
}

func TestMallocFree(t *testing.T) {
	m, err := NewMalloc(nil)
	require.NoError(t, err)
	defer m.Destroy()

	tag, err := m.GetTag()
	require.NoError(t, err)

	a1, err := m.Store(tag, []byte("one"), 1)
	require.NoError(t, err)
	a2, err := m.Store(tag, []byte("two"), 1)
	require.NoError(t, err)

	m.Free(tag, a1)
	require.Nil(t, m.Resolve(a1, 3))
	require.Equal(t, []byte("two"), m.Resolve(a2, 3))

	m.ReleaseTag(tag)
	require.Nil(t, m.Resolve(a2, 3))
}

func TestDedupSharing(t *testing.T) {
	d, err := NewDedup(&Config{})
	require.NoError(t, err)
	defer d.Destroy()

	tag, err := d.GetTag()
	require.NoError(t, err)

	content := []byte("the quick brown fox jumps over the lazy dog")
	a1, err := d.Store(tag, content, 1)
	require.NoError(t, err)
	a2, err := d.Store(tag, content, 1)
	require.NoError(t, err)
	require.Equal(t, a1, a2)
	require.Equal(t, content, d.Resolve(a1, len(content)))

	stored, dupSaved := d.Counters(tag)
	require.Equal(t, uint64(len(content)), stored)
	require.Equal(t, uint64(len(content)), dupSaved)

	other, err := d.Store(tag, []byte("something else entirely here"), 1)
	require.NoError(t, err)
	require.NotEqual(t, a1, other)

	// One release keeps the shared content alive, the second drops it.
	d.Release(tag, a1, len(content))
	require.Equal(t, content, d.Resolve(a1, len(content)))
	d.Release(tag, a1, len(content))
}

func TestDedupStoreAlignment(t *testing.T) {
	d, err := NewDedup(&Config{})
	require.NoError(t, err)
	defer d.Destroy()

	tag, err := d.GetTag()
	require.NoError(t, err)

	// Skew the parent bump pointer off 16-byte alignment.
	_, err = d.Store(tag, []byte("12345678"), 8)
	require.NoError(t, err)

	content := []byte("shared content, long enough to deduplicate")
	a1, err := d.Store(tag, content, 8)
	require.NoError(t, err)
	require.EqualValues(t, 8, uint64(a1)%16)

	// A 16-aligned request must not share the misaligned copy.
	a2, err := d.Store(tag, content, 16)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
	require.Zero(t, uint64(a2)%16)
	require.Equal(t, content, d.Resolve(a2, len(content)))

	// A compatible alignment still shares.
	a3, err := d.Store(tag, content, 8)
	require.NoError(t, err)
	require.Zero(t, uint64(a3)%8)
	require.Equal(t, content, d.Resolve(a3, len(content)))
}

func TestDedupManyKeys(t *testing.T) {
	d, err := NewDedup(&Config{BucketBits: 2})
	require.NoError(t, err)
	defer d.Destroy()

	tag, err := d.GetTag()
	require.NoError(t, err)

	// Forces bucket growth and chain walks.
	addrs := map[string]Addr{}
	for i := 0; i < 500; i++ {
		content := []byte(fmt.Sprintf("content %d padded to be long enough", i))
		addr, err := d.Store(tag, content, 1)
		require.NoError(t, err)
		addrs[string(content)] = addr
	}
	for content, addr := range addrs {
		again, err := d.Store(tag, []byte(content), 1)
		require.NoError(t, err)
		require.Equal(t, addr, again)
		require.Equal(t, []byte(content), d.Resolve(addr, len(content)))
	}
}

func TestAutoScenarios(t *testing.T) {
	for _, scenario := range []Scenario{
		SCENARIO_BALANCED, SCENARIO_FASTEST, SCENARIO_CONSERVE_MEMORY,
	} {
		a, err := NewAuto(&Config{Scenario: scenario})
		require.NoError(t, err)

		tag, err := a.GetTag()
		require.NoError(t, err)

		addr, err := a.Store(tag, []byte("payload"), 8)
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), a.Resolve(addr, 7))

		var buf bytes.Buffer
		a.Dump(&buf)
		require.NotEmpty(t, buf.String())

		a.ReleaseTag(tag)
		a.Destroy()
	}
}

func TestCreateRegistry(t *testing.T) {
	require.ElementsMatch(t, []string{"linear", "mremap", "malloc", "dedup", "auto"}, Backends())

	a, err := Create("linear", &Config{Size: 1024})
	require.NoError(t, err)
	require.Equal(t, "linear", a.Name())
	a.Destroy()

	_, err = Create("bogus", nil)
	require.Error(t, err)
}

func TestStorev(t *testing.T) {
	l, err := NewLinear(&Config{Size: 4096})
	require.NoError(t, err)
	defer l.Destroy()

	tag, err := l.GetTag()
	require.NoError(t, err)

	addr, err := l.Storev(tag, [][]byte{[]byte("abc"), []byte("def")}, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), l.Resolve(addr, 6))
}
