//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	a, err := alloc.NewMremap(&alloc.Config{})
	require.NoError(t, err)
	t.Cleanup(a.Destroy)
	tag, err := a.GetTag()
	require.NoError(t, err)
	return NewBuilder(a, tag)
}

func TestInplaceForms(t *testing.T) {
	v, ok := InplaceInt(42)
	require.True(t, ok)
	require.True(t, Inplace(v))
	i, ok := GetInt(nil, v)
	require.True(t, ok)
	require.Equal(t, int64(42), i)

	v, ok = InplaceInt(-1)
	require.True(t, ok)
	i, _ = GetInt(nil, v)
	require.Equal(t, int64(-1), i)

	_, ok = InplaceInt(int64(1) << 60)
	require.False(t, ok)
	v, ok = InplaceInt(int64(1)<<60 - 1)
	require.True(t, ok)
	i, _ = GetInt(nil, v)
	require.Equal(t, int64(1)<<60-1, i)

	require.Equal(t, TypeNull, TypeOf(Null))
	require.Equal(t, TypeBool, TypeOf(True))
	require.Equal(t, TypeInvalid, TypeOf(Invalid))
}

func TestBuilderScalars(t *testing.T) {
	b := newTestBuilder(t)

	// Small ints stay in the word, big ones go out of line.
	small, err := b.CreateInt(123456)
	require.NoError(t, err)
	require.True(t, Inplace(small))
	big, err := b.CreateInt(math.MaxInt64)
	require.NoError(t, err)
	require.False(t, Inplace(big))
	i, ok := GetInt(b, big)
	require.True(t, ok)
	require.Equal(t, int64(math.MaxInt64), i)

	// Floats representable as float32 stay in the word.
	f32, err := b.CreateFloat(0.5)
	require.NoError(t, err)
	require.True(t, Inplace(f32))
	f64, err := b.CreateFloat(0.1)
	require.NoError(t, err)
	require.False(t, Inplace(f64))
	f, ok := GetFloat(b, f64)
	require.True(t, ok)
	require.Equal(t, 0.1, f)

	// Strings up to 7 bytes stay in the word.
	short, err := b.CreateString([]byte("short"))
	require.NoError(t, err)
	require.True(t, Inplace(short))
	s, ok := GetString(b, short)
	require.True(t, ok)
	require.Equal(t, []byte("short"), s)

	long, err := b.CreateString([]byte("a considerably longer string"))
	require.NoError(t, err)
	require.False(t, Inplace(long))
	s, ok = GetString(b, long)
	require.True(t, ok)
	require.Equal(t, []byte("a considerably longer string"), s)

	empty, err := b.CreateString(nil)
	require.NoError(t, err)
	s, ok = GetString(b, empty)
	require.True(t, ok)
	require.Empty(t, s)
}

func TestBuilderCollections(t *testing.T) {
	b := newTestBuilder(t)

	one, _ := b.CreateInt(1)
	two, _ := b.CreateInt(2)
	seq, err := b.CreateSequence([]Value{one, two})
	require.NoError(t, err)
	require.Equal(t, TypeSequence, TypeOf(seq))
	items, ok := SequenceItems(b, seq)
	require.True(t, ok)
	require.Len(t, items, 2)
	require.Equal(t, one, items[0])

	key, _ := b.CreateString([]byte("answer"))
	m, err := b.CreateMapping([]Value{key, two})
	require.NoError(t, err)
	require.Equal(t, TypeMapping, TypeOf(m))
	got, ok := MappingGet(b, m, b, key)
	require.True(t, ok)
	require.Equal(t, two, got)

	emptySeq, err := b.CreateSequence(nil)
	require.NoError(t, err)
	items, ok = SequenceItems(b, emptySeq)
	require.True(t, ok)
	require.Empty(t, items)
}

func TestIndirectAndAlias(t *testing.T) {
	b := newTestBuilder(t)

	inner, _ := b.CreateString([]byte("payload"))
	anchor, _ := b.CreateString([]byte("a"))
	tag, _ := b.CreateString([]byte("!custom"))
	ind, err := b.CreateIndirect(inner, anchor, tag)
	require.NoError(t, err)
	require.Equal(t, TypeIndirect, TypeOf(ind))

	v, a, tg, ok := IndirectParts(b, ind)
	require.True(t, ok)
	require.Equal(t, inner, v)
	require.Equal(t, anchor, a)
	require.Equal(t, tag, tg)
	require.Equal(t, inner, IndirectValue(b, ind))

	al, err := b.CreateAlias([]byte("target"))
	require.NoError(t, err)
	require.Equal(t, TypeAlias, TypeOf(al))
	name, ok := AliasName(b, al)
	require.True(t, ok)
	require.Equal(t, []byte("target"), name)
}

func TestAliasAfterEqualString(t *testing.T) {
	// The balanced Auto allocator deduplicates content. An alias
	// record and a plain string with the same bytes share content
	// only when the shared copy also satisfies the alias alignment.
	a, err := alloc.NewAuto(&alloc.Config{Scenario: alloc.SCENARIO_BALANCED})
	require.NoError(t, err)
	t.Cleanup(a.Destroy)
	tag, err := a.GetTag()
	require.NoError(t, err)
	b := NewBuilder(a, tag)

	_, err = b.CreateInt(math.MaxInt64)
	require.NoError(t, err)

	name := []byte("alias-anchor-xx")
	s, err := b.CreateString(name)
	require.NoError(t, err)
	got, ok := GetString(b, s)
	require.True(t, ok)
	require.Equal(t, name, got)

	al, err := b.CreateAlias(name)
	require.NoError(t, err)
	require.Equal(t, TypeAlias, TypeOf(al))
	got, ok = AliasName(b, al)
	require.True(t, ok)
	require.Equal(t, name, got)
}

func TestCompare(t *testing.T) {
	b := newTestBuilder(t)

	i1, _ := b.CreateInt(1)
	i2, _ := b.CreateInt(2)
	require.Equal(t, 0, Compare(b, i1, b, i1))
	require.Equal(t, -1, Compare(b, i1, b, i2))
	require.Equal(t, 1, Compare(b, i2, b, i1))

	sa, _ := b.CreateString([]byte("abc"))
	sb, _ := b.CreateString([]byte("abd"))
	require.Equal(t, -1, Compare(b, sa, b, sb))

	// Inplace and out of line forms of the same number compare equal.
	bigA, _ := b.CreateInt(int64(1) << 61)
	bigB, _ := b.CreateInt(int64(1) << 61)
	require.Equal(t, 0, Compare(b, bigA, b, bigB))

	seqA, _ := b.CreateSequence([]Value{i1, i2})
	seqB, _ := b.CreateSequence([]Value{i1, i2})
	seqC, _ := b.CreateSequence([]Value{i2, i1})
	require.Equal(t, 0, Compare(b, seqA, b, seqB))
	require.NotEqual(t, 0, Compare(b, seqA, b, seqC))

	// Mapping comparison is key based, not positional.
	ka, _ := b.CreateString([]byte("a"))
	kb, _ := b.CreateString([]byte("b"))
	m1, _ := b.CreateMapping([]Value{ka, i1, kb, i2})
	m2, _ := b.CreateMapping([]Value{kb, i2, ka, i1})
	m3, _ := b.CreateMapping([]Value{ka, i2, kb, i1})
	require.Equal(t, 0, Compare(b, m1, b, m2))
	require.NotEqual(t, 0, Compare(b, m1, b, m3))
}

func TestClassifyScalar(t *testing.T) {
	tests := []struct {
		text   string
		schema Schema
		want   Scalar
	}{
		{"", SCHEMA_CORE, Scalar{Type: TypeNull}},
		{"~", SCHEMA_CORE, Scalar{Type: TypeNull}},
		{"null", SCHEMA_CORE, Scalar{Type: TypeNull}},
		{"true", SCHEMA_CORE, Scalar{Type: TypeBool, Bool: true}},
		{"False", SCHEMA_CORE, Scalar{Type: TypeBool}},
		{"123", SCHEMA_CORE, Scalar{Type: TypeInt, Int: 123}},
		{"-7", SCHEMA_CORE, Scalar{Type: TypeInt, Int: -7}},
		{"0x1f", SCHEMA_CORE, Scalar{Type: TypeInt, Int: 31}},
		{"0o17", SCHEMA_CORE, Scalar{Type: TypeInt, Int: 15}},
		{"9223372036854775807", SCHEMA_CORE, Scalar{Type: TypeInt, Int: math.MaxInt64}},
		{"-9223372036854775808", SCHEMA_CORE, Scalar{Type: TypeInt, Int: math.MinInt64}},
		{"1.5", SCHEMA_CORE, Scalar{Type: TypeFloat, Float: 1.5}},
		{"1e3", SCHEMA_CORE, Scalar{Type: TypeFloat, Float: 1000}},
		{".inf", SCHEMA_CORE, Scalar{Type: TypeFloat, Float: math.Inf(1)}},
		{"-.inf", SCHEMA_CORE, Scalar{Type: TypeFloat, Float: math.Inf(-1)}},
		{"hello", SCHEMA_CORE, Scalar{Type: TypeString}},
		{"12abc", SCHEMA_CORE, Scalar{Type: TypeString}},

		// 1.1 bool variants only apply under the 1.1 schema.
		{"yes", SCHEMA_CORE, Scalar{Type: TypeString}},
		{"yes", SCHEMA_YAML_1_1, Scalar{Type: TypeBool, Bool: true}},
		{"off", SCHEMA_YAML_1_1, Scalar{Type: TypeBool}},

		// Leading-zero octal is a 1.1 form only.
		{"0777", SCHEMA_CORE, Scalar{Type: TypeInt, Int: 777}},
		{"0777", SCHEMA_YAML_1_1, Scalar{Type: TypeInt, Int: 511}},
		{"-010", SCHEMA_YAML_1_1, Scalar{Type: TypeInt, Int: -8}},
		{"09", SCHEMA_YAML_1_1, Scalar{Type: TypeString}},

		// JSON takes only canonical forms.
		{"~", SCHEMA_JSON, Scalar{Type: TypeString}},
		{"True", SCHEMA_JSON, Scalar{Type: TypeString}},
		{"true", SCHEMA_JSON, Scalar{Type: TypeBool, Bool: true}},
		{"0123", SCHEMA_JSON, Scalar{Type: TypeString}},
		{"-12", SCHEMA_JSON, Scalar{Type: TypeInt, Int: -12}},
		{"1.25e2", SCHEMA_JSON, Scalar{Type: TypeFloat, Float: 125}},
	}
	for _, tt := range tests {
		got := ClassifyScalar([]byte(tt.text), tt.schema)
		require.Equal(t, tt.want, got, "text %q schema %d", tt.text, tt.schema)
	}
}

func buildTree(t *testing.T, b *Builder) Value {
	t.Helper()
	name, err := b.CreateString([]byte("a string long enough to be stored out of line"))
	require.NoError(t, err)
	n, err := b.CreateInt(math.MinInt64)
	require.NoError(t, err)
	f, err := b.CreateFloat(2.718281828)
	require.NoError(t, err)
	seq, err := b.CreateSequence([]Value{name, n, f, True, Null})
	require.NoError(t, err)
	k1, err := b.CreateString([]byte("items"))
	require.NoError(t, err)
	k2, err := b.CreateString([]byte("count"))
	require.NoError(t, err)
	count, err := b.CreateInt(5)
	require.NoError(t, err)
	m, err := b.CreateMapping([]Value{k1, seq, k2, count})
	require.NoError(t, err)
	return m
}

func TestLinearizeAndCache(t *testing.T) {
	b := newTestBuilder(t)
	root := buildTree(t, b)

	snap, err := Linearize(b, root)
	require.NoError(t, err)
	defer snap.Close()
	require.Equal(t, 0, Compare(b, root, snap, snap.Root()))

	blob := snap.SaveCache()

	// Reload at the original base; no relocation happens.
	same, err := LoadCache(append([]byte(nil), blob...), alloc.AddrNone)
	require.NoError(t, err)
	require.Equal(t, snap.Base(), same.Base())
	require.Equal(t, 0, Compare(b, root, same, same.Root()))

	// Reload at a shifted base; every pointer is rewritten.
	moved, err := LoadCache(append([]byte(nil), blob...), snap.Base()+0x10000)
	require.NoError(t, err)
	require.Equal(t, snap.Base()+0x10000, moved.Base())
	require.Equal(t, 0, Compare(b, root, moved, moved.Root()))
}

func TestCacheFileRoundTrip(t *testing.T) {
	b := newTestBuilder(t)
	root := buildTree(t, b)

	snap, err := Linearize(b, root)
	require.NoError(t, err)
	defer snap.Close()

	path := filepath.Join(t.TempDir(), "doc.fyc")
	require.NoError(t, snap.SaveCacheFile(path))

	for _, disableMmap := range []bool{false, true} {
		loaded, err := LoadCacheFile(path, snap.Base()+0x40000, disableMmap)
		require.NoError(t, err)
		require.Equal(t, 0, Compare(b, root, loaded, loaded.Root()))
		require.NoError(t, loaded.Close())
	}

	_, err = LoadCache([]byte("short"), alloc.AddrNone)
	require.Error(t, err)
}

func TestBuilderCopy(t *testing.T) {
	src := newTestBuilder(t)
	dst := newTestBuilder(t)

	root := buildTree(t, src)
	anchor, _ := src.CreateString([]byte("a"))
	wrapped, err := src.CreateIndirect(root, anchor, Null)
	require.NoError(t, err)

	copied, err := dst.Copy(src, wrapped)
	require.NoError(t, err)
	require.Equal(t, 0, Compare(src, wrapped, dst, copied))
}
