//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"encoding/binary"
	"math"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
)

// Builder constructs generic values inside one allocator tag. Out of
// line payloads go through Store so a deduplicating allocator shares
// identical content transparently.
type Builder struct {
	a   alloc.Allocator
	tag alloc.Tag
}

func NewBuilder(a alloc.Allocator, tag alloc.Tag) *Builder {
	return &Builder{a: a, tag: tag}
}

func (b *Builder) Allocator() alloc.Allocator { return b.a }
func (b *Builder) Tag() alloc.Tag             { return b.tag }

// Resolve makes the builder a Resolver for its own values.
func (b *Builder) Resolve(addr alloc.Addr, size int) []byte {
	return b.a.Resolve(addr, size)
}

func (b *Builder) CreateNull() Value { return Null }

func (b *Builder) CreateBool(v bool) Value {
	if v {
		return True
	}
	return False
}

func (b *Builder) CreateInt(i int64) (Value, error) {
	if i >= minInplaceInt && i <= maxInplaceInt {
		return Value(uint64(i)<<3) | vTagIntInplace, nil
	}
	var payload [8]byte
	binary.LittleEndian.PutUint64(payload[:], uint64(i))
	addr, err := b.a.Store(b.tag, payload[:], 16)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagNumberOut, nil
}

func (b *Builder) CreateFloat(f float64) (Value, error) {
	if f32 := float32(f); float64(f32) == f || math.IsNaN(f) {
		return Value(math.Float32bits(float32(f)))<<32 | vTagFloatInplace, nil
	}
	var payload [8]byte
	binary.LittleEndian.PutUint64(payload[:], math.Float64bits(f))
	addr, err := b.a.Store(b.tag, payload[:], 16)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagNumberOut | vSubBit, nil
}

func (b *Builder) CreateString(s []byte) (Value, error) {
	if len(s) <= maxInplaceStringLen {
		v := Value(len(s))<<3 | vTagStringInplace
		for i, c := range s {
			v |= Value(c) << (8 * uint(i+1))
		}
		return v, nil
	}
	addr, err := b.storeString(s)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagStringOut, nil
}

// storeString writes the varlen size prefix, the bytes and a
// terminating NUL, so the text reads back C style in O(1).
func (b *Builder) storeString(s []byte) (alloc.Addr, error) {
	var prefix [alloc.MaxVarLen64]byte
	n := alloc.PutVarLen(prefix[:], uint64(len(s)))
	return b.a.Storev(b.tag, [][]byte{prefix[:n], s, {0}}, 8)
}

// CreateSequence lays out (count, items...) contiguously, 16 byte
// aligned so the bottom 4 bits of the pointer stay free.
func (b *Builder) CreateSequence(items []Value) (Value, error) {
	addr, err := b.storeCollection(items, 1)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagCollection, nil
}

// CreateMapping takes flattened key/value pairs.
func (b *Builder) CreateMapping(pairs []Value) (Value, error) {
	addr, err := b.storeCollection(pairs, 2)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagCollection | vSubBit, nil
}

func (b *Builder) storeCollection(words []Value, stride int) (alloc.Addr, error) {
	payload := make([]byte, 8+len(words)*8)
	binary.LittleEndian.PutUint64(payload, uint64(len(words)/stride))
	for i, w := range words {
		binary.LittleEndian.PutUint64(payload[8+i*8:], uint64(w))
	}
	return b.a.Store(b.tag, payload, 16)
}

// CreateAlias preserves an unresolved alias as a value carrying the
// anchor name.
func (b *Builder) CreateAlias(anchor []byte) (Value, error) {
	var prefix [alloc.MaxVarLen64]byte
	n := alloc.PutVarLen(prefix[:], uint64(len(anchor)))
	addr, err := b.a.Storev(b.tag, [][]byte{prefix[:n], anchor, {0}}, 16)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagIndirect | vSubBit, nil
}

// CreateIndirect wraps a value with anchor/tag metadata slots.
func (b *Builder) CreateIndirect(v, anchor, tag Value) (Value, error) {
	var payload [24]byte
	binary.LittleEndian.PutUint64(payload[0:], uint64(v))
	binary.LittleEndian.PutUint64(payload[8:], uint64(anchor))
	binary.LittleEndian.PutUint64(payload[16:], uint64(tag))
	addr, err := b.a.Store(b.tag, payload[:], 16)
	if err != nil {
		return Invalid, err
	}
	return Value(addr) | vTagIndirect, nil
}

// Copy deep copies a value built by src into this builder, rewriting
// out of place payloads into the destination arena.
func (b *Builder) Copy(src Resolver, v Value) (Value, error) {
	if Inplace(v) {
		return v, nil
	}
	switch TypeOf(v) {
	case TypeInt:
		i, _ := GetInt(src, v)
		return b.CreateInt(i)
	case TypeFloat:
		f, _ := GetFloat(src, v)
		return b.CreateFloat(f)
	case TypeString:
		s, _ := GetString(src, v)
		return b.CreateString(s)
	case TypeSequence:
		items, _ := SequenceItems(src, v)
		out := make([]Value, len(items))
		for i, it := range items {
			c, err := b.Copy(src, it)
			if err != nil {
				return Invalid, err
			}
			out[i] = c
		}
		return b.CreateSequence(out)
	case TypeMapping:
		pairs, _ := MappingPairs(src, v)
		out := make([]Value, len(pairs))
		for i, it := range pairs {
			c, err := b.Copy(src, it)
			if err != nil {
				return Invalid, err
			}
			out[i] = c
		}
		return b.CreateMapping(out)
	case TypeAlias:
		name, _ := AliasName(src, v)
		return b.CreateAlias(name)
	case TypeIndirect:
		val, anchor, tag, _ := IndirectParts(src, v)
		cv, err := b.Copy(src, val)
		if err != nil {
			return Invalid, err
		}
		ca, err := b.Copy(src, anchor)
		if err != nil {
			return Invalid, err
		}
		ct, err := b.Copy(src, tag)
		if err != nil {
			return Invalid, err
		}
		return b.CreateIndirect(cv, ca, ct)
	}
	return Invalid, nil
}
