//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package generic implements the space efficient tagged value
// representation used to materialize decoded documents, the builder
// that constructs values inside an allocator tag, and the decoder
// binding the composer event stream to the builder.
package generic

import (
	"encoding/binary"
	"math"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
)

// Value is a machine word sized tagged representation. The bottom 3
// bits carry the primary tag; out of line forms borrow bit 3 for a
// subtype, which the 16 byte payload alignment keeps free.
type Value uint64

const (
	vTagMask = 0x7

	vTagSpecial       = 0 // null, booleans, invalid.
	vTagIntInplace    = 1 // signed 61-bit integer.
	vTagFloatInplace  = 2 // float32 in the high word.
	vTagStringInplace = 3 // up to 7 bytes, length in bits 3..5.
	vTagNumberOut     = 4 // bit 3: 0 int64, 1 float64.
	vTagStringOut     = 5 // varlen size prefix + bytes + NUL.
	vTagCollection    = 6 // bit 3: 0 sequence, 1 mapping.
	vTagIndirect      = 7 // bit 3: 0 indirect, 1 alias.

	vSubBit = 0x8

	vOutAddrMask = ^Value(0xf)
)

// Special values; equal types compare bit identical for inplace forms.
const (
	Null    Value = vTagSpecial | 0<<3
	False   Value = vTagSpecial | 1<<3
	True    Value = vTagSpecial | 2<<3
	Invalid Value = ^Value(0)
)

// Inplace encoding limits.
const (
	maxInplaceInt       = int64(1)<<60 - 1
	minInplaceInt       = -(int64(1) << 60)
	maxInplaceStringLen = 7
)

// Type is the logical type of a value.
type Type int

const (
	TypeInvalid Type = iota
	TypeNull
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeSequence
	TypeMapping
	TypeIndirect
	TypeAlias
)

var typeStrings = []string{
	TypeInvalid:  "invalid",
	TypeNull:     "null",
	TypeBool:     "bool",
	TypeInt:      "int",
	TypeFloat:    "float",
	TypeString:   "string",
	TypeSequence: "sequence",
	TypeMapping:  "mapping",
	TypeIndirect: "indirect",
	TypeAlias:    "alias",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeStrings) {
		return "<unknown type>"
	}
	return typeStrings[t]
}

// Resolver turns an out of line address into backing bytes. Builders
// resolve through their allocator; snapshots resolve into their blob.
type Resolver interface {
	Resolve(addr alloc.Addr, size int) []byte
}

// TypeOf returns the logical type of a value.
func TypeOf(v Value) Type {
	switch v & vTagMask {
	case vTagSpecial:
		switch v {
		case Null:
			return TypeNull
		case True, False:
			return TypeBool
		}
		return TypeInvalid
	case vTagIntInplace:
		return TypeInt
	case vTagFloatInplace:
		return TypeFloat
	case vTagStringInplace:
		return TypeString
	case vTagNumberOut:
		if v&vSubBit != 0 {
			return TypeFloat
		}
		return TypeInt
	case vTagStringOut:
		return TypeString
	case vTagCollection:
		if v&vSubBit != 0 {
			return TypeMapping
		}
		return TypeSequence
	case vTagIndirect:
		if v&vSubBit != 0 {
			return TypeAlias
		}
		return TypeIndirect
	}
	return TypeInvalid
}

// Inplace reports whether v carries its payload inside the word.
func Inplace(v Value) bool {
	switch v & vTagMask {
	case vTagSpecial, vTagIntInplace, vTagFloatInplace, vTagStringInplace:
		return true
	}
	return false
}

func outAddr(v Value) alloc.Addr {
	if (v & vTagMask) == vTagStringOut {
		// String addresses only need 8 byte alignment; bit 3 is part
		// of the address.
		return alloc.Addr(v &^ 0x7)
	}
	return alloc.Addr(v & vOutAddrMask)
}

// InplaceInt encodes a small integer without an allocator; ok is
// false when the value needs out of line storage.
func InplaceInt(i int64) (Value, bool) {
	if i < minInplaceInt || i > maxInplaceInt {
		return Invalid, false
	}
	return Value(uint64(i)<<3) | vTagIntInplace, true
}

// GetBool returns the boolean payload.
func GetBool(v Value) (bool, bool) {
	switch v {
	case True:
		return true, true
	case False:
		return false, true
	}
	return false, false
}

// GetInt returns the integer payload.
func GetInt(r Resolver, v Value) (int64, bool) {
	switch v & vTagMask {
	case vTagIntInplace:
		return int64(v) >> 3, true
	case vTagNumberOut:
		if v&vSubBit != 0 {
			return 0, false
		}
		b := r.Resolve(outAddr(v), 8)
		if b == nil {
			return 0, false
		}
		return int64(binary.LittleEndian.Uint64(b)), true
	}
	return 0, false
}

// GetFloat returns the float payload.
func GetFloat(r Resolver, v Value) (float64, bool) {
	switch v & vTagMask {
	case vTagFloatInplace:
		return float64(math.Float32frombits(uint32(v >> 32))), true
	case vTagNumberOut:
		if v&vSubBit == 0 {
			return 0, false
		}
		b := r.Resolve(outAddr(v), 8)
		if b == nil {
			return 0, false
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), true
	}
	return 0, false
}

// GetString returns the string payload. Inplace strings are unpacked
// into a fresh slice; out of line strings alias allocator storage.
func GetString(r Resolver, v Value) ([]byte, bool) {
	switch v & vTagMask {
	case vTagStringInplace:
		n := int(v >> 3 & 0x7)
		s := make([]byte, n)
		for i := 0; i < n; i++ {
			s[i] = byte(v >> (8 * uint(i+1)))
		}
		return s, true
	case vTagStringOut:
		return outString(r, outAddr(v))
	case vTagIndirect:
		if v&vSubBit != 0 {
			// Alias payload is the anchor name.
			return outString(r, outAddr(v))
		}
	}
	return nil, false
}

func outString(r Resolver, addr alloc.Addr) ([]byte, bool) {
	hdr := r.Resolve(addr, alloc.MaxVarLen64)
	if hdr == nil {
		// The string may sit at the very end of an arena; retry with
		// the smallest header that can decode.
		for n := alloc.MaxVarLen64 - 1; n > 0 && hdr == nil; n-- {
			hdr = r.Resolve(addr, n)
		}
		if hdr == nil {
			return nil, false
		}
	}
	size, n := alloc.GetVarLen(hdr)
	if n == 0 {
		return nil, false
	}
	full := r.Resolve(addr, n+int(size))
	if full == nil {
		return nil, false
	}
	return full[n : n+int(size)], true
}

// AliasName returns the anchor name of an alias value.
func AliasName(r Resolver, v Value) ([]byte, bool) {
	if v&vTagMask != vTagIndirect || v&vSubBit == 0 {
		return nil, false
	}
	return outString(r, outAddr(v))
}

// SequenceItems returns the item words of a sequence.
func SequenceItems(r Resolver, v Value) ([]Value, bool) {
	if v&vTagMask != vTagCollection || v&vSubBit != 0 {
		return nil, false
	}
	return collectionItems(r, outAddr(v), 1)
}

// MappingPairs returns the flattened key/value words of a mapping.
func MappingPairs(r Resolver, v Value) ([]Value, bool) {
	if v&vTagMask != vTagCollection || v&vSubBit == 0 {
		return nil, false
	}
	return collectionItems(r, outAddr(v), 2)
}

func collectionItems(r Resolver, addr alloc.Addr, stride int) ([]Value, bool) {
	hdr := r.Resolve(addr, 8)
	if hdr == nil {
		return nil, false
	}
	count := int(binary.LittleEndian.Uint64(hdr))
	words := count * stride
	body := r.Resolve(addr+8, words*8)
	if body == nil && words > 0 {
		return nil, false
	}
	items := make([]Value, words)
	for i := range items {
		items[i] = Value(binary.LittleEndian.Uint64(body[i*8:]))
	}
	return items, true
}

// IndirectParts returns the (value, anchor, tag) slots of an indirect.
func IndirectParts(r Resolver, v Value) (val, anchor, tag Value, ok bool) {
	if v&vTagMask != vTagIndirect || v&vSubBit != 0 {
		return Invalid, Invalid, Invalid, false
	}
	b := r.Resolve(outAddr(v), 24)
	if b == nil {
		return Invalid, Invalid, Invalid, false
	}
	return Value(binary.LittleEndian.Uint64(b[0:])),
		Value(binary.LittleEndian.Uint64(b[8:])),
		Value(binary.LittleEndian.Uint64(b[16:])), true
}

// IndirectValue chases indirects down to the underlying value.
func IndirectValue(r Resolver, v Value) Value {
	for TypeOf(v) == TypeIndirect {
		val, _, _, ok := IndirectParts(r, v)
		if !ok {
			return Invalid
		}
		v = val
	}
	return v
}
