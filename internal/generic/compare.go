//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import "bytes"

// Compare orders two values structurally: by type first, then by
// payload. Inplace forms of the same type compare bit identical, so
// the fast path is a word comparison. Mapping comparison is key based
// and order insensitive; sequence comparison is positional.
func Compare(ra Resolver, a Value, rb Resolver, b Value) int {
	if Inplace(a) && Inplace(b) && a == b {
		return 0
	}
	ta, tb := TypeOf(a), TypeOf(b)
	if ta != tb {
		if ta < tb {
			return -1
		}
		return 1
	}
	switch ta {
	case TypeInvalid, TypeNull:
		return 0
	case TypeBool:
		ba, _ := GetBool(a)
		bb, _ := GetBool(b)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case TypeInt:
		ia, _ := GetInt(ra, a)
		ib, _ := GetInt(rb, b)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	case TypeFloat:
		fa, _ := GetFloat(ra, a)
		fb, _ := GetFloat(rb, b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case TypeString:
		sa, _ := GetString(ra, a)
		sb, _ := GetString(rb, b)
		return bytes.Compare(sa, sb)
	case TypeAlias:
		na, _ := AliasName(ra, a)
		nb, _ := AliasName(rb, b)
		return bytes.Compare(na, nb)
	case TypeSequence:
		ia, _ := SequenceItems(ra, a)
		ib, _ := SequenceItems(rb, b)
		if c := compareLen(len(ia), len(ib)); c != 0 {
			return c
		}
		for i := range ia {
			if c := Compare(ra, ia[i], rb, ib[i]); c != 0 {
				return c
			}
		}
		return 0
	case TypeMapping:
		pa, _ := MappingPairs(ra, a)
		pb, _ := MappingPairs(rb, b)
		if c := compareLen(len(pa), len(pb)); c != 0 {
			return c
		}
		// Keys need not be in the same order; look each key of a up
		// in b.
		for i := 0; i < len(pa); i += 2 {
			bv, ok := mappingLookup(rb, pb, ra, pa[i])
			if !ok {
				return 1
			}
			if c := Compare(ra, pa[i+1], rb, bv); c != 0 {
				return c
			}
		}
		return 0
	case TypeIndirect:
		va, aa, tga, _ := IndirectParts(ra, a)
		vb, ab, tgb, _ := IndirectParts(rb, b)
		if c := Compare(ra, va, rb, vb); c != 0 {
			return c
		}
		if c := Compare(ra, aa, rb, ab); c != 0 {
			return c
		}
		return Compare(ra, tga, rb, tgb)
	}
	return 0
}

func compareLen(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func mappingLookup(r Resolver, pairs []Value, rk Resolver, key Value) (Value, bool) {
	for i := 0; i < len(pairs); i += 2 {
		if Compare(r, pairs[i], rk, key) == 0 {
			return pairs[i+1], true
		}
	}
	return Invalid, false
}

// MappingGet looks a key up in a mapping value.
func MappingGet(r Resolver, mapping Value, rk Resolver, key Value) (Value, bool) {
	pairs, ok := MappingPairs(r, mapping)
	if !ok {
		return Invalid, false
	}
	return mappingLookup(r, pairs, rk, key)
}

// MappingHasKey reports whether key is present in the flattened pairs.
func MappingHasKey(r Resolver, pairs []Value, rk Resolver, key Value) bool {
	_, ok := mappingLookup(r, pairs, rk, key)
	return ok
}
