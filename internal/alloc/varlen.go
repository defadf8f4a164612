//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package alloc

// Variable length unsigned integer codec: 7 bits per byte with high bit
// continuation, terminating unconditionally at the maximum byte count
// (9 for 64-bit) where the final byte carries all 8 data bits.

// MaxVarLen64 is the worst case encoded size of a 64-bit value.
const MaxVarLen64 = 9

// VarLenSize returns the encoded size of v.
func VarLenSize(v uint64) int {
	n := 1
	for v >= 0x80 && n < MaxVarLen64 {
		v >>= 7
		n++
	}
	return n
}

// PutVarLen encodes v into buf and returns the number of bytes written.
// buf must be at least VarLenSize(v) long.
func PutVarLen(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 && i < MaxVarLen64-1 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	// Final byte: 8 data bits at the 9-byte boundary, 7 otherwise.
	buf[i] = byte(v)
	return i + 1
}

// GetVarLen decodes a value from buf, returning it and the number of
// bytes consumed; n == 0 means the buffer was truncated.
func GetVarLen(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if i == MaxVarLen64-1 {
			// Terminal byte carries all 8 bits, no continuation.
			v |= uint64(b) << shift
			return v, i + 1
		}
		if b < 0x80 {
			v |= uint64(b) << shift
			return v, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}
