//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package fyh

// Character classification used by the scanner. The reader hands out
// decoded Unicode scalars, so these operate on runes; the sentinel
// values the reader produces (EOF et al) are negative and classify as
// nothing.

// EOF and decode sentinels returned by the reader peek operations.
const (
	EOF          rune = -1
	INVALID_UTF8 rune = -2
	PARTIAL_UTF8 rune = -3
)

func Is_alpha(c rune) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_' || c == '-'
}

func Is_digit(c rune) bool {
	return c >= '0' && c <= '9'
}

func As_digit(c rune) int {
	return int(c) - '0'
}

func Is_hex(c rune) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f'
}

func As_hex(c rune) int {
	switch {
	case c >= 'A' && c <= 'F':
		return int(c) - 'A' + 10
	case c >= 'a' && c <= 'f':
		return int(c) - 'a' + 10
	}
	return int(c) - '0'
}

func Is_space(c rune) bool { return c == ' ' }

func Is_tab(c rune) bool { return c == '\t' }

func Is_blank(c rune) bool { return c == ' ' || c == '\t' }

// Is_break_11 matches the YAML 1.1 line break set: LF, CR, NEL, LS, PS.
func Is_break_11(c rune) bool {
	return c == '\n' || c == '\r' || c == 0x85 || c == 0x2028 || c == 0x2029
}

// Is_break_12 matches the YAML 1.2 line break set: LF and CR only.
func Is_break_12(c rune) bool {
	return c == '\n' || c == '\r'
}

func Is_breakz_11(c rune) bool { return Is_break_11(c) || c == EOF }

func Is_blankz_11(c rune) bool { return Is_blank(c) || Is_breakz_11(c) }

// Is_flow_indicator matches the characters that terminate a plain
// scalar inside flow context.
func Is_flow_indicator(c rune) bool {
	return c == ',' || c == '[' || c == ']' || c == '{' || c == '}'
}

// Is_indicator matches any YAML indicator character.
func Is_indicator(c rune) bool {
	switch c {
	case '-', '?', ':', ',', '[', ']', '{', '}', '#', '&', '*', '!', '|', '>', '\'', '"', '%', '@', '`':
		return true
	}
	return false
}

// Is_uri_char matches characters allowed in tag URIs before % escapes.
func Is_uri_char(c rune) bool {
	if Is_alpha(c) {
		return true
	}
	switch c {
	case ';', '/', '?', ':', '@', '&', '=', '+', '$', ',', '.', '!', '~', '*', '\'', '(', ')', '[', ']', '%', '#':
		return true
	}
	return false
}

// Is_anchor_char matches characters allowed in anchor and alias names.
func Is_anchor_char(c rune) bool {
	if c <= ' ' || c == EOF || c == INVALID_UTF8 || c == PARTIAL_UTF8 {
		return false
	}
	return !Is_flow_indicator(c) && !Is_break_11(c)
}

// Is_printable matches the YAML allowed character set.
func Is_printable(c rune) bool {
	switch {
	case c == 0x09 || c == 0x0A || c == 0x0D:
		return true
	case c >= 0x20 && c <= 0x7E:
		return true
	case c == 0x85:
		return true
	case c >= 0xA0 && c <= 0xD7FF:
		return true
	case c >= 0xE000 && c <= 0xFFFD:
		return true
	case c >= 0x10000 && c <= 0x10FFFF:
		return true
	}
	return false
}

// Is_json_unescaped matches characters a JSON string may carry verbatim.
func Is_json_unescaped(c rune) bool {
	return c >= 0x20 && c != '"' && c != '\\'
}
