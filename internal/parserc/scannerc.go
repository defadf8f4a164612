//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package parserc

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// The scanner turns the scalar stream into tokens:
//
//	STREAM-START
//	STREAM-END
//	VERSION-DIRECTIVE(major,minor)
//	TAG-DIRECTIVE(handle,prefix)
//	DOCUMENT-START
//	DOCUMENT-END
//	BLOCK-SEQUENCE-START
//	BLOCK-MAPPING-START
//	BLOCK-END
//	FLOW-SEQUENCE-START
//	FLOW-SEQUENCE-END
//	FLOW-MAPPING-START
//	FLOW-MAPPING-END
//	BLOCK-ENTRY
//	FLOW-ENTRY
//	KEY
//	VALUE
//	ALIAS(anchor)
//	ANCHOR(anchor)
//	TAG(handle,suffix)
//	SCALAR(value,style)
//	COMMENT(text)
//
// Block structure tokens (BLOCK-SEQUENCE-START, BLOCK-MAPPING-START,
// BLOCK-END, and the KEY token a trailing ':' retroactively inserts)
// have no printed form; the scanner synthesizes them from indentation
// and the simple key bookkeeping.

const (
	max_flow_level  = 10000
	max_indents     = 10000
	max_stuck_passes = 100
)

// version is the YAML version the scanner lexes under right now.
func (p *Parser) version() fyh.VersionDirective {
	if p.pendingVersion != nil {
		return *p.pendingVersion
	}
	if p.document != nil {
		return p.document.Version
	}
	switch p.cfg.DefaultVersion {
	case VERSION_1_1:
		return fyh.VersionDirective{Major: 1, Minor: 1}
	case VERSION_1_3:
		return fyh.VersionDirective{Major: 1, Minor: 3}
	}
	return fyh.DefaultVersion
}

// Break classification; YAML 1.1 treats NEL/LS/PS as breaks, 1.2 and
// later only LF and CR.
func (p *Parser) is_break(c rune) bool {
	if p.version().Major == 1 && p.version().Minor == 1 {
		return fyh.Is_break_11(c)
	}
	return fyh.Is_break_12(c)
}

// Negative scalars (EOF and the encoding error sentinels) terminate
// every token, so they classify as breakz.
func (p *Parser) is_breakz(c rune) bool { return c < 0 || p.is_break(c) }

func (p *Parser) is_blankz(c rune) bool { return fyh.Is_blank(c) || p.is_breakz(c) }

func (p *Parser) peek() rune        { return p.reader.Peek() }
func (p *Parser) peekAt(n int) rune { return p.reader.PeekAt(n) }
func (p *Parser) skip()             { p.reader.Advance() }
func (p *Parser) skipLine()         { p.reader.AdvanceLine() }
func (p *Parser) mark() fyh.Position { return p.reader.Mark() }

// readc appends the scalar under the cursor and advances.
func (p *Parser) readc(s []byte) []byte {
	c := p.reader.Peek()
	if c < 0 {
		return s
	}
	s = utf8.AppendRune(s, c)
	p.reader.Advance()
	return s
}

// readLine consumes a line break and appends its normalized form: CRLF,
// CR, LF and NEL become LF; LS and PS are kept verbatim.
func (p *Parser) readLine(s []byte) []byte {
	switch c := p.reader.Peek(); c {
	case '\r', '\n', 0x85:
		s = append(s, '\n')
	case 0x2028, 0x2029:
		s = utf8.AppendRune(s, c)
	default:
		return s
	}
	p.reader.AdvanceLine()
	return s
}

func fy_as_digit(c rune) int { return int(c - '0') }

func fy_as_hex(c rune) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// fy_scan_error reports through the diagnostic sink and makes the
// parser stuck.
func fy_scan_error(p *Parser, kind diag.Kind, ctx fyh.Position, problem string) error {
	e := &diag.Error{
		Kind:         kind,
		Module:       "scan",
		File:         p.reader.inputName(),
		Problem:      problem,
		Start_mark:   p.mark(),
		End_mark:     p.mark(),
		Context_mark: ctx,
	}
	p.diag.ReportError(e)
	p.fatal = e
	return e
}

// fy_insert_token appends a token, or inserts it at pos (relative to
// the queue head) when a simple key resolves retroactively.
func fy_insert_token(p *Parser, pos int, tok *fyh.Token) {
	if p.tokensHead > 0 && len(p.tokens) == cap(p.tokens) {
		if p.tokensHead != len(p.tokens) {
			copy(p.tokens, p.tokens[p.tokensHead:])
		}
		p.tokens = p.tokens[:len(p.tokens)-p.tokensHead]
		p.tokensHead = 0
	}
	p.tokens = append(p.tokens, tok)
	if pos < 0 {
		return
	}
	copy(p.tokens[p.tokensHead+pos+1:], p.tokens[p.tokensHead+pos:])
	p.tokens[p.tokensHead+pos] = tok
}

// fy_marker_token builds a token with no cooked text.
func fy_marker_token(p *Parser, typ fyh.TokenType, start, end fyh.Position) *fyh.Token {
	return fyh.NewToken(typ, fyh.Atom{
		Start_mark: start,
		End_mark:   end,
		Flags:      fyh.ATOM_SIZE0 | fyh.ATOM_EMPTY,
		Input:      p.reader.InputRef(),
	})
}

// fy_atom_flags classifies the cooked text against the raw source
// region so later stages can answer style questions in O(1).
func fy_atom_flags(value, raw []byte) uint32 {
	var f uint32
	if len(raw) == 0 {
		f |= fyh.ATOM_SIZE0
	}
	if len(value) == 0 {
		return f | fyh.ATOM_EMPTY
	}
	if bytes.Equal(value, raw) {
		f |= fyh.ATOM_DIRECT_OUTPUT
	}
	first, last := value[0], value[len(value)-1]
	if first == ' ' || first == '\t' {
		f |= fyh.ATOM_STARTS_WITH_WS
	}
	if first == '\n' {
		f |= fyh.ATOM_STARTS_WITH_LB
	}
	if last == ' ' || last == '\t' {
		f |= fyh.ATOM_ENDS_WITH_WS
	}
	if last == '\n' {
		f |= fyh.ATOM_ENDS_WITH_LB | fyh.ATOM_TRAILING_LB
	}
	if bytes.IndexByte(value, ' ') >= 0 || bytes.IndexByte(value, '\t') >= 0 {
		f |= fyh.ATOM_HAS_WS
	}
	if bytes.IndexByte(value, '\n') >= 0 {
		f |= fyh.ATOM_HAS_LB
	}
	anchor := true
	for _, c := range string(value) {
		if !fyh.Is_anchor_char(c) {
			anchor = false
			break
		}
	}
	if anchor {
		f |= fyh.ATOM_VALID_ANCHOR
	}
	return f
}

func fy_scalar_token(p *Parser, start, end fyh.Position, value []byte, style fyh.AtomStyle, chomp fyh.AtomChomp, increment int) *fyh.Token {
	raw := p.reader.SliceRange(start, end)
	return fyh.NewToken(fyh.SCALAR_TOKEN, fyh.Atom{
		Start_mark: start,
		End_mark:   end,
		Style:      style,
		Chomp:      chomp,
		Increment:  increment,
		Flags:      fy_atom_flags(value, raw),
		Value:      value,
		Input:      p.reader.InputRef(),
	})
}

// fy_fetch_more_tokens makes sure at least one token is available for
// the parser, fetching past potential simple keys so the head token is
// unambiguous.
func fy_fetch_more_tokens(p *Parser) error {
	for {
		if len(p.tokens)-p.tokensHead > 0 {
			idx, ok := p.simpleKeysByTok[p.tokensParsed]
			if !ok {
				break
			}
			valid, err := fy_simple_key_is_valid(p, &p.simpleKeys[idx])
			if err != nil {
				return err
			}
			if !valid {
				break
			}
		}

		before := len(p.tokens) - p.tokensHead
		offset := p.mark().Offset
		if err := fy_fetch_next_token(p); err != nil {
			return err
		}
		if len(p.tokens)-p.tokensHead == before && p.mark().Offset == offset {
			p.stuckCount++
			if p.stuckCount > max_stuck_passes {
				return fy_scan_error(p, diag.KIND_SCANNER_STUCK, p.mark(),
					"scanner is making no forward progress")
			}
		} else {
			p.stuckCount = 0
		}
	}
	p.tokenAvailable = true
	return nil
}

// The dispatcher for token fetchers.
func fy_fetch_next_token(p *Parser) error {
	// Check if we just started scanning.  Fetch STREAM-START then.
	if !p.streamStartProduced {
		fy_fetch_stream_start(p)
		return nil
	}

	// Eat whitespaces and comments until we reach the next token.
	if err := fy_scan_to_next_token(p); err != nil {
		return err
	}
	if err := p.reader.Err(); err != nil {
		return err
	}

	// Check the indentation level against the current column.
	fy_unroll_indent(p, p.mark().Column)

	c := p.peek()

	// Is it the end of the stream?
	if c == fyh.EOF {
		return fy_fetch_stream_end(p)
	}
	if c == fyh.INVALID_UTF8 {
		return fy_scan_error(p, diag.KIND_INVALID_UTF8, p.mark(), "invalid UTF-8 sequence in input")
	}
	if c == fyh.PARTIAL_UTF8 {
		return fy_scan_error(p, diag.KIND_PARTIAL_UTF8, p.mark(), "truncated UTF-8 sequence at end of input")
	}
	if !fyh.Is_printable(c) && !fyh.Is_blank(c) && !p.is_break(c) {
		return fy_scan_error(p, diag.KIND_CONTROL_CHARACTER, p.mark(),
			fmt.Sprintf("control character %#x is not allowed", c))
	}

	column0 := p.mark().Column == 0
	json := p.reader.JSONMode()

	// Is it a directive?
	if column0 && c == '%' {
		if json {
			return fy_scan_error(p, diag.KIND_JSON_VIOLATION, p.mark(), "directives are not allowed in JSON mode")
		}
		return fy_fetch_directive(p)
	}

	// Is it the document start indicator?
	if column0 && c == '-' && p.peekAt(1) == '-' && p.peekAt(2) == '-' && p.is_blankz(p.peekAt(3)) {
		return fy_fetch_document_indicator(p, fyh.DOCUMENT_START_TOKEN)
	}

	// Is it the document end indicator?
	if column0 && c == '.' && p.peekAt(1) == '.' && p.peekAt(2) == '.' && p.is_blankz(p.peekAt(3)) {
		return fy_fetch_document_indicator(p, fyh.DOCUMENT_END_TOKEN)
	}

	if json {
		switch c {
		case '&', '*':
			return fy_scan_error(p, diag.KIND_JSON_VIOLATION, p.mark(), "anchors and aliases are not allowed in JSON mode")
		case '!':
			return fy_scan_error(p, diag.KIND_JSON_VIOLATION, p.mark(), "tags are not allowed in JSON mode")
		case '|', '>':
			return fy_scan_error(p, diag.KIND_JSON_VIOLATION, p.mark(), "block scalars are not allowed in JSON mode")
		case '\'':
			return fy_scan_error(p, diag.KIND_JSON_VIOLATION, p.mark(), "single quoted scalars are not allowed in JSON mode")
		}
	}

	switch {
	case c == '[':
		return fy_fetch_flow_collection_start(p, fyh.FLOW_SEQUENCE_START_TOKEN)
	case c == '{':
		return fy_fetch_flow_collection_start(p, fyh.FLOW_MAPPING_START_TOKEN)
	case c == ']':
		return fy_fetch_flow_collection_end(p, fyh.FLOW_SEQUENCE_END_TOKEN)
	case c == '}':
		return fy_fetch_flow_collection_end(p, fyh.FLOW_MAPPING_END_TOKEN)
	case c == ',':
		return fy_fetch_flow_entry(p)
	case c == '-' && p.is_blankz(p.peekAt(1)):
		return fy_fetch_block_entry(p)
	case c == '?' && (p.flowLevel > 0 || p.is_blankz(p.peekAt(1))):
		return fy_fetch_key(p)
	case c == ':' && (p.flowLevel > 0 || p.is_blankz(p.peekAt(1))):
		return fy_fetch_value(p)
	case c == '*':
		return fy_fetch_anchor(p, fyh.ALIAS_TOKEN)
	case c == '&':
		return fy_fetch_anchor(p, fyh.ANCHOR_TOKEN)
	case c == '!':
		return fy_fetch_tag(p)
	case c == '|' && p.flowLevel == 0:
		return fy_fetch_block_scalar(p, true)
	case c == '>' && p.flowLevel == 0:
		return fy_fetch_block_scalar(p, false)
	case c == '\'':
		return fy_fetch_flow_scalar(p, true)
	case c == '"':
		return fy_fetch_flow_scalar(p, false)
	}

	// A plain scalar may start with any character that is not an
	// indicator; '-', '?' and ':' are also acceptable when the next
	// character is not a blank (block context for the latter two).
	if !(p.is_blankz(c) || strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", c)) ||
		(c == '-' && !fyh.Is_blank(p.peekAt(1))) ||
		(p.flowLevel == 0 && (c == '?' || c == ':') && !p.is_blankz(p.peekAt(1))) {
		return fy_fetch_plain_scalar(p)
	}

	if c == '\t' {
		return fy_scan_error(p, diag.KIND_TAB_AS_INDENT, p.mark(),
			"found a tab character that violates indentation")
	}

	return fy_scan_error(p, diag.KIND_SYNTAX, p.mark(), "found character that cannot start any token")
}

func fy_simple_key_is_valid(p *Parser, sk *simpleKey) (bool, error) {
	if !sk.possible {
		return false, nil
	}

	// An implicit key is bound to one line and 1024 characters.
	if sk.mark.Line < p.mark().Line || sk.mark.Offset+1024 < p.mark().Offset {
		if sk.required {
			return false, fy_scan_error(p, diag.KIND_MISSING_COLON, sk.mark, "could not find expected ':'")
		}
		sk.possible = false
		delete(p.simpleKeysByTok, sk.tokenNumber)
		return false, nil
	}
	return true, nil
}

// fy_save_simple_key records that the token about to be fetched may be
// retroactively promoted to a mapping key.
func fy_save_simple_key(p *Parser) error {
	required := p.flowLevel == 0 && p.indent == p.mark().Column

	if p.simpleKeyAllowed {
		sk := simpleKey{
			possible:    true,
			required:    required,
			tokenNumber: p.tokensParsed + (len(p.tokens) - p.tokensHead),
			mark:        p.mark(),
		}
		if err := fy_remove_simple_key(p); err != nil {
			return err
		}
		p.simpleKeys[len(p.simpleKeys)-1] = sk
		p.simpleKeysByTok[sk.tokenNumber] = len(p.simpleKeys) - 1
	}
	return nil
}

func fy_remove_simple_key(p *Parser) error {
	i := len(p.simpleKeys) - 1
	if p.simpleKeys[i].possible {
		if p.simpleKeys[i].required {
			return fy_scan_error(p, diag.KIND_MISSING_COLON, p.simpleKeys[i].mark, "could not find expected ':'")
		}
		p.simpleKeys[i].possible = false
		delete(p.simpleKeysByTok, p.simpleKeys[i].tokenNumber)
	}
	return nil
}

func fy_increase_flow_level(p *Parser, typ flowType) error {
	// Reset the simple key on the next level.
	p.simpleKeys = append(p.simpleKeys, simpleKey{
		tokenNumber: p.tokensParsed + (len(p.tokens) - p.tokensHead),
		mark:        p.mark(),
	})
	p.flow = append(p.flow, flowState{typ: typ})
	p.flowLevel++
	if p.flowLevel > max_flow_level {
		return fy_scan_error(p, diag.KIND_SYNTAX, p.mark(),
			fmt.Sprintf("exceeded max flow depth of %d", max_flow_level))
	}
	return nil
}

func fy_decrease_flow_level(p *Parser) {
	if p.flowLevel > 0 {
		p.flowLevel--
		p.flow = p.flow[:len(p.flow)-1]
		last := len(p.simpleKeys) - 1
		delete(p.simpleKeysByTok, p.simpleKeys[last].tokenNumber)
		p.simpleKeys = p.simpleKeys[:last]
	}
}

// fy_roll_indent pushes the indentation level and inserts a block
// structure start token when the column grows.
func fy_roll_indent(p *Parser, column, number int, typ fyh.TokenType, mark fyh.Position) error {
	if p.flowLevel > 0 {
		return nil
	}

	if p.indent < column {
		p.indents = append(p.indents, p.indent)
		p.indent = column
		if len(p.indents) > max_indents {
			return fy_scan_error(p, diag.KIND_SYNTAX, mark,
				fmt.Sprintf("exceeded max block depth of %d", max_indents))
		}

		tok := fy_marker_token(p, typ, mark, mark)
		if number > -1 {
			number -= p.tokensParsed
		}
		fy_insert_token(p, number, tok)
	}
	return nil
}

// fy_unroll_indent pops indentation levels above the column, emitting
// a BLOCK-END for each.
func fy_unroll_indent(p *Parser, column int) {
	if p.flowLevel > 0 {
		return
	}
	for p.indent > column {
		mark := p.mark()
		fy_insert_token(p, -1, fy_marker_token(p, fyh.BLOCK_END_TOKEN, mark, mark))
		p.indent = p.indents[len(p.indents)-1]
		p.indents = p.indents[:len(p.indents)-1]
	}
}

// Initialize the scanner and produce the STREAM-START token.
func fy_fetch_stream_start(p *Parser) {
	p.indent = -1
	p.simpleKeys = append(p.simpleKeys[:0], simpleKey{})
	p.simpleKeysByTok = make(map[int]int)
	p.simpleKeyAllowed = true
	p.streamStartProduced = true

	mark := p.mark()
	fy_insert_token(p, -1, fy_marker_token(p, fyh.STREAM_START_TOKEN, mark, mark))
}

// Produce the STREAM-END token and shut down the scanner.
func fy_fetch_stream_end(p *Parser) error {
	fy_unroll_indent(p, -1)
	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	mark := p.mark()
	p.streamEndProduced = true
	fy_insert_token(p, -1, fy_marker_token(p, fyh.STREAM_END_TOKEN, mark, mark))
	return nil
}

// Produce a VERSION-DIRECTIVE or TAG-DIRECTIVE token.
func fy_fetch_directive(p *Parser) error {
	fy_unroll_indent(p, -1)
	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	tok, err := fy_scan_directive(p)
	if err != nil {
		return err
	}
	if tok != nil {
		fy_insert_token(p, -1, tok)
	}
	return nil
}

// Produce the DOCUMENT-START or DOCUMENT-END token.
func fy_fetch_document_indicator(p *Parser, typ fyh.TokenType) error {
	fy_unroll_indent(p, -1)
	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	start := p.mark()
	p.skip()
	p.skip()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, typ, start, p.mark()))
	return nil
}

// Produce the FLOW-SEQUENCE-START or FLOW-MAPPING-START token.
func fy_fetch_flow_collection_start(p *Parser, typ fyh.TokenType) error {
	// The indicators '[' and '{' may start a simple key.
	if err := fy_save_simple_key(p); err != nil {
		return err
	}

	ft := flowSequence
	if typ == fyh.FLOW_MAPPING_START_TOKEN {
		ft = flowMapping
	}
	if err := fy_increase_flow_level(p, ft); err != nil {
		return err
	}

	p.simpleKeyAllowed = true

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, typ, start, p.mark()))
	return nil
}

// Produce the FLOW-SEQUENCE-END or FLOW-MAPPING-END token.
func fy_fetch_flow_collection_end(p *Parser, typ fyh.TokenType) error {
	if p.flowLevel == 0 {
		return fy_scan_error(p, diag.KIND_UNEXPECTED_FLOW_END, p.mark(),
			"flow collection end outside of a flow collection")
	}
	want := flowSequence
	if typ == fyh.FLOW_MAPPING_END_TOKEN {
		want = flowMapping
	}
	if p.flow[len(p.flow)-1].typ != want {
		return fy_scan_error(p, diag.KIND_UNEXPECTED_FLOW_END, p.mark(),
			"mismatched flow collection end indicator")
	}

	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	fy_decrease_flow_level(p)
	p.simpleKeyAllowed = false

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, typ, start, p.mark()))
	return nil
}

// Produce the FLOW-ENTRY token.
func fy_fetch_flow_entry(p *Parser) error {
	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = true

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, fyh.FLOW_ENTRY_TOKEN, start, p.mark()))
	return nil
}

// Produce the BLOCK-ENTRY token.
func fy_fetch_block_entry(p *Parser) error {
	if p.flowLevel == 0 {
		if !p.simpleKeyAllowed {
			return fy_scan_error(p, diag.KIND_SYNTAX, p.mark(),
				"block sequence entries are not allowed in this context")
		}
		if err := fy_roll_indent(p, p.mark().Column, -1, fyh.BLOCK_SEQUENCE_START_TOKEN, p.mark()); err != nil {
			return err
		}
	}

	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = true

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, fyh.BLOCK_ENTRY_TOKEN, start, p.mark()))
	return nil
}

// Produce the KEY token.
func fy_fetch_key(p *Parser) error {
	if p.flowLevel == 0 {
		if !p.simpleKeyAllowed {
			return fy_scan_error(p, diag.KIND_SYNTAX, p.mark(),
				"mapping keys are not allowed in this context")
		}
		if err := fy_roll_indent(p, p.mark().Column, -1, fyh.BLOCK_MAPPING_START_TOKEN, p.mark()); err != nil {
			return err
		}
	}

	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = p.flowLevel == 0

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, fyh.KEY_TOKEN, start, p.mark()))
	return nil
}

// Produce the VALUE token.
func fy_fetch_value(p *Parser) error {
	sk := &p.simpleKeys[len(p.simpleKeys)-1]

	valid, err := fy_simple_key_is_valid(p, sk)
	if err != nil {
		return err
	}
	if valid {
		// Insert the KEY token retroactively, in front of the token
		// that started the key.
		fy_insert_token(p, sk.tokenNumber-p.tokensParsed,
			fy_marker_token(p, fyh.KEY_TOKEN, sk.mark, sk.mark))

		if err = fy_roll_indent(p, sk.mark.Column, sk.tokenNumber, fyh.BLOCK_MAPPING_START_TOKEN, sk.mark); err != nil {
			return err
		}

		sk.possible = false
		delete(p.simpleKeysByTok, sk.tokenNumber)
		p.simpleKeyAllowed = false
	} else {
		// The ':' indicator follows a complex key.
		if p.flowLevel == 0 {
			if !p.simpleKeyAllowed {
				return fy_scan_error(p, diag.KIND_SYNTAX, p.mark(),
					"mapping values are not allowed in this context")
			}
			if err = fy_roll_indent(p, p.mark().Column, -1, fyh.BLOCK_MAPPING_START_TOKEN, p.mark()); err != nil {
				return err
			}
		}
		p.simpleKeyAllowed = p.flowLevel == 0
	}

	start := p.mark()
	p.skip()
	fy_insert_token(p, -1, fy_marker_token(p, fyh.VALUE_TOKEN, start, p.mark()))
	return nil
}

// Produce the ALIAS or ANCHOR token.
func fy_fetch_anchor(p *Parser, typ fyh.TokenType) error {
	if err := fy_save_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	tok, err := fy_scan_anchor(p, typ)
	if err != nil {
		return err
	}
	fy_insert_token(p, -1, tok)
	return nil
}

// Produce the TAG token.
func fy_fetch_tag(p *Parser) error {
	if err := fy_save_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	tok, err := fy_scan_tag(p)
	if err != nil {
		return err
	}
	fy_insert_token(p, -1, tok)
	return nil
}

// Produce the SCALAR(...,literal) or SCALAR(...,folded) tokens.
func fy_fetch_block_scalar(p *Parser, literal bool) error {
	if err := fy_remove_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = true

	tok, err := fy_scan_block_scalar(p, literal)
	if err != nil {
		return err
	}
	fy_insert_token(p, -1, tok)
	return nil
}

// Produce the SCALAR(...,single-quoted) or SCALAR(...,double-quoted) tokens.
func fy_fetch_flow_scalar(p *Parser, single bool) error {
	if err := fy_save_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	tok, err := fy_scan_flow_scalar(p, single)
	if err != nil {
		return err
	}
	fy_insert_token(p, -1, tok)
	return nil
}

// Produce the SCALAR(...,plain) token.
func fy_fetch_plain_scalar(p *Parser) error {
	if err := fy_save_simple_key(p); err != nil {
		return err
	}
	p.simpleKeyAllowed = false

	tok, err := fy_scan_plain_scalar(p)
	if err != nil {
		return err
	}
	fy_insert_token(p, -1, tok)
	return nil
}

// Eat whitespaces and comments until the next token is found.
func fy_scan_to_next_token(p *Parser) error {
	for {
		c := p.peek()

		// Allow a BOM to start a line.
		if p.mark().Column == 0 && c == 0xFEFF {
			p.skip()
			c = p.peek()
		}

		// Tabs are allowed in the flow context, in the block context
		// when not scanning for indentation, and always when a tab
		// width is configured.
		for c == ' ' || (c == '\t' && (p.flowLevel > 0 || !p.simpleKeyAllowed || p.cfg.TabHandling != TAB_NONE)) {
			p.skip()
			c = p.peek()
		}

		if c == '#' {
			if err := fy_scan_comment(p); err != nil {
				return err
			}
			c = p.peek()
		}

		if p.is_break(c) {
			p.skipLine()
			// In the block context, a new line may start a simple key.
			if p.flowLevel == 0 {
				p.simpleKeyAllowed = true
			}
			continue
		}
		return nil
	}
}

// fy_scan_comment consumes one comment line. With comment parsing on,
// a COMMENT token carrying the text (hash signs included) joins the
// queue; otherwise the line is discarded.
func fy_scan_comment(p *Parser) error {
	start := p.mark()
	var text []byte
	for !p.is_breakz(p.peek()) {
		text = p.readc(text)
	}
	if !p.cfg.ParseComments {
		return nil
	}
	end := p.mark()
	raw := p.reader.SliceRange(start, end)
	tok := fyh.NewToken(fyh.COMMENT_TOKEN, fyh.Atom{
		Start_mark: start,
		End_mark:   end,
		Style:      fyh.COMMENT_ATOM,
		Flags:      fy_atom_flags(text, raw),
		Value:      text,
		Input:      p.reader.InputRef(),
	})
	fy_insert_token(p, -1, tok)
	return nil
}

// Scan a YAML-DIRECTIVE or TAG-DIRECTIVE token.
//
// Scope:
//
//	%YAML    1.1    # a comment \n
//	^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
//	%TAG    !yaml!  tag:yaml.org,2002:  \n
//	^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
//
// Unknown directives are skipped with a warning, per the YAML spec.
func fy_scan_directive(p *Parser) (*fyh.Token, error) {
	// Eat '%'.
	start := p.mark()
	p.skip()

	name, err := fy_scan_directive_name(p, start)
	if err != nil {
		return nil, err
	}

	var tok *fyh.Token
	switch string(name) {
	case "YAML":
		major, minor, verr := fy_scan_version_directive_value(p, start)
		if verr != nil {
			return nil, verr
		}
		tok = fy_marker_token(p, fyh.VERSION_DIRECTIVE_TOKEN, start, p.mark())
		tok.Major, tok.Minor = major, minor

	case "TAG":
		handle, prefix, terr := fy_scan_tag_directive_value(p, start)
		if terr != nil {
			return nil, terr
		}
		tok = fy_marker_token(p, fyh.TAG_DIRECTIVE_TOKEN, start, p.mark())
		tok.Atom.Value = handle
		tok.Prefix = prefix

	default:
		p.diag.ReportWarning(&diag.Error{
			Kind:       diag.KIND_SYNTAX,
			Module:     "scan",
			File:       p.reader.inputName(),
			Problem:    fmt.Sprintf("unknown directive %%%s ignored", name),
			Start_mark: start,
			End_mark:   p.mark(),
		})
		for !p.is_breakz(p.peek()) {
			p.skip()
		}
	}

	// Eat the rest of the line including any comments.
	for fyh.Is_blank(p.peek()) {
		p.skip()
	}
	if p.peek() == '#' {
		for !p.is_breakz(p.peek()) {
			p.skip()
		}
	}

	if !p.is_breakz(p.peek()) {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected comment or line break")
	}
	if p.is_break(p.peek()) {
		p.skipLine()
	}
	return tok, nil
}

// Scan the directive name.
func fy_scan_directive_name(p *Parser, start fyh.Position) ([]byte, error) {
	var s []byte
	for fyh.Is_alpha(p.peek()) {
		s = p.readc(s)
	}
	if len(s) == 0 {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "could not find expected directive name")
	}
	if !p.is_blankz(p.peek()) {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "found unexpected non-alphabetical character")
	}
	return s, nil
}

// Scan the value of VERSION-DIRECTIVE.
func fy_scan_version_directive_value(p *Parser, start fyh.Position) (major, minor int8, _ error) {
	for fyh.Is_blank(p.peek()) {
		p.skip()
	}
	major, err := fy_scan_version_directive_number(p, start)
	if err != nil {
		return 0, 0, err
	}
	if p.peek() != '.' {
		return 0, 0, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected digit or '.' character")
	}
	p.skip()
	minor, err = fy_scan_version_directive_number(p, start)
	if err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}

const max_number_length = 2

// Scan the version number of VERSION-DIRECTIVE.
func fy_scan_version_directive_number(p *Parser, start fyh.Position) (int8, error) {
	var value, length int8
	for fyh.Is_digit(p.peek()) {
		length++
		if length > max_number_length {
			return 0, fy_scan_error(p, diag.KIND_SYNTAX, start, "found extremely long version number")
		}
		value = value*10 + int8(fy_as_digit(p.peek()))
		p.skip()
	}
	if length == 0 {
		return 0, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected version number")
	}
	return value, nil
}

// Scan the value of a TAG-DIRECTIVE token.
func fy_scan_tag_directive_value(p *Parser, start fyh.Position) (handle, prefix []byte, _ error) {
	for fyh.Is_blank(p.peek()) {
		p.skip()
	}

	handle, err := fy_scan_tag_handle(p, true, start)
	if err != nil {
		return nil, nil, err
	}

	if !fyh.Is_blank(p.peek()) {
		return nil, nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected whitespace")
	}
	for fyh.Is_blank(p.peek()) {
		p.skip()
	}

	prefix, err = fy_scan_tag_uri(p, true, nil, start)
	if err != nil {
		return nil, nil, err
	}

	if !p.is_blankz(p.peek()) {
		return nil, nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected whitespace or line break")
	}
	return handle, prefix, nil
}

// Scan an ALIAS or ANCHOR token.
func fy_scan_anchor(p *Parser, typ fyh.TokenType) (*fyh.Token, error) {
	// Eat the indicator character.
	start := p.mark()
	p.skip()

	var s []byte
	for fyh.Is_anchor_char(p.peek()) {
		s = p.readc(s)
	}

	end := p.mark()

	// The name must be non-empty and followed by whitespace or an
	// indicator that legally ends it.
	c := p.peek()
	if len(s) == 0 ||
		!(p.is_blankz(c) || c == '?' || c == ':' || c == ',' ||
			c == ']' || c == '}' || c == '%' || c == '@' || c == '`') {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected alphabetic or numeric character")
	}

	raw := p.reader.SliceRange(start, end)
	return fyh.NewToken(typ, fyh.Atom{
		Start_mark: start,
		End_mark:   end,
		Flags:      fy_atom_flags(s, raw),
		Value:      s,
		Input:      p.reader.InputRef(),
	}), nil
}

// Scan a TAG token.
func fy_scan_tag(p *Parser) (*fyh.Token, error) {
	var handle, suffix []byte

	start := p.mark()

	if p.peekAt(1) == '<' {
		// Verbatim form: '!<' uri '>'; the handle stays empty.
		p.skip()
		p.skip()

		var err error
		suffix, err = fy_scan_tag_uri(p, false, nil, start)
		if err != nil {
			return nil, err
		}
		if p.peek() != '>' {
			return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find the expected '>'")
		}
		p.skip()
	} else {
		// The tag has either the '!suffix' or the '!handle!suffix' form.
		var err error
		handle, err = fy_scan_tag_handle(p, false, start)
		if err != nil {
			return nil, err
		}

		if handle[0] == '!' && len(handle) > 1 && handle[len(handle)-1] == '!' {
			suffix, err = fy_scan_tag_uri(p, false, nil, start)
			if err != nil {
				return nil, err
			}
		} else {
			// It wasn't a handle after all; fold it into the suffix.
			suffix, err = fy_scan_tag_uri(p, false, handle, start)
			if err != nil {
				return nil, err
			}
			handle = []byte{'!'}

			// The non-specific '!' tag.
			if len(suffix) == 0 {
				handle, suffix = suffix, handle
			}
		}
	}

	if !p.is_blankz(p.peek()) {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected whitespace or line break")
	}

	end := p.mark()
	tok := fy_marker_token(p, fyh.TAG_TOKEN, start, end)
	tok.Atom.Value = handle
	tok.Atom.Flags = 0
	tok.Suffix = suffix
	return tok, nil
}

// Scan a tag handle.
func fy_scan_tag_handle(p *Parser, directive bool, start fyh.Position) ([]byte, error) {
	if p.peek() != '!' {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected '!'")
	}

	var s []byte
	s = p.readc(s)

	for fyh.Is_alpha(p.peek()) {
		s = p.readc(s)
	}

	if p.peek() == '!' {
		s = p.readc(s)
	} else if directive && string(s) != "!" {
		// In a %TAG directive the handle must close with '!'.
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected '!'")
	}
	return s, nil
}

// Scan a tag URI.
func fy_scan_tag_uri(p *Parser, directive bool, head []byte, start fyh.Position) ([]byte, error) {
	var s []byte
	hasTag := len(head) > 0

	// The head is carried over without its leading '!'.
	if len(head) > 1 {
		s = append(s, head[1:]...)
	}

	for fyh.Is_uri_char(p.peek()) {
		if p.peek() == '%' {
			var err error
			s, err = fy_scan_uri_escapes(p, directive, start, s)
			if err != nil {
				return nil, err
			}
		} else {
			s = p.readc(s)
		}
		hasTag = true
	}

	if !hasTag {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected tag URI")
	}
	return s, nil
}

// Decode a URI-escape sequence corresponding to a single UTF-8 character.
func fy_scan_uri_escapes(p *Parser, directive bool, start fyh.Position, s []byte) ([]byte, error) {
	w := 0
	first := true
	for first || w > 0 {
		if !(p.peek() == '%' && fy_as_hex(p.peekAt(1)) >= 0 && fy_as_hex(p.peekAt(2)) >= 0) {
			return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find URI escaped octet")
		}
		octet := byte(fy_as_hex(p.peekAt(1))<<4 + fy_as_hex(p.peekAt(2)))

		if first {
			switch {
			case octet&0x80 == 0x00:
				w = 1
			case octet&0xE0 == 0xC0:
				w = 2
			case octet&0xF0 == 0xE0:
				w = 3
			case octet&0xF8 == 0xF0:
				w = 4
			default:
				return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "found an incorrect leading UTF-8 octet")
			}
			first = false
		} else if octet&0xC0 != 0x80 {
			return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "found an incorrect trailing UTF-8 octet")
		}

		s = append(s, octet)
		p.skip()
		p.skip()
		p.skip()
		w--
	}
	return s, nil
}

// Scan a block scalar.
func fy_scan_block_scalar(p *Parser, literal bool) (*fyh.Token, error) {
	// Eat the indicator '|' or '>'.
	start := p.mark()
	p.skip()

	// Scan the additional block scalar indicators.
	chomp := fyh.CHOMP_CLIP
	increment := 0

	scanChomp := func() {
		switch p.peek() {
		case '+':
			chomp = fyh.CHOMP_KEEP
			p.skip()
		case '-':
			chomp = fyh.CHOMP_STRIP
			p.skip()
		}
	}

	if p.peek() == '+' || p.peek() == '-' {
		scanChomp()
		if fyh.Is_digit(p.peek()) {
			if p.peek() == '0' {
				return nil, fy_scan_error(p, diag.KIND_BAD_BLOCK_SCALAR_INDENT, start,
					"found an indentation indicator equal to 0")
			}
			increment = fy_as_digit(p.peek())
			p.skip()
		}
	} else if fyh.Is_digit(p.peek()) {
		if p.peek() == '0' {
			return nil, fy_scan_error(p, diag.KIND_BAD_BLOCK_SCALAR_INDENT, start,
				"found an indentation indicator equal to 0")
		}
		increment = fy_as_digit(p.peek())
		p.skip()
		scanChomp()
	}

	// Eat whitespaces and comments to the end of the line.
	for fyh.Is_blank(p.peek()) {
		p.skip()
	}
	if p.peek() == '#' {
		if err := fy_scan_comment(p); err != nil {
			return nil, err
		}
	}

	if !p.is_breakz(p.peek()) {
		return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "did not find expected comment or line break")
	}
	if p.is_break(p.peek()) {
		p.skipLine()
	}

	end := p.mark()

	// Set the indentation level if it was specified.
	indent := 0
	if increment > 0 {
		if p.indent >= 0 {
			indent = p.indent + increment
		} else {
			indent = increment
		}
	}

	// Scan the leading line breaks and determine the indentation level.
	var s, leadingBreak, trailingBreaks []byte
	var err error
	trailingBreaks, err = fy_scan_block_scalar_breaks(p, &indent, trailingBreaks, start, &end)
	if err != nil {
		return nil, err
	}

	// Scan the block scalar content.
	var leadingBlank, trailingBlank bool
	for p.mark().Column == indent && p.peek() != fyh.EOF {
		// We are at the beginning of a non-empty line.
		trailingBlank = fyh.Is_blank(p.peek())

		// Fold the leading line break unless a blank line or a more
		// indented line disables folding.
		if !literal && !leadingBlank && !trailingBlank && len(leadingBreak) > 0 && leadingBreak[0] == '\n' {
			if len(trailingBreaks) == 0 {
				s = append(s, ' ')
			}
		} else {
			s = append(s, leadingBreak...)
		}
		leadingBreak = leadingBreak[:0]

		s = append(s, trailingBreaks...)
		trailingBreaks = trailingBreaks[:0]

		leadingBlank = fyh.Is_blank(p.peek())

		// Consume the current line.
		for !p.is_breakz(p.peek()) {
			s = p.readc(s)
		}

		leadingBreak = p.readLine(leadingBreak)

		// Eat the following indentation spaces and line breaks.
		trailingBreaks, err = fy_scan_block_scalar_breaks(p, &indent, trailingBreaks, start, &end)
		if err != nil {
			return nil, err
		}
	}

	// Chomp the tail.
	if chomp != fyh.CHOMP_STRIP {
		s = append(s, leadingBreak...)
	}
	if chomp == fyh.CHOMP_KEEP {
		s = append(s, trailingBreaks...)
	}

	style := fyh.LITERAL_ATOM
	if !literal {
		style = fyh.FOLDED_ATOM
	}
	return fy_scalar_token(p, start, end, s, style, chomp, increment), nil
}

// Scan indentation spaces and line breaks for a block scalar, and
// determine the indentation level if needed.
func fy_scan_block_scalar_breaks(p *Parser, indent *int, breaks []byte, start fyh.Position, end *fyh.Position) ([]byte, error) {
	*end = p.mark()

	maxIndent := 0
	for {
		for (*indent == 0 || p.mark().Column < *indent) && p.peek() == ' ' {
			p.skip()
		}
		if p.mark().Column > maxIndent {
			maxIndent = p.mark().Column
		}

		// A tab cannot stand in for indentation spaces.
		if (*indent == 0 || p.mark().Column < *indent) && p.peek() == '\t' {
			return nil, fy_scan_error(p, diag.KIND_TAB_AS_INDENT, start,
				"found a tab character where an indentation space is expected")
		}

		if !p.is_break(p.peek()) {
			break
		}
		breaks = p.readLine(breaks)
		*end = p.mark()
	}

	if *indent == 0 {
		*indent = maxIndent
		if *indent < p.indent+1 {
			*indent = p.indent + 1
		}
		if *indent < 1 {
			*indent = 1
		}
	}
	return breaks, nil
}

// Scan a quoted scalar.
func fy_scan_flow_scalar(p *Parser, single bool) (*fyh.Token, error) {
	// Eat the left quote.
	start := p.mark()
	p.skip()

	json := p.reader.JSONMode()

	var s, leadingBreak, trailingBreaks, whitespaces []byte
	for {
		// No document indicators inside a quoted scalar.
		if p.mark().Column == 0 &&
			((p.peek() == '-' && p.peekAt(1) == '-' && p.peekAt(2) == '-') ||
				(p.peek() == '.' && p.peekAt(1) == '.' && p.peekAt(2) == '.')) &&
			p.is_blankz(p.peekAt(3)) {
			return nil, fy_scan_error(p, diag.KIND_SYNTAX, start, "found unexpected document indicator")
		}

		if p.peek() < 0 {
			return nil, fy_scan_error(p, diag.KIND_EOF_IN_TOKEN, start, "found unexpected end of stream")
		}

		// Consume non-blank characters.
		leadingBlanks := false
		for !p.is_blankz(p.peek()) {
			c := p.peek()
			switch {
			case single && c == '\'' && p.peekAt(1) == '\'':
				// An escaped single quote.
				s = append(s, '\'')
				p.skip()
				p.skip()

			case single && c == '\'':
				// The closing quote.

			case !single && c == '"':
				// The closing quote.

			case !single && c == '\\' && p.is_break(p.peekAt(1)):
				// An escaped line break.
				p.skip()
				p.skipLine()
				leadingBlanks = true

			case !single && c == '\\':
				// An escape sequence.
				codeLength := 0
				switch p.peekAt(1) {
				case '0':
					s = append(s, 0)
				case 'a':
					s = append(s, '\x07')
				case 'b':
					s = append(s, '\x08')
				case 't', '\t':
					s = append(s, '\x09')
				case 'n':
					s = append(s, '\x0A')
				case 'v':
					s = append(s, '\x0B')
				case 'f':
					s = append(s, '\x0C')
				case 'r':
					s = append(s, '\x0D')
				case 'e':
					s = append(s, '\x1B')
				case ' ':
					s = append(s, '\x20')
				case '"':
					s = append(s, '"')
				case '/':
					s = append(s, '/')
				case '\'':
					s = append(s, '\'')
				case '\\':
					s = append(s, '\\')
				case 'N': // NEL (#x85)
					s = append(s, '\xC2', '\x85')
				case '_': // #xA0
					s = append(s, '\xC2', '\xA0')
				case 'L': // LS (#x2028)
					s = append(s, '\xE2', '\x80', '\xA8')
				case 'P': // PS (#x2029)
					s = append(s, '\xE2', '\x80', '\xA9')
				case 'x':
					codeLength = 2
				case 'u':
					codeLength = 4
				case 'U':
					codeLength = 8
				default:
					return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "found unknown escape character")
				}
				p.skip()
				p.skip()

				// Consume an arbitrary escape code.
				if codeLength > 0 {
					value := 0
					for k := 0; k < codeLength; k++ {
						h := fy_as_hex(p.peekAt(k))
						if h < 0 {
							return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "did not find expected hexadecimal number")
						}
						value = value<<4 + h
					}
					for k := 0; k < codeLength; k++ {
						p.skip()
					}
					if codeLength == 4 && value >= 0xD800 && value <= 0xDBFF {
						// A high surrogate must pair with an immediately
						// following low surrogate escape; together they
						// name one supplementary plane rune.
						if p.peekAt(0) != '\\' || p.peekAt(1) != 'u' {
							return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "found unpaired Unicode surrogate escape")
						}
						low := 0
						for k := 0; k < 4; k++ {
							h := fy_as_hex(p.peekAt(2 + k))
							if h < 0 {
								return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "did not find expected hexadecimal number")
							}
							low = low<<4 + h
						}
						if low < 0xDC00 || low > 0xDFFF {
							return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "found unpaired Unicode surrogate escape")
						}
						for k := 0; k < 6; k++ {
							p.skip()
						}
						value = 0x10000 + ((value - 0xD800) << 10) + (low - 0xDC00)
					}
					if (value >= 0xD800 && value <= 0xDFFF) || value > 0x10FFFF {
						return nil, fy_scan_error(p, diag.KIND_BAD_ESCAPE, start, "found invalid Unicode character escape code")
					}
					s = utf8.AppendRune(s, rune(value))
				}

			default:
				if json && !fyh.Is_json_unescaped(c) && !single {
					return nil, fy_scan_error(p, diag.KIND_JSON_VIOLATION, start,
						fmt.Sprintf("character %#x must be escaped in JSON mode", c))
				}
				s = p.readc(s)
			}
			if (single && p.peek() == '\'') || (!single && p.peek() == '"') {
				break
			}
			if leadingBlanks {
				break
			}
		}

		// Check if we are at the end of the scalar.
		if (single && p.peek() == '\'') || (!single && p.peek() == '"') {
			break
		}

		// Consume blank characters.
		for fyh.Is_blank(p.peek()) || p.is_break(p.peek()) {
			if fyh.Is_blank(p.peek()) {
				if !leadingBlanks {
					whitespaces = p.readc(whitespaces)
				} else {
					p.skip()
				}
			} else {
				if !leadingBlanks {
					whitespaces = whitespaces[:0]
					leadingBreak = p.readLine(leadingBreak)
					leadingBlanks = true
				} else {
					trailingBreaks = p.readLine(trailingBreaks)
				}
			}
		}

		// Join the whitespaces or fold line breaks.
		if leadingBlanks {
			if len(leadingBreak) > 0 && leadingBreak[0] == '\n' {
				if len(trailingBreaks) == 0 {
					s = append(s, ' ')
				} else {
					s = append(s, trailingBreaks...)
				}
			} else {
				s = append(s, leadingBreak...)
				s = append(s, trailingBreaks...)
			}
			trailingBreaks = trailingBreaks[:0]
			leadingBreak = leadingBreak[:0]
		} else {
			s = append(s, whitespaces...)
			whitespaces = whitespaces[:0]
		}
	}

	// Eat the right quote.
	p.skip()
	end := p.mark()

	style := fyh.SINGLE_QUOTED_ATOM
	if !single {
		style = fyh.DOUBLE_QUOTED_ATOM
	}
	return fy_scalar_token(p, start, end, s, style, fyh.CHOMP_CLIP, 0), nil
}

// Scan a plain scalar.
func fy_scan_plain_scalar(p *Parser) (*fyh.Token, error) {
	var s, leadingBreak, trailingBreaks, whitespaces []byte
	var leadingBlanks bool
	indent := p.indent + 1

	start := p.mark()
	end := p.mark()

	for {
		// Check for a document indicator.
		if p.mark().Column == 0 &&
			((p.peek() == '-' && p.peekAt(1) == '-' && p.peekAt(2) == '-') ||
				(p.peek() == '.' && p.peekAt(1) == '.' && p.peekAt(2) == '.')) &&
			p.is_blankz(p.peekAt(3)) {
			break
		}

		if p.peek() == '#' {
			break
		}

		// Consume non-blank characters.
		for !p.is_blankz(p.peek()) {
			c := p.peek()

			// Indicators that end a plain scalar.
			if (c == ':' && p.is_blankz(p.peekAt(1))) ||
				(p.flowLevel > 0 && fyh.Is_flow_indicator(c)) {
				break
			}
			if p.flowLevel > 0 && c == ':' && p.is_blankz(p.peekAt(1)) {
				break
			}

			// Join pending whitespace or folded breaks.
			if leadingBlanks || len(whitespaces) > 0 {
				if leadingBlanks {
					if len(leadingBreak) > 0 && leadingBreak[0] == '\n' {
						if len(trailingBreaks) == 0 {
							s = append(s, ' ')
						} else {
							s = append(s, trailingBreaks...)
						}
					} else {
						s = append(s, leadingBreak...)
						s = append(s, trailingBreaks...)
					}
					trailingBreaks = trailingBreaks[:0]
					leadingBreak = leadingBreak[:0]
					leadingBlanks = false
				} else {
					s = append(s, whitespaces...)
					whitespaces = whitespaces[:0]
				}
			}

			s = p.readc(s)
			end = p.mark()
		}

		// Is it the end?
		if !(fyh.Is_blank(p.peek()) || p.is_break(p.peek())) {
			break
		}

		// Consume blank characters.
		for fyh.Is_blank(p.peek()) || p.is_break(p.peek()) {
			if fyh.Is_blank(p.peek()) {
				// Tabs cannot take part in indentation.
				if leadingBlanks && p.mark().Column < indent && p.peek() == '\t' {
					return nil, fy_scan_error(p, diag.KIND_TAB_AS_INDENT, start,
						"found a tab character that violates indentation")
				}
				if !leadingBlanks {
					whitespaces = p.readc(whitespaces)
				} else {
					p.skip()
				}
			} else {
				if !leadingBlanks {
					whitespaces = whitespaces[:0]
					leadingBreak = p.readLine(leadingBreak)
					leadingBlanks = true
				} else {
					trailingBreaks = p.readLine(trailingBreaks)
				}
			}
		}

		// Check the indentation level.
		if p.flowLevel == 0 && p.mark().Column < indent {
			break
		}
		if p.flowLevel > 0 && !p.cfg.SloppyFlowIndentation &&
			p.mark().Column < indent && p.mark().Column > 0 {
			return nil, fy_scan_error(p, diag.KIND_SYNTAX, start,
				"wrongly indented flow scalar content")
		}
	}

	tok := fy_scalar_token(p, start, end, s, fyh.PLAIN_ATOM, fyh.CHOMP_CLIP, 0)

	// A multiline plain scalar re-allows a simple key.
	if leadingBlanks {
		p.simpleKeyAllowed = true
	}
	return tok, nil
}
