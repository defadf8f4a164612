//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package parserc

import (
	"fmt"

	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// The parser implements the following grammar:
//
// stream               ::= STREAM-START implicit_document? explicit_document* STREAM-END
// implicit_document    ::= block_node DOCUMENT-END*
// explicit_document    ::= DIRECTIVE* DOCUMENT-START block_node? DOCUMENT-END*
// block_node_or_indentless_sequence    ::=
//                          ALIAS
//                          | properties (block_content | indentless_block_sequence)?
//                          | block_content
//                          | indentless_block_sequence
// block_node           ::= ALIAS
//                          | properties block_content?
//                          | block_content
// flow_node            ::= ALIAS
//                          | properties flow_content?
//                          | flow_content
// properties           ::= TAG ANCHOR? | ANCHOR TAG?
// block_content        ::= block_collection | flow_collection | SCALAR
// flow_content         ::= flow_collection | SCALAR
// block_collection     ::= block_sequence | block_mapping
// flow_collection      ::= flow_sequence | flow_mapping
// block_sequence       ::= BLOCK-SEQUENCE-START (BLOCK-ENTRY block_node?)* BLOCK-END
// indentless_sequence  ::= (BLOCK-ENTRY block_node?)+
// block_mapping        ::= BLOCK-MAPPING_START
//                          ((KEY block_node_or_indentless_sequence?)?
//                          (VALUE block_node_or_indentless_sequence?)?)*
//                          BLOCK-END
// flow_sequence        ::= FLOW-SEQUENCE-START
//                          (flow_sequence_entry FLOW-ENTRY)*
//                          flow_sequence_entry?
//                          FLOW-SEQUENCE-END
// flow_sequence_entry  ::= flow_node | KEY flow_node? (VALUE flow_node?)?
// flow_mapping         ::= FLOW-MAPPING-START
//                          (flow_mapping_entry FLOW-ENTRY)*
//                          flow_mapping_entry?
//                          FLOW-MAPPING-END
// flow_mapping_entry   ::= flow_node | KEY flow_node? (VALUE flow_node?)?

// Parse produces the next event of the stream, or nil at the end of
// the stream. A stream error is sticky; every Parse after it fails
// until Reset.
func (p *Parser) Parse() (*fyh.Event, error) {
	if p.fatal != nil {
		return nil, p.fatal
	}
	if p.state == PARSE_END_STATE {
		return nil, nil
	}
	return fy_parse_state_machine(p)
}

// fy_peek_token returns the head token without consuming it, fetching
// as needed. Comment tokens never reach the parser; the most recent
// one is stashed aside for the composer.
func fy_peek_token(p *Parser) (*fyh.Token, error) {
	for {
		if !p.tokenAvailable {
			if err := fy_fetch_more_tokens(p); err != nil {
				return nil, err
			}
		}
		tok := p.tokens[p.tokensHead]
		if tok.Type != fyh.COMMENT_TOKEN {
			return tok, nil
		}
		fy_advance_token(p)
		p.lastComment.Unref()
		p.lastComment = tok
	}
}

func fy_advance_token(p *Parser) {
	p.tokensHead++
	p.tokensParsed++
	p.tokenAvailable = false
	if p.tokensHead == len(p.tokens) {
		p.tokens = p.tokens[:0]
		p.tokensHead = 0
	}
}

// fy_pop_token consumes the head token, transferring its reference to
// the caller.
func fy_pop_token(p *Parser) *fyh.Token {
	tok := p.tokens[p.tokensHead]
	fy_advance_token(p)
	return tok
}

// fy_drop_token consumes and releases the head token.
func fy_drop_token(p *Parser) {
	fy_pop_token(p).Unref()
}

// LastComment returns the most recent comment token seen before the
// current event, when comment parsing is enabled.
func (p *Parser) LastComment() *fyh.Token { return p.lastComment }

func fy_parse_error(p *Parser, kind diag.Kind, mark fyh.Position, problem, context string, ctxMark fyh.Position) error {
	e := &diag.Error{
		Kind:         kind,
		Module:       "parse",
		File:         p.reader.inputName(),
		Problem:      problem,
		Start_mark:   mark,
		End_mark:     mark,
		Context:      context,
		Context_mark: ctxMark,
	}
	p.diag.ReportError(e)
	p.fatal = e
	return e
}

func fy_parse_state_machine(p *Parser) (*fyh.Event, error) {
	switch p.state {
	case PARSE_STREAM_START_STATE:
		return fy_parse_stream_start(p)

	case PARSE_IMPLICIT_DOCUMENT_START_STATE:
		return fy_parse_document_start(p, true)

	case PARSE_DOCUMENT_START_STATE:
		return fy_parse_document_start(p, false)

	case PARSE_DOCUMENT_CONTENT_STATE:
		return fy_parse_document_content(p)

	case PARSE_DOCUMENT_END_STATE:
		return fy_parse_document_end(p)

	case PARSE_SINGLE_DOCUMENT_END_STATE:
		return fy_parse_single_document_end(p)

	case PARSE_BLOCK_NODE_STATE:
		return fy_parse_node(p, true, false)

	case PARSE_BLOCK_NODE_OR_INDENTLESS_SEQUENCE_STATE:
		return fy_parse_node(p, true, true)

	case PARSE_FLOW_NODE_STATE:
		return fy_parse_node(p, false, false)

	case PARSE_BLOCK_SEQUENCE_FIRST_ENTRY_STATE:
		return fy_parse_block_sequence_entry(p, true)

	case PARSE_BLOCK_SEQUENCE_ENTRY_STATE:
		return fy_parse_block_sequence_entry(p, false)

	case PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE:
		return fy_parse_indentless_sequence_entry(p)

	case PARSE_BLOCK_MAPPING_FIRST_KEY_STATE:
		return fy_parse_block_mapping_key(p, true)

	case PARSE_BLOCK_MAPPING_KEY_STATE:
		return fy_parse_block_mapping_key(p, false)

	case PARSE_BLOCK_MAPPING_VALUE_STATE:
		return fy_parse_block_mapping_value(p)

	case PARSE_FLOW_SEQUENCE_FIRST_ENTRY_STATE:
		return fy_parse_flow_sequence_entry(p, true)

	case PARSE_FLOW_SEQUENCE_ENTRY_STATE:
		return fy_parse_flow_sequence_entry(p, false)

	case PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_KEY_STATE:
		return fy_parse_flow_sequence_entry_mapping_key(p)

	case PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE:
		return fy_parse_flow_sequence_entry_mapping_value(p)

	case PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE:
		return fy_parse_flow_sequence_entry_mapping_end(p)

	case PARSE_FLOW_MAPPING_FIRST_KEY_STATE:
		return fy_parse_flow_mapping_key(p, true)

	case PARSE_FLOW_MAPPING_KEY_STATE:
		return fy_parse_flow_mapping_key(p, false)

	case PARSE_FLOW_MAPPING_VALUE_STATE:
		return fy_parse_flow_mapping_value(p, false)

	case PARSE_FLOW_MAPPING_EMPTY_VALUE_STATE:
		return fy_parse_flow_mapping_value(p, true)
	}
	return nil, fy_parse_error(p, diag.KIND_SYNTAX, p.mark(),
		fmt.Sprintf("invalid parser state %v", p.state), "", fyh.Position{})
}

func fy_push_state(p *Parser, s ParserState) {
	p.states = append(p.states, s)
}

func fy_pop_state(p *Parser) ParserState {
	s := p.states[len(p.states)-1]
	p.states = p.states[:len(p.states)-1]
	return s
}

func fy_push_mark(p *Parser, m fyh.Position) {
	p.marks = append(p.marks, m)
}

func fy_pop_mark(p *Parser) fyh.Position {
	m := p.marks[len(p.marks)-1]
	p.marks = p.marks[:len(p.marks)-1]
	return m
}

// Parse the production:
// stream ::= STREAM-START implicit_document? explicit_document* STREAM-END
//            ^^^^^^^^^^^^
func fy_parse_stream_start(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	if tok.Type != fyh.STREAM_START_TOKEN {
		return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
			"did not find expected <stream-start>", "", fyh.Position{})
	}

	ev := p.newEvent()
	ev.Type = fyh.STREAM_START_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.End_mark
	fy_drop_token(p)

	p.state = PARSE_IMPLICIT_DOCUMENT_START_STATE
	return ev, nil
}

// Parse the productions:
// implicit_document    ::= block_node DOCUMENT-END*
//                          *
// explicit_document    ::= DIRECTIVE* DOCUMENT-START block_node? DOCUMENT-END*
//                          *************************
func fy_parse_document_start(p *Parser, implicit bool) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	// Discard extra document end indicators.
	if !implicit {
		for tok.Type == fyh.DOCUMENT_END_TOKEN {
			fy_drop_token(p)
			if tok, err = fy_peek_token(p); err != nil {
				return nil, err
			}
		}
	}

	if implicit &&
		tok.Type != fyh.VERSION_DIRECTIVE_TOKEN &&
		tok.Type != fyh.TAG_DIRECTIVE_TOKEN &&
		tok.Type != fyh.DOCUMENT_START_TOKEN &&
		tok.Type != fyh.STREAM_END_TOKEN {
		// An implicit document.
		if err = fy_process_directives(p); err != nil {
			return nil, err
		}
		p.document.Start_implicit = true
		p.document.Start_mark = tok.Atom.Start_mark

		fy_push_state(p, PARSE_DOCUMENT_END_STATE)
		p.state = PARSE_BLOCK_NODE_STATE

		ev := p.newEvent()
		ev.Type = fyh.DOCUMENT_START_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.Start_mark
		ev.Document = p.document.Ref()
		ev.Implicit = true
		return ev, nil
	}

	if tok.Type != fyh.STREAM_END_TOKEN {
		// An explicit document.
		start := tok.Atom.Start_mark
		if err = fy_process_directives(p); err != nil {
			return nil, err
		}
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.DOCUMENT_START_TOKEN {
			return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
				"did not find expected <document-start>",
				"after the document directives", start)
		}
		p.document.Start_mark = start

		fy_push_state(p, PARSE_DOCUMENT_END_STATE)
		p.state = PARSE_DOCUMENT_CONTENT_STATE

		ev := p.newEvent()
		ev.Type = fyh.DOCUMENT_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		fy_drop_token(p)
		return ev, nil
	}

	// The stream is over.
	ev := p.newEvent()
	ev.Type = fyh.STREAM_END_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.End_mark
	fy_drop_token(p)
	p.state = PARSE_END_STATE
	return ev, nil
}

// Parse the productions:
// explicit_document    ::= DIRECTIVE* DOCUMENT-START block_node? DOCUMENT-END*
//                                                    ***********
func fy_parse_document_content(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case fyh.VERSION_DIRECTIVE_TOKEN, fyh.TAG_DIRECTIVE_TOKEN,
		fyh.DOCUMENT_START_TOKEN, fyh.DOCUMENT_END_TOKEN, fyh.STREAM_END_TOKEN:
		p.state = fy_pop_state(p)
		return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
	}
	return fy_parse_node(p, true, false)
}

// Parse the productions:
// implicit_document    ::= block_node DOCUMENT-END*
//                                     *************
// explicit_document    ::= DIRECTIVE* DOCUMENT-START block_node? DOCUMENT-END*
//                                                                *************
func fy_parse_document_end(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	start := tok.Atom.Start_mark
	end := tok.Atom.Start_mark
	implicit := true
	if tok.Type == fyh.DOCUMENT_END_TOKEN {
		end = tok.Atom.End_mark
		implicit = false
		fy_drop_token(p)
	}
	p.document.End_implicit = implicit
	p.document.End_mark = end

	ev := p.newEvent()
	ev.Type = fyh.DOCUMENT_END_EVENT
	ev.Start_mark = start
	ev.End_mark = end
	ev.Document = p.document.Ref()
	ev.Implicit = implicit

	// The document context dies with the document.
	p.document.Unref()
	p.document = nil
	p.pendingVersion = nil
	p.pendingTags = nil
	p.directivesSeen = false

	if p.cfg.SingleDocument {
		p.state = PARSE_SINGLE_DOCUMENT_END_STATE
	} else {
		p.state = PARSE_DOCUMENT_START_STATE
	}
	return ev, nil
}

// In single document mode only the stream end may follow the document.
func fy_parse_single_document_end(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case fyh.STREAM_END_TOKEN:
		ev := p.newEvent()
		ev.Type = fyh.STREAM_END_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.End_mark
		fy_drop_token(p)
		p.state = PARSE_END_STATE
		return ev, nil

	case fyh.DOCUMENT_END_TOKEN:
		return nil, fy_parse_error(p, diag.KIND_DANGLING_DOCUMENT_MARKER, tok.Atom.Start_mark,
			"dangling document end marker after the document", "", fyh.Position{})
	}
	return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
		"trailing content in single document mode", "", fyh.Position{})
}

// fy_process_directives consumes the directive tokens in front of a
// document and builds the document state.
func fy_process_directives(p *Parser) error {
	for {
		tok, err := fy_peek_token(p)
		if err != nil {
			return err
		}

		switch tok.Type {
		case fyh.VERSION_DIRECTIVE_TOKEN:
			if p.pendingVersion != nil {
				return fy_parse_error(p, diag.KIND_DUPLICATE_DIRECTIVE, tok.Atom.Start_mark,
					"found duplicate %YAML directive", "", fyh.Position{})
			}
			if tok.Major != 1 {
				return fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
					fmt.Sprintf("found incompatible YAML document version %d.%d", tok.Major, tok.Minor),
					"", fyh.Position{})
			}
			if tok.Minor > 2 {
				p.diag.ReportWarning(&diag.Error{
					Kind:       diag.KIND_SYNTAX,
					Module:     "parse",
					File:       p.reader.inputName(),
					Problem:    fmt.Sprintf("document version 1.%d is newer than 1.2, parsing with 1.2 rules", tok.Minor),
					Start_mark: tok.Atom.Start_mark,
					End_mark:   tok.Atom.End_mark,
				})
			}
			p.pendingVersion = &fyh.VersionDirective{Major: tok.Major, Minor: tok.Minor}
			p.directivesSeen = true
			fy_drop_token(p)
			continue

		case fyh.TAG_DIRECTIVE_TOKEN:
			handle := tok.Atom.Value
			for i := range p.pendingTags {
				if string(p.pendingTags[i].Handle) == string(handle) {
					return fy_parse_error(p, diag.KIND_DUPLICATE_DIRECTIVE, tok.Atom.Start_mark,
						fmt.Sprintf("found duplicate %%TAG directive for handle '%s'", handle),
						"", fyh.Position{})
				}
			}
			p.pendingTags = append(p.pendingTags, fyh.TagDirective{
				Handle: handle,
				Prefix: tok.Prefix,
			})
			p.directivesSeen = true
			fy_drop_token(p)
			continue
		}
		break
	}

	ds := fyh.NewDocumentState()
	if p.pendingVersion != nil {
		ds.Version = *p.pendingVersion
		ds.Version_explicit = true
	} else if p.cfg.DefaultVersion == VERSION_1_1 {
		ds.Version = fyh.VersionDirective{Major: 1, Minor: 1}
	} else if p.cfg.DefaultVersion == VERSION_1_3 {
		ds.Version = fyh.VersionDirective{Major: 1, Minor: 3}
	}
	ds.Tags_explicit = len(p.pendingTags) > 0
	ds.Tag_directives = p.pendingTags

	// The default handles apply unless the document overrides them.
	for i := range fyh.DefaultTagDirectives {
		def := &fyh.DefaultTagDirectives[i]
		if ds.LookupTagDirective(def.Handle) == nil {
			ds.Tag_directives = append(ds.Tag_directives, *def)
		}
	}

	p.document.Unref()
	p.document = ds
	p.pendingTags = nil
	return nil
}

// fy_resolve_tag rewrites the tag token value to the fully resolved
// form: verbatim tags pass through, otherwise the handle maps to its
// prefix through the document tag directives.
func fy_resolve_tag(p *Parser, tag *fyh.Token) error {
	if tag == nil {
		return nil
	}
	handle := tag.Atom.Value
	if len(handle) == 0 {
		// Verbatim '!<...>' form.
		tag.Atom.Value = tag.Suffix
		return nil
	}
	prefix := p.document.LookupTagDirective(handle)
	if prefix == nil {
		return fy_parse_error(p, diag.KIND_UNKNOWN_TAG_HANDLE, tag.Atom.Start_mark,
			fmt.Sprintf("found undefined tag handle '%s'", handle), "", fyh.Position{})
	}
	resolved := make([]byte, 0, len(prefix)+len(tag.Suffix))
	resolved = append(resolved, prefix...)
	resolved = append(resolved, tag.Suffix...)
	tag.Atom.Value = resolved
	return nil
}

// fy_empty_scalar_event synthesizes the empty plain scalar that stands
// in for omitted nodes.
func fy_empty_scalar_event(p *Parser, mark fyh.Position) *fyh.Event {
	ev := p.newEvent()
	ev.Type = fyh.SCALAR_EVENT
	ev.Start_mark = mark
	ev.End_mark = mark
	ev.Document = p.document.Ref()
	ev.Implicit = true
	return ev
}

// Parse the productions:
// block_node_or_indentless_sequence    ::=
//                          ALIAS
//                          *****
//                          | properties (block_content | indentless_block_sequence)?
//                            **********  *
//                          | block_content | indentless_block_sequence
//                            *
// block_node           ::= ALIAS
//                          *****
//                          | properties block_content?
//                            ********** *
//                          | block_content
//                            *
// flow_node            ::= ALIAS
//                          *****
//                          | properties flow_content?
//                            ********** *
//                          | flow_content
//                            *
func fy_parse_node(p *Parser, block, indentlessSequence bool) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type == fyh.ALIAS_TOKEN {
		p.state = fy_pop_state(p)
		ev := p.newEvent()
		ev.Type = fyh.ALIAS_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor = fy_pop_token(p)
		return ev, nil
	}

	start := tok.Atom.Start_mark
	end := tok.Atom.End_mark

	var anchor, tag *fyh.Token
	if tok.Type == fyh.ANCHOR_TOKEN {
		anchor = fy_pop_token(p)
		end = anchor.Atom.End_mark
		if tok, err = fy_peek_token(p); err == nil && tok.Type == fyh.TAG_TOKEN {
			tag = fy_pop_token(p)
			end = tag.Atom.End_mark
		}
	} else if tok.Type == fyh.TAG_TOKEN {
		tag = fy_pop_token(p)
		end = tag.Atom.End_mark
		if tok, err = fy_peek_token(p); err == nil && tok.Type == fyh.ANCHOR_TOKEN {
			anchor = fy_pop_token(p)
			end = anchor.Atom.End_mark
		}
	}
	release := func() {
		anchor.Unref()
		tag.Unref()
	}
	if err != nil {
		release()
		return nil, err
	}
	if err = fy_resolve_tag(p, tag); err != nil {
		release()
		return nil, err
	}

	if tok, err = fy_peek_token(p); err != nil {
		release()
		return nil, err
	}

	if indentlessSequence && tok.Type == fyh.BLOCK_ENTRY_TOKEN {
		p.state = PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE
		ev := p.newEvent()
		ev.Type = fyh.SEQUENCE_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		return ev, nil
	}

	switch {
	case tok.Type == fyh.SCALAR_TOKEN:
		p.state = fy_pop_state(p)
		ev := p.newEvent()
		ev.Type = fyh.SCALAR_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		ev.Value = fy_pop_token(p)
		if anchor != nil {
			ev.Start_mark = start
		}
		return ev, nil

	case tok.Type == fyh.FLOW_SEQUENCE_START_TOKEN:
		p.state = PARSE_FLOW_SEQUENCE_FIRST_ENTRY_STATE
		ev := p.newEvent()
		ev.Type = fyh.SEQUENCE_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		return ev, nil

	case tok.Type == fyh.FLOW_MAPPING_START_TOKEN:
		p.state = PARSE_FLOW_MAPPING_FIRST_KEY_STATE
		ev := p.newEvent()
		ev.Type = fyh.MAPPING_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		return ev, nil

	case block && tok.Type == fyh.BLOCK_SEQUENCE_START_TOKEN:
		p.state = PARSE_BLOCK_SEQUENCE_FIRST_ENTRY_STATE
		ev := p.newEvent()
		ev.Type = fyh.SEQUENCE_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		return ev, nil

	case block && tok.Type == fyh.BLOCK_MAPPING_START_TOKEN:
		p.state = PARSE_BLOCK_MAPPING_FIRST_KEY_STATE
		ev := p.newEvent()
		ev.Type = fyh.MAPPING_START_EVENT
		ev.Start_mark = start
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		return ev, nil
	}

	if anchor != nil || tag != nil {
		// A node with empty content.
		p.state = fy_pop_state(p)
		ev := p.newEvent()
		ev.Type = fyh.SCALAR_EVENT
		ev.Start_mark = start
		ev.End_mark = end
		ev.Document = p.document.Ref()
		ev.Anchor, ev.Tag = anchor, tag
		ev.Implicit = true
		return ev, nil
	}

	release()
	context := "while parsing a block node"
	if !block {
		context = "while parsing a flow node"
	}
	return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
		"did not find expected node content", context, start)
}

// Parse the productions:
// block_sequence ::= BLOCK-SEQUENCE-START (BLOCK-ENTRY block_node?)* BLOCK-END
//                    ********************  *********** *             *********
func fy_parse_block_sequence_entry(p *Parser, first bool) (*fyh.Event, error) {
	if first {
		tok, err := fy_peek_token(p)
		if err != nil {
			return nil, err
		}
		fy_push_mark(p, tok.Atom.Start_mark)
		fy_drop_token(p)
	}

	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type == fyh.BLOCK_ENTRY_TOKEN {
		mark := tok.Atom.End_mark
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.BLOCK_ENTRY_TOKEN && tok.Type != fyh.BLOCK_END_TOKEN {
			fy_push_state(p, PARSE_BLOCK_SEQUENCE_ENTRY_STATE)
			return fy_parse_node(p, true, false)
		}
		p.state = PARSE_BLOCK_SEQUENCE_ENTRY_STATE
		return fy_empty_scalar_event(p, mark), nil
	}

	if tok.Type == fyh.BLOCK_END_TOKEN {
		p.state = fy_pop_state(p)
		fy_pop_mark(p)
		ev := p.newEvent()
		ev.Type = fyh.SEQUENCE_END_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		fy_drop_token(p)
		return ev, nil
	}

	return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
		"did not find expected '-' indicator",
		"while parsing a block collection", p.marks[len(p.marks)-1])
}

// Parse the productions:
// indentless_sequence ::= (BLOCK-ENTRY block_node?)+
//                          *********** *
func fy_parse_indentless_sequence_entry(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type == fyh.BLOCK_ENTRY_TOKEN {
		mark := tok.Atom.End_mark
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.BLOCK_ENTRY_TOKEN &&
			tok.Type != fyh.KEY_TOKEN &&
			tok.Type != fyh.VALUE_TOKEN &&
			tok.Type != fyh.BLOCK_END_TOKEN {
			fy_push_state(p, PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE)
			return fy_parse_node(p, true, false)
		}
		p.state = PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE
		return fy_empty_scalar_event(p, mark), nil
	}

	p.state = fy_pop_state(p)
	ev := p.newEvent()
	ev.Type = fyh.SEQUENCE_END_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.Start_mark
	ev.Document = p.document.Ref()
	return ev, nil
}

// Parse the productions:
// block_mapping ::= BLOCK-MAPPING_START
//                   *******************
//                   ((KEY block_node_or_indentless_sequence?)?
//                     *** *
//                   (VALUE block_node_or_indentless_sequence?)?)*
//                   BLOCK-END
//                   *********
func fy_parse_block_mapping_key(p *Parser, first bool) (*fyh.Event, error) {
	if first {
		tok, err := fy_peek_token(p)
		if err != nil {
			return nil, err
		}
		fy_push_mark(p, tok.Atom.Start_mark)
		fy_drop_token(p)
	}

	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type == fyh.KEY_TOKEN {
		mark := tok.Atom.End_mark
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.KEY_TOKEN &&
			tok.Type != fyh.VALUE_TOKEN &&
			tok.Type != fyh.BLOCK_END_TOKEN {
			fy_push_state(p, PARSE_BLOCK_MAPPING_VALUE_STATE)
			return fy_parse_node(p, true, true)
		}
		p.state = PARSE_BLOCK_MAPPING_VALUE_STATE
		return fy_empty_scalar_event(p, mark), nil
	}

	if tok.Type == fyh.BLOCK_END_TOKEN {
		p.state = fy_pop_state(p)
		fy_pop_mark(p)
		ev := p.newEvent()
		ev.Type = fyh.MAPPING_END_EVENT
		ev.Start_mark = tok.Atom.Start_mark
		ev.End_mark = tok.Atom.End_mark
		ev.Document = p.document.Ref()
		fy_drop_token(p)
		return ev, nil
	}

	return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
		"did not find expected key",
		"while parsing a block mapping", p.marks[len(p.marks)-1])
}

// Parse the productions:
// block_mapping ::= BLOCK-MAPPING_START
//                   ((KEY block_node_or_indentless_sequence?)?
//                   (VALUE block_node_or_indentless_sequence?)?)*
//                    ***** *
//                   BLOCK-END
func fy_parse_block_mapping_value(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type == fyh.VALUE_TOKEN {
		mark := tok.Atom.End_mark
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.KEY_TOKEN &&
			tok.Type != fyh.VALUE_TOKEN &&
			tok.Type != fyh.BLOCK_END_TOKEN {
			fy_push_state(p, PARSE_BLOCK_MAPPING_KEY_STATE)
			return fy_parse_node(p, true, true)
		}
		p.state = PARSE_BLOCK_MAPPING_KEY_STATE
		return fy_empty_scalar_event(p, mark), nil
	}

	p.state = PARSE_BLOCK_MAPPING_KEY_STATE
	return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
}

// Parse the productions:
// flow_sequence ::= FLOW-SEQUENCE-START
//                   *******************
//                   (flow_sequence_entry FLOW-ENTRY)*
//                    *                   **********
//                   flow_sequence_entry?
//                    *
//                   FLOW-SEQUENCE-END
//                   *****************
// flow_sequence_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                         *
func fy_parse_flow_sequence_entry(p *Parser, first bool) (*fyh.Event, error) {
	if first {
		tok, err := fy_peek_token(p)
		if err != nil {
			return nil, err
		}
		fy_push_mark(p, tok.Atom.Start_mark)
		fy_drop_token(p)
	}

	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type != fyh.FLOW_SEQUENCE_END_TOKEN {
		if !first {
			if tok.Type != fyh.FLOW_ENTRY_TOKEN {
				return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
					"did not find expected ',' or ']'",
					"while parsing a flow sequence", p.marks[len(p.marks)-1])
			}
			fy_drop_token(p)
			if tok, err = fy_peek_token(p); err != nil {
				return nil, err
			}
		}

		if tok.Type == fyh.KEY_TOKEN {
			p.state = PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_KEY_STATE
			ev := p.newEvent()
			ev.Type = fyh.MAPPING_START_EVENT
			ev.Start_mark = tok.Atom.Start_mark
			ev.End_mark = tok.Atom.End_mark
			ev.Document = p.document.Ref()
			ev.Implicit = true
			fy_drop_token(p)
			return ev, nil
		}

		if tok.Type != fyh.FLOW_SEQUENCE_END_TOKEN {
			fy_push_state(p, PARSE_FLOW_SEQUENCE_ENTRY_STATE)
			return fy_parse_node(p, false, false)
		}
	}

	p.state = fy_pop_state(p)
	fy_pop_mark(p)
	ev := p.newEvent()
	ev.Type = fyh.SEQUENCE_END_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.End_mark
	ev.Document = p.document.Ref()
	fy_drop_token(p)
	return ev, nil
}

// Parse the productions:
// flow_sequence_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                                         *
func fy_parse_flow_sequence_entry_mapping_key(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	if tok.Type != fyh.VALUE_TOKEN &&
		tok.Type != fyh.FLOW_ENTRY_TOKEN &&
		tok.Type != fyh.FLOW_SEQUENCE_END_TOKEN {
		fy_push_state(p, PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE)
		return fy_parse_node(p, false, false)
	}
	p.state = PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE
	return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
}

// Parse the productions:
// flow_sequence_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                                                     ***** *
func fy_parse_flow_sequence_entry_mapping_value(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	if tok.Type == fyh.VALUE_TOKEN {
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.FLOW_ENTRY_TOKEN && tok.Type != fyh.FLOW_SEQUENCE_END_TOKEN {
			fy_push_state(p, PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE)
			return fy_parse_node(p, false, false)
		}
	}
	p.state = PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE
	return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
}

// Parse the productions:
// flow_sequence_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                                                                     *
func fy_parse_flow_sequence_entry_mapping_end(p *Parser) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	p.state = PARSE_FLOW_SEQUENCE_ENTRY_STATE
	ev := p.newEvent()
	ev.Type = fyh.MAPPING_END_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.Start_mark
	ev.Document = p.document.Ref()
	return ev, nil
}

// Parse the productions:
// flow_mapping ::= FLOW-MAPPING-START
//                  ******************
//                  (flow_mapping_entry FLOW-ENTRY)*
//                   *                  **********
//                  flow_mapping_entry?
//                   *
//                  FLOW-MAPPING-END
//                  ****************
// flow_mapping_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                        *          *** *
func fy_parse_flow_mapping_key(p *Parser, first bool) (*fyh.Event, error) {
	if first {
		tok, err := fy_peek_token(p)
		if err != nil {
			return nil, err
		}
		fy_push_mark(p, tok.Atom.Start_mark)
		fy_drop_token(p)
	}

	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}

	if tok.Type != fyh.FLOW_MAPPING_END_TOKEN {
		if !first {
			if tok.Type != fyh.FLOW_ENTRY_TOKEN {
				return nil, fy_parse_error(p, diag.KIND_SYNTAX, tok.Atom.Start_mark,
					"did not find expected ',' or '}'",
					"while parsing a flow mapping", p.marks[len(p.marks)-1])
			}
			fy_drop_token(p)
			if tok, err = fy_peek_token(p); err != nil {
				return nil, err
			}
		}

		if tok.Type == fyh.KEY_TOKEN {
			fy_drop_token(p)
			if tok, err = fy_peek_token(p); err != nil {
				return nil, err
			}
			if tok.Type != fyh.VALUE_TOKEN &&
				tok.Type != fyh.FLOW_ENTRY_TOKEN &&
				tok.Type != fyh.FLOW_MAPPING_END_TOKEN {
				fy_push_state(p, PARSE_FLOW_MAPPING_VALUE_STATE)
				return fy_parse_node(p, false, false)
			}
			p.state = PARSE_FLOW_MAPPING_VALUE_STATE
			return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
		}

		if tok.Type != fyh.FLOW_MAPPING_END_TOKEN {
			fy_push_state(p, PARSE_FLOW_MAPPING_EMPTY_VALUE_STATE)
			return fy_parse_node(p, false, false)
		}
	}

	p.state = fy_pop_state(p)
	fy_pop_mark(p)
	ev := p.newEvent()
	ev.Type = fyh.MAPPING_END_EVENT
	ev.Start_mark = tok.Atom.Start_mark
	ev.End_mark = tok.Atom.End_mark
	ev.Document = p.document.Ref()
	fy_drop_token(p)
	return ev, nil
}

// Parse the productions:
// flow_mapping_entry ::= flow_node | KEY flow_node? (VALUE flow_node?)?
//                                                    *                  ***** *
func fy_parse_flow_mapping_value(p *Parser, empty bool) (*fyh.Event, error) {
	tok, err := fy_peek_token(p)
	if err != nil {
		return nil, err
	}
	if empty {
		p.state = PARSE_FLOW_MAPPING_KEY_STATE
		return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
	}
	if tok.Type == fyh.VALUE_TOKEN {
		fy_drop_token(p)
		if tok, err = fy_peek_token(p); err != nil {
			return nil, err
		}
		if tok.Type != fyh.FLOW_ENTRY_TOKEN && tok.Type != fyh.FLOW_MAPPING_END_TOKEN {
			fy_push_state(p, PARSE_FLOW_MAPPING_KEY_STATE)
			return fy_parse_node(p, false, false)
		}
	}
	p.state = PARSE_FLOW_MAPPING_KEY_STATE
	return fy_empty_scalar_event(p, tok.Atom.Start_mark), nil
}
