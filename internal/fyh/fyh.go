//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package fyh holds the types shared between the reader, scanner, parser
// and composer: positions, atoms, tokens, events and per-document state.
package fyh

import (
	"fmt"
	"sync/atomic"
)

// Position is a location in an input: byte offset, line and column.
// Columns count Unicode scalar widths, not bytes.
type Position struct {
	Offset int // byte Offset from the start of the input.
	Line   int // zero based Line.
	Column int // zero based Column.
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

type VersionDirective struct {
	Major int8
	Minor int8
}

func (vd VersionDirective) String() string {
	return fmt.Sprintf("%d.%d", vd.Major, vd.Minor)
}

// DefaultVersion is the version assumed when no %YAML directive appears.
var DefaultVersion = VersionDirective{Major: 1, Minor: 2}

type TagDirective struct {
	Handle []byte // the tag Handle, i.e. "!!".
	Prefix []byte // the tag Prefix, i.e. "tag:yaml.org,2002:".
}

type AtomStyle int8

// Atom styles.
const (
	PLAIN_ATOM AtomStyle = iota
	SINGLE_QUOTED_ATOM
	DOUBLE_QUOTED_ATOM
	LITERAL_ATOM
	FOLDED_ATOM
	URI_ATOM
	COMMENT_ATOM
)

func (as AtomStyle) String() string {
	switch as {
	case PLAIN_ATOM:
		return "plain"
	case SINGLE_QUOTED_ATOM:
		return "single-quoted"
	case DOUBLE_QUOTED_ATOM:
		return "double-quoted"
	case LITERAL_ATOM:
		return "literal"
	case FOLDED_ATOM:
		return "folded"
	case URI_ATOM:
		return "uri"
	case COMMENT_ATOM:
		return "comment"
	}
	return "<unknown atom style>"
}

type AtomChomp int8

// Block scalar chomping modes.
const (
	CHOMP_CLIP  AtomChomp = iota // default; single trailing line break.
	CHOMP_STRIP                  // '-'; no trailing line break.
	CHOMP_KEEP                   // '+'; all trailing line breaks.
)

// Atom flags, precomputed during scanning.
const (
	ATOM_DIRECT_OUTPUT  = 1 << iota // cooked text is byte identical to the source.
	ATOM_HAS_WS                     // contains whitespace.
	ATOM_HAS_LB                     // contains a line break.
	ATOM_STARTS_WITH_WS             // first character is whitespace.
	ATOM_STARTS_WITH_LB             // first character is a line break.
	ATOM_ENDS_WITH_WS               // last character is whitespace.
	ATOM_ENDS_WITH_LB               // last character is a line break.
	ATOM_TRAILING_LB                // cooked text ends with a line break.
	ATOM_EMPTY                      // cooked text is empty.
	ATOM_SIZE0                      // source region is empty.
	ATOM_VALID_ANCHOR               // text is usable as an anchor name.
)

// Atom is a captured source region together with the style it was
// written in and the cooked (post escape/fold processing) text.
type Atom struct {
	Start_mark Position
	End_mark   Position
	Style      AtomStyle
	Chomp      AtomChomp
	Increment  int // explicit block scalar indentation indicator, 0 if none.
	Flags      uint32

	// Cooked text of the atom. When ATOM_DIRECT_OUTPUT is set this
	// aliases the source bytes of the owning input.
	Value []byte

	// The owning input, pinned while the atom is outstanding.
	Input *InputRef
}

// StorageHint is the size of the cooked text; computable without
// re-processing the source region.
func (a *Atom) StorageHint() int { return len(a.Value) }

func (a *Atom) Empty() bool { return a.Flags&ATOM_EMPTY != 0 }

// InputRef is the reference counting handle the reader hands out for
// every open input. Atoms hold one so that source bytes stay
// addressable for as long as any token references them.
type InputRef struct {
	Name     string
	refs     int32
	closefn  func()
	released int32
}

func NewInputRef(name string, closefn func()) *InputRef {
	return &InputRef{Name: name, refs: 1, closefn: closefn}
}

func (ir *InputRef) Ref() *InputRef {
	if ir != nil {
		atomic.AddInt32(&ir.refs, 1)
	}
	return ir
}

func (ir *InputRef) Unref() {
	if ir == nil {
		return
	}
	if atomic.AddInt32(&ir.refs, -1) == 0 {
		if atomic.CompareAndSwapInt32(&ir.released, 0, 1) && ir.closefn != nil {
			ir.closefn()
		}
	}
}

type TokenType int

// Token types.
const (
	NO_TOKEN TokenType = iota

	STREAM_START_TOKEN
	STREAM_END_TOKEN

	VERSION_DIRECTIVE_TOKEN
	TAG_DIRECTIVE_TOKEN
	DOCUMENT_START_TOKEN
	DOCUMENT_END_TOKEN

	BLOCK_SEQUENCE_START_TOKEN
	BLOCK_MAPPING_START_TOKEN
	BLOCK_END_TOKEN

	FLOW_SEQUENCE_START_TOKEN
	FLOW_SEQUENCE_END_TOKEN
	FLOW_MAPPING_START_TOKEN
	FLOW_MAPPING_END_TOKEN

	BLOCK_ENTRY_TOKEN
	FLOW_ENTRY_TOKEN
	KEY_TOKEN
	VALUE_TOKEN

	ALIAS_TOKEN
	ANCHOR_TOKEN
	TAG_TOKEN
	SCALAR_TOKEN
	COMMENT_TOKEN
)

var tokenStrings = []string{
	NO_TOKEN:                   "NO_TOKEN",
	STREAM_START_TOKEN:         "STREAM_START_TOKEN",
	STREAM_END_TOKEN:           "STREAM_END_TOKEN",
	VERSION_DIRECTIVE_TOKEN:    "VERSION_DIRECTIVE_TOKEN",
	TAG_DIRECTIVE_TOKEN:        "TAG_DIRECTIVE_TOKEN",
	DOCUMENT_START_TOKEN:       "DOCUMENT_START_TOKEN",
	DOCUMENT_END_TOKEN:         "DOCUMENT_END_TOKEN",
	BLOCK_SEQUENCE_START_TOKEN: "BLOCK_SEQUENCE_START_TOKEN",
	BLOCK_MAPPING_START_TOKEN:  "BLOCK_MAPPING_START_TOKEN",
	BLOCK_END_TOKEN:            "BLOCK_END_TOKEN",
	FLOW_SEQUENCE_START_TOKEN:  "FLOW_SEQUENCE_START_TOKEN",
	FLOW_SEQUENCE_END_TOKEN:    "FLOW_SEQUENCE_END_TOKEN",
	FLOW_MAPPING_START_TOKEN:   "FLOW_MAPPING_START_TOKEN",
	FLOW_MAPPING_END_TOKEN:     "FLOW_MAPPING_END_TOKEN",
	BLOCK_ENTRY_TOKEN:          "BLOCK_ENTRY_TOKEN",
	FLOW_ENTRY_TOKEN:           "FLOW_ENTRY_TOKEN",
	KEY_TOKEN:                  "KEY_TOKEN",
	VALUE_TOKEN:                "VALUE_TOKEN",
	ALIAS_TOKEN:                "ALIAS_TOKEN",
	ANCHOR_TOKEN:               "ANCHOR_TOKEN",
	TAG_TOKEN:                  "TAG_TOKEN",
	SCALAR_TOKEN:               "SCALAR_TOKEN",
	COMMENT_TOKEN:              "COMMENT_TOKEN",
}

func (tt TokenType) String() string {
	if tt < 0 || int(tt) >= len(tokenStrings) {
		return "<unknown token>"
	}
	return tokenStrings[tt]
}

// Token is a scanner production. Tokens are reference counted; events
// and indirect generic nodes hold references.
type Token struct {
	Type TokenType
	Atom Atom

	// The tag Suffix (for TAG_TOKEN) and the tag directive Prefix
	// (for TAG_DIRECTIVE_TOKEN).
	Suffix []byte
	Prefix []byte

	// The version directive numbers (for VERSION_DIRECTIVE_TOKEN).
	Major, Minor int8

	refs int32
}

func NewToken(typ TokenType, atom Atom) *Token {
	atom.Input = atom.Input.Ref()
	return &Token{Type: typ, Atom: atom, refs: 1}
}

func (t *Token) Ref() *Token {
	if t != nil {
		atomic.AddInt32(&t.refs, 1)
	}
	return t
}

func (t *Token) Unref() {
	if t == nil {
		return
	}
	if atomic.AddInt32(&t.refs, -1) == 0 {
		t.Atom.Input.Unref()
		t.Atom.Input = nil
	}
}

func (t *Token) Value() []byte {
	if t == nil {
		return nil
	}
	return t.Atom.Value
}

type EventType int8

// Event types.
const (
	NO_EVENT EventType = iota

	STREAM_START_EVENT
	STREAM_END_EVENT
	DOCUMENT_START_EVENT
	DOCUMENT_END_EVENT
	ALIAS_EVENT
	SCALAR_EVENT
	SEQUENCE_START_EVENT
	SEQUENCE_END_EVENT
	MAPPING_START_EVENT
	MAPPING_END_EVENT
)

var eventStrings = []string{
	NO_EVENT:             "none",
	STREAM_START_EVENT:   "stream start",
	STREAM_END_EVENT:     "stream end",
	DOCUMENT_START_EVENT: "document start",
	DOCUMENT_END_EVENT:   "document end",
	ALIAS_EVENT:          "alias",
	SCALAR_EVENT:         "scalar",
	SEQUENCE_START_EVENT: "sequence start",
	SEQUENCE_END_EVENT:   "sequence end",
	MAPPING_START_EVENT:  "mapping start",
	MAPPING_END_EVENT:    "mapping end",
}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventStrings) {
		return fmt.Sprintf("unknown event %d", e)
	}
	return eventStrings[e]
}

// DocumentState is the per-document version and tag directive context.
// It is shared between the DOCUMENT_START event, every contained node
// and the owning composer, so it is reference counted.
type DocumentState struct {
	Version          VersionDirective
	Version_explicit bool
	Tags_explicit    bool
	Start_implicit   bool
	End_implicit     bool

	Tag_directives []TagDirective

	Start_mark Position
	End_mark   Position

	refs int32
}

func NewDocumentState() *DocumentState {
	return &DocumentState{Version: DefaultVersion, refs: 1}
}

func (ds *DocumentState) Ref() *DocumentState {
	if ds != nil {
		atomic.AddInt32(&ds.refs, 1)
	}
	return ds
}

func (ds *DocumentState) Unref() {
	if ds == nil {
		return
	}
	atomic.AddInt32(&ds.refs, -1)
}

// LookupTagDirective returns the prefix for a handle, or nil.
func (ds *DocumentState) LookupTagDirective(handle []byte) []byte {
	for i := range ds.Tag_directives {
		if string(ds.Tag_directives[i].Handle) == string(handle) {
			return ds.Tag_directives[i].Prefix
		}
	}
	return nil
}

// Event is a parser production. Events hold token references which are
// released when the event is recycled.
type Event struct {
	Type EventType

	Start_mark Position
	End_mark   Position

	// The document state (for DOCUMENT_START_EVENT and onwards).
	Document *DocumentState

	// Anchor and tag tokens (for SCALAR, SEQUENCE_START, MAPPING_START;
	// Anchor doubles as the alias token for ALIAS_EVENT).
	Anchor *Token
	Tag    *Token

	// The value token (for SCALAR_EVENT).
	Value *Token

	// Document start/end indicators were implied.
	Implicit bool
}

// Release drops all token and document state references held by the event.
func (e *Event) Release() {
	e.Anchor.Unref()
	e.Tag.Unref()
	e.Value.Unref()
	e.Document.Unref()
	*e = Event{}
}

// ScalarStyle maps the value atom style of a scalar event.
func (e *Event) ScalarStyle() AtomStyle {
	if e.Value == nil {
		return PLAIN_ATOM
	}
	return e.Value.Atom.Style
}

// TagValue returns the fully resolved tag of the event, or nil.
func (e *Event) TagValue() []byte {
	if e.Tag == nil {
		return nil
	}
	return e.Tag.Atom.Value
}

// AnchorValue returns the anchor (or alias) name of the event, or nil.
func (e *Event) AnchorValue() []byte {
	if e.Anchor == nil {
		return nil
	}
	return e.Anchor.Atom.Value
}

// Well known core schema tags.
const (
	NULL_TAG  = "tag:yaml.org,2002:null"
	BOOL_TAG  = "tag:yaml.org,2002:bool"
	STR_TAG   = "tag:yaml.org,2002:str"
	INT_TAG   = "tag:yaml.org,2002:int"
	FLOAT_TAG = "tag:yaml.org,2002:float"
	SEQ_TAG   = "tag:yaml.org,2002:seq"
	MAP_TAG   = "tag:yaml.org,2002:map"
	MERGE_TAG = "tag:yaml.org,2002:merge"
)

// The default tag directives in effect when a document carries none.
var DefaultTagDirectives = []TagDirective{
	{Handle: []byte("!"), Prefix: []byte("!")},
	{Handle: []byte("!!"), Prefix: []byte("tag:yaml.org,2002:")},
}
