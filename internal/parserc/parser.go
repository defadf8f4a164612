//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package parserc implements the streaming pipeline: a reader lowering
// raw octets to Unicode scalars, a scanner producing the token stream,
// a state machine parser emitting structural events, and a composer
// routing events through an application callback with a live path
// cursor.
package parserc

import (
	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// ParserState The states of the parser.
type ParserState int

const (
	PARSE_STREAM_START_STATE ParserState = iota

	PARSE_IMPLICIT_DOCUMENT_START_STATE           // expect the beginning of an implicit document.
	PARSE_DOCUMENT_START_STATE                    // expect DOCUMENT-START.
	PARSE_DOCUMENT_CONTENT_STATE                  // expect the content of a document.
	PARSE_DOCUMENT_END_STATE                      // expect DOCUMENT-END.
	PARSE_SINGLE_DOCUMENT_END_STATE               // single document mode; only STREAM-END may follow.
	PARSE_BLOCK_NODE_STATE                        // expect a block node.
	PARSE_BLOCK_NODE_OR_INDENTLESS_SEQUENCE_STATE // expect a block node or indentless sequence.
	PARSE_FLOW_NODE_STATE                         // expect a flow node.
	PARSE_BLOCK_SEQUENCE_FIRST_ENTRY_STATE        // expect the first entry of a block sequence.
	PARSE_BLOCK_SEQUENCE_ENTRY_STATE              // expect an entry of a block sequence.
	PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE         // expect an entry of an indentless sequence.
	PARSE_BLOCK_MAPPING_FIRST_KEY_STATE           // expect the first key of a block mapping.
	PARSE_BLOCK_MAPPING_KEY_STATE                 // expect a block mapping key.
	PARSE_BLOCK_MAPPING_VALUE_STATE               // expect a block mapping value.
	PARSE_FLOW_SEQUENCE_FIRST_ENTRY_STATE         // expect the first entry of a flow sequence.
	PARSE_FLOW_SEQUENCE_ENTRY_STATE               // expect an entry of a flow sequence.
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_KEY_STATE   // expect a key of an ordered mapping.
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE // expect a value of an ordered mapping.
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE   // expect the end of an ordered mapping entry.
	PARSE_FLOW_MAPPING_FIRST_KEY_STATE            // expect the first key of a flow mapping.
	PARSE_FLOW_MAPPING_KEY_STATE                  // expect a key of a flow mapping.
	PARSE_FLOW_MAPPING_VALUE_STATE                // expect a value of a flow mapping.
	PARSE_FLOW_MAPPING_EMPTY_VALUE_STATE          // expect an empty value of a flow mapping.
	PARSE_END_STATE                               // expect nothing.
)

var parserStateStrings = map[ParserState]string{
	PARSE_STREAM_START_STATE:                      "PARSE_STREAM_START_STATE",
	PARSE_IMPLICIT_DOCUMENT_START_STATE:           "PARSE_IMPLICIT_DOCUMENT_START_STATE",
	PARSE_DOCUMENT_START_STATE:                    "PARSE_DOCUMENT_START_STATE",
	PARSE_DOCUMENT_CONTENT_STATE:                  "PARSE_DOCUMENT_CONTENT_STATE",
	PARSE_DOCUMENT_END_STATE:                      "PARSE_DOCUMENT_END_STATE",
	PARSE_SINGLE_DOCUMENT_END_STATE:               "PARSE_SINGLE_DOCUMENT_END_STATE",
	PARSE_BLOCK_NODE_STATE:                        "PARSE_BLOCK_NODE_STATE",
	PARSE_BLOCK_NODE_OR_INDENTLESS_SEQUENCE_STATE: "PARSE_BLOCK_NODE_OR_INDENTLESS_SEQUENCE_STATE",
	PARSE_FLOW_NODE_STATE:                         "PARSE_FLOW_NODE_STATE",
	PARSE_BLOCK_SEQUENCE_FIRST_ENTRY_STATE:        "PARSE_BLOCK_SEQUENCE_FIRST_ENTRY_STATE",
	PARSE_BLOCK_SEQUENCE_ENTRY_STATE:              "PARSE_BLOCK_SEQUENCE_ENTRY_STATE",
	PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE:         "PARSE_INDENTLESS_SEQUENCE_ENTRY_STATE",
	PARSE_BLOCK_MAPPING_FIRST_KEY_STATE:           "PARSE_BLOCK_MAPPING_FIRST_KEY_STATE",
	PARSE_BLOCK_MAPPING_KEY_STATE:                 "PARSE_BLOCK_MAPPING_KEY_STATE",
	PARSE_BLOCK_MAPPING_VALUE_STATE:               "PARSE_BLOCK_MAPPING_VALUE_STATE",
	PARSE_FLOW_SEQUENCE_FIRST_ENTRY_STATE:         "PARSE_FLOW_SEQUENCE_FIRST_ENTRY_STATE",
	PARSE_FLOW_SEQUENCE_ENTRY_STATE:               "PARSE_FLOW_SEQUENCE_ENTRY_STATE",
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_KEY_STATE:   "PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_KEY_STATE",
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE: "PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_VALUE_STATE",
	PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE:   "PARSE_FLOW_SEQUENCE_ENTRY_MAPPING_END_STATE",
	PARSE_FLOW_MAPPING_FIRST_KEY_STATE:            "PARSE_FLOW_MAPPING_FIRST_KEY_STATE",
	PARSE_FLOW_MAPPING_KEY_STATE:                  "PARSE_FLOW_MAPPING_KEY_STATE",
	PARSE_FLOW_MAPPING_VALUE_STATE:                "PARSE_FLOW_MAPPING_VALUE_STATE",
	PARSE_FLOW_MAPPING_EMPTY_VALUE_STATE:          "PARSE_FLOW_MAPPING_EMPTY_VALUE_STATE",
	PARSE_END_STATE:                               "PARSE_END_STATE",
}

func (ps ParserState) String() string {
	if s, ok := parserStateStrings[ps]; ok {
		return s
	}
	return "<unknown parser state>"
}

// Version is the default YAML version in effect before any %YAML
// directive.
type Version int

const (
	VERSION_AUTO Version = iota // 1.2 rules until a directive says otherwise.
	VERSION_1_1
	VERSION_1_2
	VERSION_1_3
)

// JSONMode controls the JSON compatibility restrictions.
type JSONMode int

const (
	JSON_AUTO  JSONMode = iota // on when the input name ends in ".json".
	JSON_FORCE                 // always on.
	JSON_OFF                   // never on.
)

// Tab handling values; positive values are the tab column width.
const (
	TAB_NONE = 0  // tabs never count towards indentation.
	TAB_AUTO = -1 // width of 8.
)

// ParseConfig carries the knobs of a parser instance.
type ParseConfig struct {
	DefaultVersion Version
	JSONMode       JSONMode
	TabHandling    int

	ResolveDocument       bool // resolve aliases while composing.
	ParseComments         bool // produce COMMENT tokens.
	SloppyFlowIndentation bool // relax flow content indent checks.
	YPathAliases          bool // permit path expressions in alias position.
	SingleDocument        bool // only one document, then stream end.

	DisableMmap         bool
	DisableAccelerators bool
	DisableRecycling    bool

	Diag *diag.Diag
}

// flowType is the kind of the enclosing flow collection.
type flowType int8

const (
	flowNone flowType = iota
	flowSequence
	flowMapping
)

type flowState struct {
	typ flowType
}

// simpleKey is a candidate token that a later ':' may retroactively
// promote to a mapping key.
type simpleKey struct {
	possible    bool
	required    bool
	tokenNumber int
	mark        fyh.Position
}

// Parser drives the whole pipeline for one stream.
type Parser struct {
	cfg  ParseConfig
	diag *diag.Diag

	reader *Reader

	// Scanner state.
	streamStartProduced bool
	streamEndProduced   bool
	directivesSeen      bool

	flowLevel int
	flow      []flowState

	tokens         []*fyh.Token
	tokensHead     int
	tokensParsed   int
	tokenAvailable bool

	indent  int
	indents []int

	simpleKeyAllowed bool
	simpleKeys       []simpleKey
	simpleKeysByTok  map[int]int

	lastComment *fyh.Token

	// Forward progress watchdog; a full fetch pass with no consumption
	// and no token is a stuck scanner.
	stuckCount int

	// Parser state.
	state          ParserState
	states         []ParserState
	marks          []fyh.Position
	document       *fyh.DocumentState
	pendingVersion *fyh.VersionDirective
	pendingTags    []fyh.TagDirective

	// Composer state; survives a COMPOSE_STOP pause.
	path *Path

	// Event recycling.
	eventPool []*fyh.Event

	// Sticky stream error; only Reset clears it.
	fatal error
}

// NewParser creates a parser; inputs are supplied with PushInput.
func NewParser(cfg ParseConfig) *Parser {
	d := cfg.Diag
	if d == nil {
		d = diag.New(diag.Config{Quiet: true})
	}
	p := &Parser{
		cfg:    cfg,
		diag:   d,
		indent: -1,
		state:  PARSE_STREAM_START_STATE,
	}
	p.reader = newReader(p)
	return p
}

// Config returns the active configuration.
func (p *Parser) Config() ParseConfig { return p.cfg }

// Diag returns the diagnostic sink.
func (p *Parser) Diag() *diag.Diag { return p.diag }

// PushInput queues an input. Inputs open lazily when scanning reaches
// them and concatenate into a single logical stream.
func (p *Parser) PushInput(icfg *InputConfig) error {
	return p.reader.pushInput(icfg)
}

// Stuck reports whether the parser hit a stream error; every call but
// Reset keeps failing until then.
func (p *Parser) Stuck() bool { return p.fatal != nil }

// Reset releases queued tokens and pending state and returns the
// parser to the stream start, ready for new inputs.
func (p *Parser) Reset() {
	for _, t := range p.tokens[p.tokensHead:] {
		t.Unref()
	}
	p.tokens = nil
	p.tokensHead = 0
	p.tokensParsed = 0
	p.tokenAvailable = false
	p.streamStartProduced = false
	p.streamEndProduced = false
	p.directivesSeen = false
	p.flowLevel = 0
	p.flow = nil
	p.indent = -1
	p.indents = nil
	p.simpleKeyAllowed = false
	p.simpleKeys = nil
	p.simpleKeysByTok = nil
	p.stuckCount = 0
	p.lastComment.Unref()
	p.lastComment = nil
	p.state = PARSE_STREAM_START_STATE
	p.states = nil
	p.marks = nil
	p.document.Unref()
	p.document = nil
	p.pendingVersion = nil
	p.pendingTags = nil
	p.path = nil
	p.fatal = nil
	p.reader.reset()
}

func (p *Parser) newEvent() *fyh.Event {
	if n := len(p.eventPool); n > 0 && !p.cfg.DisableRecycling {
		ev := p.eventPool[n-1]
		p.eventPool = p.eventPool[:n-1]
		*ev = fyh.Event{}
		return ev
	}
	return &fyh.Event{}
}

// RecycleEvent acknowledges a consumed event, releasing its token
// references and returning the shell to the free list.
func (p *Parser) RecycleEvent(ev *fyh.Event) {
	if ev == nil {
		return
	}
	ev.Release()
	if !p.cfg.DisableRecycling {
		p.eventPool = append(p.eventPool, ev)
	}
}
