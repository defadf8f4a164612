//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package fyaml is a streaming YAML 1.1/1.2 and JSON processor: a
// scanner/parser/composer pipeline over memory mapped inputs, a tiered
// allocator family backing a tagged generic value representation, and
// a path expression engine for querying decoded documents.
package fyaml

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
	"github.com/pantoniou/libfyaml-go/internal/generic"
	"github.com/pantoniou/libfyaml-go/internal/parserc"
)

// Re-exported pipeline types; the facade adds lifecycle and decoding
// on top of them.
type (
	Event          = fyh.Event
	EventType      = fyh.EventType
	Token          = fyh.Token
	Position       = fyh.Position
	Version        = parserc.Version
	JSONMode       = parserc.JSONMode
	ComposeFunc    = parserc.ComposeFunc
	ComposeVerdict = parserc.ComposeVerdict
	Path           = parserc.Path
	PathComponent  = parserc.PathComponent
	Color          = diag.Color
	Scenario       = alloc.Scenario
	PullFunc       = parserc.PullFunc
)

const (
	VERSION_AUTO = parserc.VERSION_AUTO
	VERSION_1_1  = parserc.VERSION_1_1
	VERSION_1_2  = parserc.VERSION_1_2
	VERSION_1_3  = parserc.VERSION_1_3

	JSON_AUTO  = parserc.JSON_AUTO
	JSON_FORCE = parserc.JSON_FORCE
	JSON_OFF   = parserc.JSON_OFF

	TAB_NONE = parserc.TAB_NONE
	TAB_AUTO = parserc.TAB_AUTO

	COMPOSE_CONTINUE    = parserc.COMPOSE_CONTINUE
	COMPOSE_STOP        = parserc.COMPOSE_STOP
	COMPOSE_STOP_STREAM = parserc.COMPOSE_STOP_STREAM
	COMPOSE_ERROR       = parserc.COMPOSE_ERROR

	COLOR_AUTO = diag.COLOR_AUTO
	COLOR_ON   = diag.COLOR_ON
	COLOR_OFF  = diag.COLOR_OFF

	SCENARIO_BALANCED        = alloc.SCENARIO_BALANCED
	SCENARIO_FASTEST         = alloc.SCENARIO_FASTEST
	SCENARIO_CONSERVE_MEMORY = alloc.SCENARIO_CONSERVE_MEMORY
)

// ParseConfig carries every knob of a parser instance.
type ParseConfig struct {
	DefaultVersion Version
	JSONMode       JSONMode
	TabHandling    int

	ResolveDocument       bool // resolve aliases and reject duplicate keys.
	ParseComments         bool
	SloppyFlowIndentation bool
	YPathAliases          bool // permit '*anchor' steps in path queries.
	SingleDocument        bool

	DisableMmap         bool
	DisableAccelerators bool
	DisableRecycling    bool

	// Diagnostics.
	Quiet       bool
	CollectDiag bool
	Color       Color
	DiagOutput  io.Writer

	// Allocation scenario backing decoded documents.
	AllocScenario Scenario
}

// Input describes one queued input source.
type Input struct {
	icfg parserc.InputConfig
}

// FromFile reads (and memory maps when possible) a file.
func FromFile(path string) *Input {
	return &Input{icfg: parserc.InputConfig{Kind: parserc.INPUT_FILE, Filename: path}}
}

// FromStream reads an io.Reader in chunks.
func FromStream(name string, r io.Reader) *Input {
	return &Input{icfg: parserc.InputConfig{Kind: parserc.INPUT_STREAM, Name: name, Stream: r}}
}

// FromMemory borrows a caller owned byte slice.
func FromMemory(data []byte) *Input {
	return &Input{icfg: parserc.InputConfig{Kind: parserc.INPUT_MEMORY, Data: data}}
}

// FromAlloc takes ownership of the byte slice.
func FromAlloc(data []byte) *Input {
	return &Input{icfg: parserc.InputConfig{Kind: parserc.INPUT_ALLOC, Data: data}}
}

// FromString borrows the bytes of a string.
func FromString(s string) *Input {
	return FromAlloc([]byte(s))
}

// FromCallback pulls bytes from a function with io.Reader semantics.
func FromCallback(name string, pull PullFunc) *Input {
	return &Input{icfg: parserc.InputConfig{Kind: parserc.INPUT_CALLBACK, Name: name, Pull: pull}}
}

// Name sets the diagnostic name of the input.
func (in *Input) Name(name string) *Input {
	in.icfg.Name = name
	return in
}

// JSON overrides the JSON mode for this input only.
func (in *Input) JSON(mode JSONMode) *Input {
	in.icfg.JSONMode = mode
	return in
}

// Parser ties the pipeline to an allocator stack and a decoder.
type Parser struct {
	cfg  ParseConfig
	diag *diag.Diag
	p    *parserc.Parser

	a   *alloc.Auto
	tag alloc.Tag
	b   *generic.Builder
}

// NewParser creates a parser; queue inputs with PushInput.
func NewParser(cfg ParseConfig) (*Parser, error) {
	d := diag.New(diag.Config{
		Quiet:   cfg.Quiet,
		Collect: cfg.CollectDiag,
		Color:   cfg.Color,
		Output:  cfg.DiagOutput,
	})

	scenario := cfg.AllocScenario
	if cfg.DisableAccelerators {
		scenario = SCENARIO_FASTEST
	}
	a, err := alloc.NewAuto(&alloc.Config{Scenario: scenario})
	if err != nil {
		return nil, err
	}
	tag, err := a.GetTag()
	if err != nil {
		a.Destroy()
		return nil, err
	}

	p := parserc.NewParser(parserc.ParseConfig{
		DefaultVersion:        cfg.DefaultVersion,
		JSONMode:              cfg.JSONMode,
		TabHandling:           cfg.TabHandling,
		ResolveDocument:       cfg.ResolveDocument,
		ParseComments:         cfg.ParseComments,
		SloppyFlowIndentation: cfg.SloppyFlowIndentation,
		YPathAliases:          cfg.YPathAliases,
		SingleDocument:        cfg.SingleDocument,
		DisableMmap:           cfg.DisableMmap,
		DisableAccelerators:   cfg.DisableAccelerators,
		DisableRecycling:      cfg.DisableRecycling,
		Diag:                  d,
	})

	return &Parser{
		cfg:  cfg,
		diag: d,
		p:    p,
		a:    a,
		tag:  tag,
		b:    generic.NewBuilder(a, tag),
	}, nil
}

// Config returns the active configuration.
func (p *Parser) Config() ParseConfig { return p.cfg }

// Diag returns the diagnostic sink.
func (p *Parser) Diag() *diag.Diag { return p.diag }

// PushInput queues an input; inputs concatenate into one stream.
func (p *Parser) PushInput(in *Input) error {
	if in == nil {
		return errors.New("nil input")
	}
	return p.p.PushInput(&in.icfg)
}

// NextEvent returns the next parse event, nil at stream end. Hand the
// event back with RecycleEvent when done.
func (p *Parser) NextEvent() (*Event, error) {
	return p.p.Parse()
}

// RecycleEvent releases an event back to the pool.
func (p *Parser) RecycleEvent(ev *Event) {
	p.p.RecycleEvent(ev)
}

// Compose routes events through the callback with a live path cursor.
func (p *Parser) Compose(cb ComposeFunc, userdata any) error {
	return p.p.Compose(cb, userdata)
}

// Reset returns the parser to the stream start, ready for new inputs.
func (p *Parser) Reset() {
	p.p.Reset()
}

// Stuck reports whether the parser hit a stream error.
func (p *Parser) Stuck() bool { return p.p.Stuck() }

// Load decodes every remaining document of the stream.
func (p *Parser) Load() ([]*Document, error) {
	schema := generic.SCHEMA_CORE
	if p.cfg.JSONMode == JSON_FORCE {
		schema = generic.SCHEMA_JSON
	}
	dec := generic.NewDecoder(p.b, generic.DecodeConfig{
		Schema:  schema,
		Resolve: p.cfg.ResolveDocument,
	}, p.diag)

	if err := dec.Decode(p.p); err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(dec.Documents()))
	for _, gd := range dec.Documents() {
		docs = append(docs, &Document{gd: gd, cfg: p.cfg})
	}
	return docs, nil
}

// AllocatorDump writes a human readable report of the allocator stack.
func (p *Parser) AllocatorDump(w io.Writer) {
	p.a.Dump(w)
}

// Destroy releases the parser and every decoded document it backs.
func (p *Parser) Destroy() {
	p.a.ReleaseTag(p.tag)
	p.a.Destroy()
}

// LoadString parses a string and returns its documents. The returned
// parser backs the document memory; Destroy it when done with them.
func LoadString(s string, cfg ParseConfig) ([]*Document, *Parser, error) {
	p, err := NewParser(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err = p.PushInput(FromString(s)); err != nil {
		p.Destroy()
		return nil, nil, err
	}
	docs, err := p.Load()
	if err != nil {
		p.Destroy()
		return nil, nil, err
	}
	return docs, p, nil
}

// LoadFile parses a file and returns its documents.
func LoadFile(path string, cfg ParseConfig) ([]*Document, *Parser, error) {
	p, err := NewParser(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err = p.PushInput(FromFile(path)); err != nil {
		p.Destroy()
		return nil, nil, err
	}
	docs, err := p.Load()
	if err != nil {
		p.Destroy()
		return nil, nil, err
	}
	return docs, p, nil
}

// EventStream parses the whole stream into the test suite event
// format, one event per line.
func EventStream(p *Parser) (string, error) {
	var sb strings.Builder
	for {
		ev, err := p.NextEvent()
		if err != nil {
			return "", err
		}
		if ev == nil {
			return sb.String(), nil
		}
		sb.WriteString(EventString(ev))
		sb.WriteByte('\n')
		p.RecycleEvent(ev)
	}
}
