//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"fmt"

	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
	"github.com/pantoniou/libfyaml-go/internal/parserc"
)

// DecodeConfig carries the decoding knobs.
type DecodeConfig struct {
	// Schema forces the scalar classification rules; SCHEMA_CORE when
	// zero. YAML 1.1 documents switch to the 1.1 rules on their own.
	Schema Schema

	// Resolve replaces aliases by their targets and rejects duplicate
	// mapping keys.
	Resolve bool
}

// Document is a fully decoded document: the root value, the anchor
// registry and the document state it was parsed under.
type Document struct {
	Root  Value
	State *fyh.DocumentState

	anchors  []anchorRec
	resolver Resolver
}

func (doc *Document) Resolver() Resolver { return doc.resolver }

// Anchor looks up an anchored value by name.
func (doc *Document) Anchor(name []byte) (Value, bool) {
	for i := range doc.anchors {
		if string(doc.anchors[i].name) == string(name) {
			return doc.anchors[i].value, true
		}
	}
	return Invalid, false
}

// Anchors returns the anchor registry in document order.
func (doc *Document) Anchors() []AnchorEntry {
	out := make([]AnchorEntry, 0, len(doc.anchors))
	for i := range doc.anchors {
		out = append(out, AnchorEntry{Name: doc.anchors[i].name, Value: doc.anchors[i].value})
	}
	return out
}

type AnchorEntry struct {
	Name  []byte
	Value Value
}

// anchorRec tracks one anchor. An anchor on a collection stays in the
// collecting state until the matching end event fires.
type anchorRec struct {
	name       []byte
	value      Value
	collecting bool
	nest       int
}

// frame is one collection under construction. It lives in the first
// user data slot of the collection's path component, from the start
// event to the matching end event.
type frame struct {
	mapping   bool
	words     []Value
	anchorIdx int // index into anchors while collecting, -1 if none.

	mergeNext bool    // the upcoming value is a merge argument.
	merges    []Value // merge arguments, applied at mapping end.
}

// decor carries the anchor/tag tokens of a collection start event in
// the second user data slot until the end event folds them in.
type decor struct {
	anchor *fyh.Token
	tag    *fyh.Token
}

func (dc *decor) release() {
	dc.anchor.Unref()
	dc.tag.Unref()
}

// Decoder bridges the composer event stream into generic value
// construction through a builder.
type Decoder struct {
	b    *Builder
	cfg  DecodeConfig
	diag *diag.Diag

	docs    []*Document
	state   *fyh.DocumentState
	root    Value
	hasRoot bool
	anchors []anchorRec

	err error
}

func NewDecoder(b *Builder, cfg DecodeConfig, d *diag.Diag) *Decoder {
	if d == nil {
		d = diag.New(diag.Config{Quiet: true})
	}
	return &Decoder{b: b, cfg: cfg, diag: d}
}

// Documents returns the documents decoded so far.
func (d *Decoder) Documents() []*Document { return d.docs }

// Err returns the first decode error.
func (d *Decoder) Err() error { return d.err }

// Decode drives the parser to the end of the stream, decoding every
// document.
func (d *Decoder) Decode(p *parserc.Parser) error {
	if err := p.Compose(d.Event, nil); err != nil {
		return err
	}
	return d.err
}

func (d *Decoder) fail(kind diag.Kind, mark fyh.Position, problem string) parserc.ComposeVerdict {
	e := &diag.Error{
		Kind:       kind,
		Module:     "decode",
		Problem:    problem,
		Start_mark: mark,
		End_mark:   mark,
	}
	d.diag.ReportError(e)
	d.err = e
	return parserc.COMPOSE_ERROR
}

// schema returns the classification rules for the current document.
func (d *Decoder) schema() Schema {
	if d.cfg.Schema != SCHEMA_CORE {
		return d.cfg.Schema
	}
	if d.state != nil && d.state.Version.Major == 1 && d.state.Version.Minor == 1 {
		return SCHEMA_YAML_1_1
	}
	return SCHEMA_CORE
}

// Event is the compose callback; wire it through Parser.Compose. The
// per-collection build state rides in the path components' user data
// slots, scoped exactly to the component lifetime.
func (d *Decoder) Event(p *parserc.Parser, ev *fyh.Event, path *parserc.Path, _ any) parserc.ComposeVerdict {
	switch ev.Type {
	case fyh.STREAM_START_EVENT, fyh.STREAM_END_EVENT:
		return parserc.COMPOSE_CONTINUE

	case fyh.DOCUMENT_START_EVENT:
		d.state = ev.Document.Ref()
		d.root = Null
		d.hasRoot = false
		d.anchors = nil
		return parserc.COMPOSE_CONTINUE

	case fyh.DOCUMENT_END_EVENT:
		doc := &Document{
			Root:     d.root,
			State:    d.state,
			anchors:  d.anchors,
			resolver: d.b,
		}
		d.docs = append(d.docs, doc)
		d.state = nil
		d.anchors = nil
		return parserc.COMPOSE_CONTINUE

	case fyh.SEQUENCE_START_EVENT, fyh.MAPPING_START_EVENT:
		for i := range d.anchors {
			if d.anchors[i].collecting {
				d.anchors[i].nest++
			}
		}
		f := &frame{
			mapping:   ev.Type == fyh.MAPPING_START_EVENT,
			anchorIdx: -1,
		}
		if name := ev.AnchorValue(); name != nil {
			f.anchorIdx = len(d.anchors)
			d.anchors = append(d.anchors, anchorRec{
				name:       name,
				value:      Invalid,
				collecting: true,
				nest:       1,
			})
		}
		comp := path.Last()
		comp.UserData[0] = f
		comp.UserData[1] = &decor{anchor: ev.Anchor.Ref(), tag: ev.Tag.Ref()}
		return parserc.COMPOSE_CONTINUE

	case fyh.SEQUENCE_END_EVENT, fyh.MAPPING_END_EVENT:
		return d.endCollection(ev, path)

	case fyh.SCALAR_EVENT:
		return d.scalar(ev, path)

	case fyh.ALIAS_EVENT:
		return d.alias(ev, path)
	}
	return parserc.COMPOSE_CONTINUE
}

func (d *Decoder) scalar(ev *fyh.Event, path *parserc.Path) parserc.ComposeVerdict {
	// A plain '<<' key in a 1.1 mapping announces a merge argument.
	if path.InMappingKey() && isMergeKey(ev, d.schema()) {
		f := path.Last().UserData[0].(*frame)
		f.mergeNext = true
		return parserc.COMPOSE_CONTINUE
	}

	v, err := d.buildScalar(ev)
	if err != nil {
		return d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
	}
	v, verdict := d.decorate(v, ev)
	if verdict != parserc.COMPOSE_CONTINUE {
		return verdict
	}
	if name := ev.AnchorValue(); name != nil {
		d.anchors = append(d.anchors, anchorRec{name: name, value: v})
	}
	return d.complete(v, ev, path.Last())
}

// isMergeKey recognizes the YAML 1.1 '<<' merge key: a plain scalar
// spelled '<<', or any scalar tagged with the merge tag.
func isMergeKey(ev *fyh.Event, schema Schema) bool {
	if ev.Tag != nil {
		return string(ev.TagValue()) == fyh.MERGE_TAG
	}
	if schema != SCHEMA_YAML_1_1 {
		return false
	}
	return ev.ScalarStyle() == fyh.PLAIN_ATOM && string(ev.Value.Value()) == "<<"
}

// buildScalar classifies and materializes one scalar event.
func (d *Decoder) buildScalar(ev *fyh.Event) (Value, error) {
	text := ev.Value.Value()

	// An explicit core tag forces the classification.
	if tag := ev.TagValue(); tag != nil {
		switch string(tag) {
		case fyh.NULL_TAG:
			return Null, nil
		case fyh.BOOL_TAG:
			sc := ClassifyScalar(text, SCHEMA_YAML_1_1)
			if sc.Type != TypeBool {
				return Invalid, fmt.Errorf("scalar '%s' is not a boolean", text)
			}
			return d.b.CreateBool(sc.Bool), nil
		case fyh.INT_TAG:
			sc := ClassifyScalar(text, d.schema())
			if sc.Type != TypeInt {
				return Invalid, fmt.Errorf("scalar '%s' is not an integer", text)
			}
			return d.b.CreateInt(sc.Int)
		case fyh.FLOAT_TAG:
			sc := ClassifyScalar(text, d.schema())
			switch sc.Type {
			case TypeFloat:
				return d.b.CreateFloat(sc.Float)
			case TypeInt:
				return d.b.CreateFloat(float64(sc.Int))
			}
			return Invalid, fmt.Errorf("scalar '%s' is not a float", text)
		case fyh.STR_TAG:
			return d.b.CreateString(text)
		}
		// Application tags keep the lexical classification.
	}

	// Non-plain styles are strings by construction.
	if ev.Value != nil && ev.Value.Atom.Style != fyh.PLAIN_ATOM {
		return d.b.CreateString(text)
	}

	sc := ClassifyScalar(text, d.schema())
	switch sc.Type {
	case TypeNull:
		return Null, nil
	case TypeBool:
		return d.b.CreateBool(sc.Bool), nil
	case TypeInt:
		return d.b.CreateInt(sc.Int)
	case TypeFloat:
		return d.b.CreateFloat(sc.Float)
	}
	return d.b.CreateString(text)
}

// decorate wraps an anchored or application tagged node as an indirect
// so the metadata survives in the tree. Resolving mode strips it.
func (d *Decoder) decorate(v Value, ev *fyh.Event) (Value, parserc.ComposeVerdict) {
	if d.cfg.Resolve {
		return v, parserc.COMPOSE_CONTINUE
	}
	name := ev.AnchorValue()
	tag := ev.TagValue()
	if name == nil && tag == nil {
		return v, parserc.COMPOSE_CONTINUE
	}
	anchorV, tagV := Null, Null
	var err error
	if name != nil {
		if anchorV, err = d.b.CreateString(name); err != nil {
			return Invalid, d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
		}
	}
	if tag != nil {
		if tagV, err = d.b.CreateString(tag); err != nil {
			return Invalid, d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
		}
	}
	iv, err := d.b.CreateIndirect(v, anchorV, tagV)
	if err != nil {
		return Invalid, d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
	}
	return iv, parserc.COMPOSE_CONTINUE
}

func (d *Decoder) alias(ev *fyh.Event, path *parserc.Path) parserc.ComposeVerdict {
	name := ev.AnchorValue()

	if !d.cfg.Resolve {
		v, err := d.b.CreateAlias(name)
		if err != nil {
			return d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
		}
		return d.complete(v, ev, path.Last())
	}

	// Resolving: the most recent definition of the anchor wins.
	for i := len(d.anchors) - 1; i >= 0; i-- {
		rec := &d.anchors[i]
		if string(rec.name) != string(name) {
			continue
		}
		if rec.collecting {
			return d.fail(diag.KIND_ALIAS_CYCLE, ev.Start_mark,
				fmt.Sprintf("alias '*%s' references an anchor still being collected", name))
		}
		return d.complete(rec.value, ev, path.Last())
	}
	return d.fail(diag.KIND_UNRESOLVED_ANCHOR, ev.Start_mark,
		fmt.Sprintf("alias '*%s' references an undefined anchor", name))
}

// endCollection closes the component the path cursor still points at;
// the finished value attaches to the enclosing component.
func (d *Decoder) endCollection(ev *fyh.Event, path *parserc.Path) parserc.ComposeVerdict {
	comp := path.Last()
	f := comp.UserData[0].(*frame)
	dc := comp.UserData[1].(*decor)

	var v Value
	var err error
	if f.mapping {
		words := f.words
		if words, err = d.applyMerges(f, words, ev); err != nil {
			dc.release()
			return parserc.COMPOSE_ERROR
		}
		if d.cfg.Resolve {
			if dup := d.findDuplicateKey(words); dup != nil {
				dc.release()
				return d.fail(diag.KIND_DUPLICATE_KEY, ev.Start_mark,
					fmt.Sprintf("duplicate mapping key '%s'", dup))
			}
		}
		v, err = d.b.CreateMapping(words)
	} else {
		v, err = d.b.CreateSequence(f.words)
	}
	if err != nil {
		dc.release()
		return d.fail(diag.KIND_ALLOC_FAILED, ev.Start_mark, err.Error())
	}

	// Fold in the anchor/tag that decorated the start event.
	sev := &fyh.Event{
		Type:       ev.Type,
		Start_mark: ev.Start_mark,
		Anchor:     dc.anchor,
		Tag:        dc.tag,
	}
	v, verdict := d.decorate(v, sev)
	if verdict != parserc.COMPOSE_CONTINUE {
		dc.release()
		return verdict
	}

	// Settle the collecting anchors.
	for i := range d.anchors {
		rec := &d.anchors[i]
		if !rec.collecting {
			continue
		}
		rec.nest--
		if rec.nest == 0 {
			rec.collecting = false
			if i == f.anchorIdx {
				rec.value = v
			}
		}
	}
	dc.release()
	return d.complete(v, ev, path.Parent())
}

// applyMerges splices the merge arguments into the mapping words;
// existing keys win, and earlier merge arguments win over later ones.
func (d *Decoder) applyMerges(f *frame, words []Value, ev *fyh.Event) ([]Value, error) {
	for _, m := range f.merges {
		mv, ok := d.chase(m)
		if !ok {
			d.fail(diag.KIND_UNRESOLVED_ANCHOR, ev.Start_mark,
				"merge argument references an undefined anchor")
			return nil, d.err
		}
		var pairs []Value
		if p, ok := MappingPairs(d.b, mv); ok {
			pairs = p
		} else if items, ok := SequenceItems(d.b, mv); ok {
			for _, it := range items {
				p, ok := MappingPairs(d.b, IndirectValue(d.b, it))
				if !ok {
					d.fail(diag.KIND_INVALID_MERGE, ev.Start_mark,
						"merge sequence entry is not a mapping")
					return nil, d.err
				}
				pairs = append(pairs, p...)
			}
		} else {
			d.fail(diag.KIND_INVALID_MERGE, ev.Start_mark,
				"merge argument is not a mapping or a sequence of mappings")
			return nil, d.err
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			if d.mappingHasKey(words, pairs[i]) {
				continue
			}
			words = append(words, pairs[i], pairs[i+1])
		}
	}
	return words, nil
}

// chase lowers indirect wrappers and (in preserving mode) aliases to
// a concrete value through the anchor registry.
func (d *Decoder) chase(v Value) (Value, bool) {
	for depth := 0; depth < 256; depth++ {
		switch TypeOf(v) {
		case TypeIndirect:
			v = IndirectValue(d.b, v)
		case TypeAlias:
			name, _ := AliasName(d.b, v)
			found := false
			for i := len(d.anchors) - 1; i >= 0; i-- {
				if string(d.anchors[i].name) == string(name) && !d.anchors[i].collecting {
					v = d.anchors[i].value
					found = true
					break
				}
			}
			if !found {
				return Invalid, false
			}
		default:
			return v, true
		}
	}
	return Invalid, false
}

func (d *Decoder) mappingHasKey(words []Value, key Value) bool {
	for i := 0; i+1 < len(words); i += 2 {
		if Compare(d.b, words[i], d.b, key) == 0 {
			return true
		}
	}
	return false
}

func (d *Decoder) findDuplicateKey(words []Value) []byte {
	for i := 0; i+1 < len(words); i += 2 {
		for j := i + 2; j+1 < len(words); j += 2 {
			if Compare(d.b, words[i], d.b, words[j]) == 0 {
				if s, ok := GetString(d.b, IndirectValue(d.b, words[i])); ok {
					return s
				}
				return []byte("<non-string>")
			}
		}
	}
	return nil
}

// complete attaches a finished value to the enclosing component's
// frame, or installs it as the document root.
func (d *Decoder) complete(v Value, ev *fyh.Event, comp *parserc.PathComponent) parserc.ComposeVerdict {
	if comp == nil || comp.Kind() == parserc.COMP_ROOT {
		if d.hasRoot {
			return d.fail(diag.KIND_SYNTAX, ev.Start_mark, "multiple document roots")
		}
		d.root = v
		d.hasRoot = true
		return parserc.COMPOSE_CONTINUE
	}
	f := comp.UserData[0].(*frame)
	if f.mapping && f.mergeNext {
		f.merges = append(f.merges, v)
		f.mergeNext = false
		return parserc.COMPOSE_CONTINUE
	}
	f.words = append(f.words, v)
	return parserc.COMPOSE_CONTINUE
}
