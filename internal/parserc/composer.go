//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package parserc

import (
	"github.com/pkg/errors"

	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// ComposeVerdict is the callback's verdict on how to continue.
type ComposeVerdict int

const (
	COMPOSE_CONTINUE    ComposeVerdict = iota
	COMPOSE_STOP                       // pause; a later Compose resumes.
	COMPOSE_STOP_STREAM                // abandon the stream; only Reset follows.
	COMPOSE_ERROR                      // abort with an error.
)

// ComposeFunc receives every event along with the live path cursor.
type ComposeFunc func(p *Parser, ev *fyh.Event, path *Path, userdata any) ComposeVerdict

// ComponentKind is the kind of a path component.
type ComponentKind int

const (
	COMP_ROOT ComponentKind = iota
	COMP_SEQUENCE
	COMP_MAPPING
)

// PathComponent is one level of the composition path. Collection
// components live from the start event to the matching end event and
// carry two user data slots for that scope.
type PathComponent struct {
	kind ComponentKind

	// Index is the position of the child being composed; -1 before
	// the first one. Sequences only.
	Index int

	// UserData persists for the scope of the component; the generic
	// decoder keeps its build state here.
	UserData [2]any

	onKey   bool // mappings: the next child is a key.
	started bool // a child event has been seen.
}

func (pc *PathComponent) Kind() ComponentKind { return pc.kind }

// Path is the stack of components from the document root down to the
// node the composer is visiting.
type Path struct {
	components []*PathComponent
	pool       []*PathComponent
}

func (path *Path) Depth() int { return len(path.components) }

// Last returns the innermost component, or nil outside a document.
func (path *Path) Last() *PathComponent {
	if n := len(path.components); n > 0 {
		return path.components[n-1]
	}
	return nil
}

// Parent returns the component enclosing the innermost one.
func (path *Path) Parent() *PathComponent {
	if n := len(path.components); n > 1 {
		return path.components[n-2]
	}
	return nil
}

func (path *Path) InRoot() bool {
	last := path.Last()
	return last != nil && last.kind == COMP_ROOT
}

func (path *Path) InSequence() bool {
	last := path.Last()
	return last != nil && last.kind == COMP_SEQUENCE
}

func (path *Path) InMapping() bool {
	last := path.Last()
	return last != nil && last.kind == COMP_MAPPING
}

func (path *Path) InMappingKey() bool {
	last := path.Last()
	return last != nil && last.kind == COMP_MAPPING && last.onKey
}

func (path *Path) InMappingValue() bool {
	last := path.Last()
	return last != nil && last.kind == COMP_MAPPING && !last.onKey
}

// InCollectionRoot reports whether the innermost collection has not
// seen any child yet.
func (path *Path) InCollectionRoot() bool {
	last := path.Last()
	return last != nil && !last.started
}

func (path *Path) push(kind ComponentKind) *PathComponent {
	var pc *PathComponent
	if n := len(path.pool); n > 0 {
		pc = path.pool[n-1]
		path.pool = path.pool[:n-1]
		*pc = PathComponent{}
	} else {
		pc = &PathComponent{}
	}
	pc.kind = kind
	pc.Index = -1
	pc.onKey = true
	path.components = append(path.components, pc)
	return pc
}

func (path *Path) pop() {
	n := len(path.components)
	pc := path.components[n-1]
	path.components = path.components[:n-1]
	path.pool = append(path.pool, pc)
}

// childStarts updates the enclosing component for a node that begins
// with this event.
func (path *Path) childStarts() {
	last := path.Last()
	if last == nil {
		return
	}
	last.started = true
	if last.kind == COMP_SEQUENCE {
		last.Index++
	}
}

// childEnds updates the enclosing component for a node that completed.
func (path *Path) childEnds() {
	last := path.Last()
	if last != nil && last.kind == COMP_MAPPING {
		last.onKey = !last.onKey
	}
}

// Compose pulls events and routes each one through the callback with
// the path cursor positioned at the event. A COMPOSE_STOP verdict
// pauses composition with the parser intact; COMPOSE_STOP_STREAM
// abandons the stream.
func (p *Parser) Compose(cb ComposeFunc, userdata any) error {
	if p.path == nil {
		p.path = &Path{}
	}
	path := p.path

	for {
		ev, err := p.Parse()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}

		var before, after func()
		switch ev.Type {
		case fyh.DOCUMENT_START_EVENT:
			before = func() { path.push(COMP_ROOT) }

		case fyh.DOCUMENT_END_EVENT:
			after = func() { path.pop() }

		case fyh.SEQUENCE_START_EVENT:
			before = func() {
				path.childStarts()
				path.push(COMP_SEQUENCE)
			}

		case fyh.MAPPING_START_EVENT:
			before = func() {
				path.childStarts()
				path.push(COMP_MAPPING)
			}

		case fyh.SEQUENCE_END_EVENT, fyh.MAPPING_END_EVENT:
			after = func() {
				path.pop()
				path.childEnds()
			}

		case fyh.SCALAR_EVENT, fyh.ALIAS_EVENT:
			before = path.childStarts
			after = path.childEnds
		}

		if before != nil {
			before()
		}
		verdict := cb(p, ev, path, userdata)
		if verdict == COMPOSE_CONTINUE && after != nil {
			after()
		}
		p.RecycleEvent(ev)

		switch verdict {
		case COMPOSE_CONTINUE:

		case COMPOSE_STOP:
			return nil

		case COMPOSE_STOP_STREAM:
			p.path = nil
			return nil

		default:
			err := errors.New("composition aborted by callback")
			p.fatal = err
			p.path = nil
			return err
		}
	}
}
