//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package fyaml

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/pantoniou/libfyaml-go/internal/generic"
	"github.com/pantoniou/libfyaml-go/internal/ypath"
)

// Document is a decoded document backed by the parser's allocator.
type Document struct {
	gd  *generic.Document
	cfg ParseConfig
}

// Root returns the root node; empty documents have a null root.
func (d *Document) Root() *Node {
	return &Node{doc: d, v: d.gd.Root}
}

// Version returns the YAML version the document was parsed under.
func (d *Document) Version() (major, minor int) {
	return int(d.gd.State.Version.Major), int(d.gd.State.Version.Minor)
}

// VersionExplicit reports whether a %YAML directive was present.
func (d *Document) VersionExplicit() bool { return d.gd.State.Version_explicit }

// Anchor returns the node registered under an anchor name.
func (d *Document) Anchor(name string) (*Node, bool) {
	v, ok := d.gd.Anchor([]byte(name))
	if !ok {
		return nil, false
	}
	return &Node{doc: d, v: v}, true
}

// Anchors returns the anchor names in document order.
func (d *Document) Anchors() []string {
	entries := d.gd.Anchors()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Name))
	}
	return out
}

func (d *Document) pathContext() *ypath.Context {
	return &ypath.Context{
		R: d.gd.Resolver(),
		Anchors: func(name []byte) (generic.Value, bool) {
			return d.gd.Anchor(name)
		},
		AllowAliases: d.cfg.YPathAliases,
	}
}

// Path compiles and runs a path expression against the document root.
func (d *Document) Path(expr string) ([]*Node, error) {
	e, err := ypath.Compile(expr)
	if err != nil {
		return nil, err
	}
	values, err := e.Execute(d.pathContext(), d.gd.Root)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(values))
	for _, v := range values {
		nodes = append(nodes, &Node{doc: d, v: v})
	}
	return nodes, nil
}

// PathOne runs a path expression and returns the first match.
func (d *Document) PathOne(expr string) (*Node, error) {
	e, err := ypath.Compile(expr)
	if err != nil {
		return nil, err
	}
	v, found, err := e.First(d.pathContext(), d.gd.Root)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Errorf("no match for path %q", expr)
	}
	return &Node{doc: d, v: v}, nil
}

// NodeType is the logical type of a node.
type NodeType int

const (
	NODE_INVALID NodeType = iota
	NODE_NULL
	NODE_BOOL
	NODE_INT
	NODE_FLOAT
	NODE_STRING
	NODE_SEQUENCE
	NODE_MAPPING
	NODE_ALIAS
)

func (nt NodeType) String() string {
	switch nt {
	case NODE_NULL:
		return "null"
	case NODE_BOOL:
		return "bool"
	case NODE_INT:
		return "int"
	case NODE_FLOAT:
		return "float"
	case NODE_STRING:
		return "string"
	case NODE_SEQUENCE:
		return "sequence"
	case NODE_MAPPING:
		return "mapping"
	case NODE_ALIAS:
		return "alias"
	}
	return "invalid"
}

// Node is a position in a decoded document tree.
type Node struct {
	doc *Document
	v   generic.Value
}

// value lowers anchored/tagged wrappers to the concrete value.
func (n *Node) value() generic.Value {
	return generic.IndirectValue(n.doc.gd.Resolver(), n.v)
}

func (n *Node) Type() NodeType {
	switch generic.TypeOf(n.value()) {
	case generic.TypeNull:
		return NODE_NULL
	case generic.TypeBool:
		return NODE_BOOL
	case generic.TypeInt:
		return NODE_INT
	case generic.TypeFloat:
		return NODE_FLOAT
	case generic.TypeString:
		return NODE_STRING
	case generic.TypeSequence:
		return NODE_SEQUENCE
	case generic.TypeMapping:
		return NODE_MAPPING
	case generic.TypeAlias:
		return NODE_ALIAS
	}
	return NODE_INVALID
}

// Anchor returns the anchor name decorating the node, if any.
func (n *Node) Anchor() (string, bool) {
	r := n.doc.gd.Resolver()
	v := n.v
	for generic.TypeOf(v) == generic.TypeIndirect {
		val, anchor, _, ok := generic.IndirectParts(r, v)
		if !ok {
			return "", false
		}
		if s, ok := generic.GetString(r, anchor); ok {
			return string(s), true
		}
		v = val
	}
	return "", false
}

// AliasTarget follows an alias node through the anchor registry.
func (n *Node) AliasTarget() (*Node, bool) {
	name, ok := generic.AliasName(n.doc.gd.Resolver(), n.value())
	if !ok {
		return nil, false
	}
	v, ok := n.doc.gd.Anchor(name)
	if !ok {
		return nil, false
	}
	return &Node{doc: n.doc, v: v}, true
}

func (n *Node) Bool() (bool, bool) {
	return generic.GetBool(n.value())
}

func (n *Node) Int() (int64, bool) {
	return generic.GetInt(n.doc.gd.Resolver(), n.value())
}

func (n *Node) Float() (float64, bool) {
	return generic.GetFloat(n.doc.gd.Resolver(), n.value())
}

func (n *Node) String() (string, bool) {
	s, ok := generic.GetString(n.doc.gd.Resolver(), n.value())
	return string(s), ok
}

// Len returns the child count: items for sequences, pairs for
// mappings, bytes for strings.
func (n *Node) Len() int {
	r := n.doc.gd.Resolver()
	v := n.value()
	if items, ok := generic.SequenceItems(r, v); ok {
		return len(items)
	}
	if pairs, ok := generic.MappingPairs(r, v); ok {
		return len(pairs) / 2
	}
	if s, ok := generic.GetString(r, v); ok {
		return len(s)
	}
	return 0
}

// At returns the i-th sequence item.
func (n *Node) At(i int) (*Node, bool) {
	items, ok := generic.SequenceItems(n.doc.gd.Resolver(), n.value())
	if !ok || i < 0 || i >= len(items) {
		return nil, false
	}
	return &Node{doc: n.doc, v: items[i]}, true
}

// Key returns the value stored under a string key.
func (n *Node) Key(key string) (*Node, bool) {
	r := n.doc.gd.Resolver()
	pairs, ok := generic.MappingPairs(r, n.value())
	if !ok {
		return nil, false
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		k := generic.IndirectValue(r, pairs[i])
		if s, ok := generic.GetString(r, k); ok && string(s) == key {
			return &Node{doc: n.doc, v: pairs[i+1]}, true
		}
	}
	return nil, false
}

// Pairs returns the mapping entries in document order.
func (n *Node) Pairs() ([][2]*Node, bool) {
	pairs, ok := generic.MappingPairs(n.doc.gd.Resolver(), n.value())
	if !ok {
		return nil, false
	}
	out := make([][2]*Node, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, [2]*Node{
			{doc: n.doc, v: pairs[i]},
			{doc: n.doc, v: pairs[i+1]},
		})
	}
	return out, true
}

// Equal compares two nodes structurally.
func (n *Node) Equal(other *Node) bool {
	return generic.Compare(n.doc.gd.Resolver(), n.v, other.doc.gd.Resolver(), other.v) == 0
}

// Interface materializes the subtree as native Go values: nil, bool,
// int64, float64, string, []any and map[string]any.
func (n *Node) Interface() any {
	r := n.doc.gd.Resolver()
	v := n.value()
	switch generic.TypeOf(v) {
	case generic.TypeNull:
		return nil
	case generic.TypeBool:
		b, _ := generic.GetBool(v)
		return b
	case generic.TypeInt:
		i, _ := generic.GetInt(r, v)
		return i
	case generic.TypeFloat:
		f, _ := generic.GetFloat(r, v)
		return f
	case generic.TypeString:
		s, _ := generic.GetString(r, v)
		return string(s)
	case generic.TypeSequence:
		items, _ := generic.SequenceItems(r, v)
		out := make([]any, 0, len(items))
		for _, it := range items {
			out = append(out, (&Node{doc: n.doc, v: it}).Interface())
		}
		return out
	case generic.TypeMapping:
		pairs, _ := generic.MappingPairs(r, v)
		out := make(map[string]any, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			key := (&Node{doc: n.doc, v: pairs[i]}).Interface()
			ks, ok := key.(string)
			if !ok {
				ks = (&Node{doc: n.doc, v: pairs[i]}).text()
			}
			out[ks] = (&Node{doc: n.doc, v: pairs[i+1]}).Interface()
		}
		return out
	case generic.TypeAlias:
		if target, ok := n.AliasTarget(); ok {
			return target.Interface()
		}
		return nil
	}
	return nil
}

// text renders a non-string key for use as a Go map key.
func (n *Node) text() string {
	switch v := n.Interface().(type) {
	case string:
		return v
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}
