//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package ypath

import (
	"github.com/pkg/errors"

	"github.com/pantoniou/libfyaml-go/internal/generic"
)

// maxAliasDepth bounds alias chasing; a chain this deep is a cycle.
const maxAliasDepth = 256

// Context supplies what an execution needs from the owning document.
type Context struct {
	R generic.Resolver

	// Anchors resolves an anchor name to its value, or reports false.
	Anchors func(name []byte) (generic.Value, bool)

	// AllowAliases permits '*anchor' steps in expressions.
	AllowAliases bool
}

// node is a visited tree position; the parent link serves '..'.
type node struct {
	v      generic.Value
	parent *node
}

// emitFunc consumes result nodes; returning false stops the walk.
type emitFunc func(n *node) bool

// stream produces nodes lazily into emit; returns false when the
// consumer stopped early.
type stream func(emit emitFunc) bool

type executor struct {
	ctx *Context
	err error
}

// Execute runs the expression against a tree root and returns the
// matching values, structurally deduplicated.
func (e *Expr) Execute(ctx *Context, root generic.Value) ([]generic.Value, error) {
	x := &executor{ctx: ctx}
	var results []generic.Value
	x.run(e.ops, root, func(n *node) bool {
		for _, r := range results {
			if generic.Compare(ctx.R, r, ctx.R, n.v) == 0 {
				return true
			}
		}
		results = append(results, n.v)
		return true
	})
	if x.err != nil {
		return nil, x.err
	}
	return results, nil
}

// First returns the first match only, stopping the walk early.
func (e *Expr) First(ctx *Context, root generic.Value) (generic.Value, bool, error) {
	x := &executor{ctx: ctx}
	var out generic.Value
	found := false
	x.run(e.ops, root, func(n *node) bool {
		out = n.v
		found = true
		return false
	})
	if x.err != nil {
		return generic.Invalid, false, x.err
	}
	return out, found, nil
}

func (x *executor) run(ops []op, root generic.Value, emit emitFunc) {
	rootNode := &node{v: root}
	s := func(emit emitFunc) bool { return emit(rootNode) }
	for i := range ops {
		s = x.apply(&ops[i], s, rootNode)
	}
	s(emit)
}

// deref chases indirect wrappers and aliases down to a concrete value.
func (x *executor) deref(v generic.Value) generic.Value {
	for depth := 0; ; depth++ {
		if depth > maxAliasDepth {
			x.fail(errors.New("alias dereference depth exceeded; reference cycle"))
			return generic.Invalid
		}
		switch generic.TypeOf(v) {
		case generic.TypeIndirect:
			val, _, _, ok := generic.IndirectParts(x.ctx.R, v)
			if !ok {
				return generic.Invalid
			}
			v = val
		case generic.TypeAlias:
			if x.ctx.Anchors == nil {
				return generic.Invalid
			}
			name, _ := generic.AliasName(x.ctx.R, v)
			target, ok := x.ctx.Anchors(name)
			if !ok {
				x.fail(errors.Errorf("unresolved anchor '%s' in path walk", name))
				return generic.Invalid
			}
			v = target
		default:
			return v
		}
	}
}

func (x *executor) fail(err error) {
	if x.err == nil {
		x.err = err
	}
}

func (x *executor) apply(o *op, in stream, root *node) stream {
	switch o.code {
	case OP_ROOT:
		return func(emit emitFunc) bool { return emit(root) }

	case OP_THIS:
		return in

	case OP_PARENT:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				if n.parent == nil {
					return true
				}
				return emit(n.parent)
			})
		}

	case OP_KEY:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				pairs, ok := generic.MappingPairs(x.ctx.R, x.deref(n.v))
				if !ok {
					return true
				}
				for i := 0; i+1 < len(pairs); i += 2 {
					key, ok := generic.GetString(x.ctx.R, x.deref(pairs[i]))
					if !ok || string(key) != string(o.key) {
						continue
					}
					if !emit(&node{v: pairs[i+1], parent: n}) {
						return false
					}
				}
				return true
			})
		}

	case OP_INDEX:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				items, ok := generic.SequenceItems(x.ctx.R, x.deref(n.v))
				if !ok {
					return true
				}
				idx := o.idx
				if idx < 0 {
					idx += len(items)
				}
				if idx < 0 || idx >= len(items) {
					return true
				}
				return emit(&node{v: items[idx], parent: n})
			})
		}

	case OP_SLICE:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				items, ok := generic.SequenceItems(x.ctx.R, x.deref(n.v))
				if !ok {
					return true
				}
				a, b := o.idx, o.end
				if o.open {
					b = len(items)
				}
				if a < 0 {
					a += len(items)
				}
				if b < 0 {
					b += len(items)
				}
				a, b = clamp(a, len(items)), clamp(b, len(items))
				for ; a < b; a++ {
					if !emit(&node{v: items[a], parent: n}) {
						return false
					}
				}
				return true
			})
		}

	case OP_WILDCARD:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				return x.children(n, emit)
			})
		}

	case OP_RECURSE:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				return x.recurse(n, emit, 0)
			})
		}

	case OP_FILTER:
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				if !x.evalPredicate(o.pred, n) {
					return true
				}
				return emit(n)
			})
		}

	case OP_ALIAS:
		return func(emit emitFunc) bool {
			if !x.ctx.AllowAliases {
				x.fail(errors.New("alias steps are not enabled for this query"))
				return false
			}
			if x.ctx.Anchors == nil {
				return true
			}
			target, ok := x.ctx.Anchors(o.key)
			if !ok {
				x.fail(errors.Errorf("unresolved anchor '%s'", o.key))
				return false
			}
			return emit(&node{v: target, parent: root})
		}

	case OP_FUNC:
		return x.applyFunc(o, in)
	}
	return in
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// children emits every immediate child: sequence items and mapping
// values.
func (x *executor) children(n *node, emit emitFunc) bool {
	v := x.deref(n.v)
	if items, ok := generic.SequenceItems(x.ctx.R, v); ok {
		for _, it := range items {
			if !emit(&node{v: it, parent: n}) {
				return false
			}
		}
		return true
	}
	if pairs, ok := generic.MappingPairs(x.ctx.R, v); ok {
		for i := 0; i+1 < len(pairs); i += 2 {
			if !emit(&node{v: pairs[i+1], parent: n}) {
				return false
			}
		}
	}
	return true
}

func (x *executor) recurse(n *node, emit emitFunc, depth int) bool {
	if depth > maxAliasDepth {
		x.fail(errors.New("recursive descent depth exceeded"))
		return false
	}
	if !emit(n) {
		return false
	}
	return x.children(n, func(child *node) bool {
		return x.recurse(child, emit, depth+1)
	})
}

func (x *executor) applyFunc(o *op, in stream) stream {
	name := string(o.key)
	switch name {
	case "length":
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				v := x.funcTarget(o, n)
				ln, ok := x.lengthOf(v)
				if !ok {
					return true
				}
				lv, _ := generic.InplaceInt(int64(ln))
				return emit(&node{v: lv, parent: n})
			})
		}

	case "keys":
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				pairs, ok := generic.MappingPairs(x.ctx.R, x.deref(x.funcTarget(o, n)))
				if !ok {
					return true
				}
				for i := 0; i+1 < len(pairs); i += 2 {
					if !emit(&node{v: pairs[i], parent: n}) {
						return false
					}
				}
				return true
			})
		}

	case "values":
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				return x.children(&node{v: x.funcTarget(o, n), parent: n.parent}, emit)
			})
		}

	case "first", "last":
		return func(emit emitFunc) bool {
			return in(func(n *node) bool {
				items, ok := generic.SequenceItems(x.ctx.R, x.deref(x.funcTarget(o, n)))
				if !ok || len(items) == 0 {
					return true
				}
				v := items[0]
				if name == "last" {
					v = items[len(items)-1]
				}
				return emit(&node{v: v, parent: n})
			})
		}
	}
	x.fail(errors.Errorf("unknown path function '%s'", name))
	return func(emit emitFunc) bool { return false }
}

// funcTarget resolves the optional path argument of a function call
// against the current node.
func (x *executor) funcTarget(o *op, n *node) generic.Value {
	if len(o.args) == 0 {
		return n.v
	}
	v, ok := x.firstOf(o.args[0], n)
	if !ok {
		return generic.Invalid
	}
	return v
}

func (x *executor) lengthOf(v generic.Value) (int, bool) {
	v = x.deref(v)
	if items, ok := generic.SequenceItems(x.ctx.R, v); ok {
		return len(items), true
	}
	if pairs, ok := generic.MappingPairs(x.ctx.R, v); ok {
		return len(pairs) / 2, true
	}
	if s, ok := generic.GetString(x.ctx.R, v); ok {
		return len(s), true
	}
	return 0, false
}

// firstOf runs a sub-expression relative to a node and takes the
// first result.
func (x *executor) firstOf(e *Expr, n *node) (generic.Value, bool) {
	var out generic.Value
	found := false
	s := func(emit emitFunc) bool { return emit(n) }
	for i := range e.ops {
		s = x.apply(&e.ops[i], s, n)
	}
	s(func(res *node) bool {
		out = res.v
		found = true
		return false
	})
	return out, found
}

func (x *executor) evalPredicate(pred *predicate, n *node) bool {
	for i := range pred.or {
		conj := &pred.or[i]
		all := true
		for j := range conj.and {
			if !x.evalComparison(&conj.and[j], n) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (x *executor) evalComparison(cmp *predCmp, n *node) bool {
	if cmp.op == CMP_EXISTS {
		if cmp.left.lit {
			return true
		}
		_, ok := x.firstOf(cmp.left.path, n)
		return ok
	}

	lv, lok := x.operandValue(cmp.left, n)
	rv, rok := x.operandValue(cmp.right, n)
	if !lok || !rok {
		return false
	}
	c, ok := x.compareScalars(lv, rv)
	if !ok {
		return false
	}
	switch cmp.op {
	case CMP_EQ:
		return c == 0
	case CMP_NE:
		return c != 0
	case CMP_LT:
		return c < 0
	case CMP_LE:
		return c <= 0
	case CMP_GT:
		return c > 0
	case CMP_GE:
		return c >= 0
	}
	return false
}

// scalarOperand is a comparison operand lowered to a concrete scalar.
type scalarOperand struct {
	kind litKind
	s    []byte
	i    int64
	f    float64
	b    bool
}

func (x *executor) operandValue(o *operand, n *node) (scalarOperand, bool) {
	if o.lit {
		switch o.litKind {
		case LIT_STRING:
			return scalarOperand{kind: LIT_STRING, s: o.litStr}, true
		case LIT_INT:
			return scalarOperand{kind: LIT_INT, i: o.litInt}, true
		case LIT_FLOAT:
			return scalarOperand{kind: LIT_FLOAT, f: o.litF}, true
		case LIT_BOOL_TRUE:
			return scalarOperand{kind: LIT_BOOL_TRUE, b: true}, true
		case LIT_BOOL_FALSE:
			return scalarOperand{kind: LIT_BOOL_FALSE}, true
		}
		return scalarOperand{kind: LIT_NULL}, true
	}

	v, ok := x.firstOf(o.path, n)
	if !ok {
		return scalarOperand{}, false
	}
	v = x.deref(v)
	switch generic.TypeOf(v) {
	case generic.TypeNull:
		return scalarOperand{kind: LIT_NULL}, true
	case generic.TypeBool:
		b, _ := generic.GetBool(v)
		if b {
			return scalarOperand{kind: LIT_BOOL_TRUE, b: true}, true
		}
		return scalarOperand{kind: LIT_BOOL_FALSE}, true
	case generic.TypeInt:
		i, _ := generic.GetInt(x.ctx.R, v)
		return scalarOperand{kind: LIT_INT, i: i}, true
	case generic.TypeFloat:
		f, _ := generic.GetFloat(x.ctx.R, v)
		return scalarOperand{kind: LIT_FLOAT, f: f}, true
	case generic.TypeString:
		s, _ := generic.GetString(x.ctx.R, v)
		return scalarOperand{kind: LIT_STRING, s: s}, true
	}
	return scalarOperand{}, false
}

func (x *executor) compareScalars(a, b scalarOperand) (int, bool) {
	numeric := func(so scalarOperand) (float64, bool) {
		switch so.kind {
		case LIT_INT:
			return float64(so.i), true
		case LIT_FLOAT:
			return so.f, true
		}
		return 0, false
	}

	if fa, ok := numeric(a); ok {
		fb, ok := numeric(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	if a.kind != b.kind {
		// Booleans of different polarity still compare.
		if (a.kind == LIT_BOOL_TRUE || a.kind == LIT_BOOL_FALSE) &&
			(b.kind == LIT_BOOL_TRUE || b.kind == LIT_BOOL_FALSE) {
			switch {
			case a.b == b.b:
				return 0, true
			case !a.b:
				return -1, true
			}
			return 1, true
		}
		return 0, false
	}

	switch a.kind {
	case LIT_STRING:
		switch {
		case string(a.s) < string(b.s):
			return -1, true
		case string(a.s) > string(b.s):
			return 1, true
		}
		return 0, true
	case LIT_NULL, LIT_BOOL_TRUE, LIT_BOOL_FALSE:
		return 0, true
	}
	return 0, false
}
