//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package ypath compiles and executes path expressions over decoded
// document trees. The expression language is XPath/JSONPath adjacent:
//
//	/               root
//	.               current node
//	..              parent
//	name            mapping key
//	"name"          quoted mapping key
//	[n]             sequence index, negative counts from the end
//	[a:b]           sequence slice
//	*               any child
//	**              any descendant, including the node itself
//	[?(...)]        filter predicate
//	*anchor         alias dereference
//	name(arg,...)   builtin function
package ypath

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type opCode int

const (
	OP_ROOT opCode = iota
	OP_THIS
	OP_PARENT
	OP_KEY
	OP_INDEX
	OP_SLICE
	OP_WILDCARD
	OP_RECURSE
	OP_FILTER
	OP_ALIAS
	OP_FUNC
)

var opStrings = map[opCode]string{
	OP_ROOT:     "root",
	OP_THIS:     "this",
	OP_PARENT:   "parent",
	OP_KEY:      "key",
	OP_INDEX:    "index",
	OP_SLICE:    "slice",
	OP_WILDCARD: "wildcard",
	OP_RECURSE:  "recurse",
	OP_FILTER:   "filter",
	OP_ALIAS:    "alias",
	OP_FUNC:     "func",
}

func (oc opCode) String() string { return opStrings[oc] }

// op is one step of a compiled expression.
type op struct {
	code opCode

	key  []byte // OP_KEY, OP_ALIAS, OP_FUNC name.
	idx  int    // OP_INDEX, OP_SLICE start.
	end  int    // OP_SLICE end.
	open bool   // OP_SLICE: end omitted.

	pred *predicate // OP_FILTER.
	args []*Expr    // OP_FUNC.
}

// predicate is a filter condition: a comparison between two operands,
// or a bare existence check, possibly joined by && and ||.
type predicate struct {
	or []predConj
}

type predConj struct {
	and []predCmp
}

type cmpOp int

const (
	CMP_EXISTS cmpOp = iota
	CMP_EQ
	CMP_NE
	CMP_LT
	CMP_LE
	CMP_GT
	CMP_GE
)

type predCmp struct {
	op          cmpOp
	left, right *operand
}

// operand is either a relative path or a literal.
type operand struct {
	path *Expr

	lit     bool
	litStr  []byte
	litInt  int64
	litF    float64
	litKind litKind
}

type litKind int

const (
	LIT_STRING litKind = iota
	LIT_INT
	LIT_FLOAT
	LIT_BOOL_TRUE
	LIT_BOOL_FALSE
	LIT_NULL
)

// Expr is a compiled path expression.
type Expr struct {
	src string
	ops []op
}

func (e *Expr) String() string { return e.src }

// Compile parses a path expression.
func Compile(src string) (*Expr, error) {
	c := &compiler{src: src}
	ops, err := c.parse(nil)
	if err != nil {
		return nil, err
	}
	if c.pos != len(c.src) {
		return nil, c.errorf("unexpected character '%c'", c.src[c.pos])
	}
	return &Expr{src: src, ops: ops}, nil
}

type compiler struct {
	src string
	pos int
}

func (c *compiler) errorf(format string, args ...any) error {
	return errors.Errorf("path expression %q at offset %d: "+format,
		append([]any{c.src, c.pos}, args...)...)
}

func (c *compiler) eof() bool { return c.pos >= len(c.src) }

func (c *compiler) peek() byte {
	if c.eof() {
		return 0
	}
	return c.src[c.pos]
}

func (c *compiler) skipSpace() {
	for !c.eof() && (c.src[c.pos] == ' ' || c.src[c.pos] == '\t') {
		c.pos++
	}
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '_' || b == '-'
}

// parse consumes segments until one of the stop bytes (outside
// brackets) or the end of input.
func (c *compiler) parse(stop []byte) ([]op, error) {
	var ops []op
	for {
		c.skipSpace()
		if c.eof() {
			break
		}
		b := c.peek()
		if stopByte(stop, b) {
			break
		}

		switch {
		case b == '/':
			c.pos++
			if len(ops) == 0 {
				ops = append(ops, op{code: OP_ROOT})
			}
			// Otherwise a separator.

		case b == '.':
			c.pos++
			if c.peek() == '.' {
				c.pos++
				ops = append(ops, op{code: OP_PARENT})
			} else if c.eof() || !isNameByte(c.peek()) && c.peek() != '"' && c.peek() != '*' && c.peek() != '[' {
				ops = append(ops, op{code: OP_THIS})
			}
			// Otherwise a separator, i.e. ".key".

		case b == '*':
			c.pos++
			if c.peek() == '*' {
				c.pos++
				ops = append(ops, op{code: OP_RECURSE})
			} else if !c.eof() && isNameByte(c.peek()) {
				name := c.scanName()
				ops = append(ops, op{code: OP_ALIAS, key: []byte(name)})
			} else {
				ops = append(ops, op{code: OP_WILDCARD})
			}

		case b == '"' || b == '\'':
			key, err := c.scanQuoted(b)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op{code: OP_KEY, key: key})

		case b == '[':
			o, err := c.scanBracket()
			if err != nil {
				return nil, err
			}
			ops = append(ops, o)

		case isNameByte(b):
			name := c.scanName()
			if c.peek() == '(' {
				o, err := c.scanCall(name)
				if err != nil {
					return nil, err
				}
				ops = append(ops, o)
			} else {
				ops = append(ops, op{code: OP_KEY, key: []byte(name)})
			}

		default:
			return ops, nil
		}
	}
	if len(ops) == 0 {
		return nil, c.errorf("empty path expression")
	}
	return ops, nil
}

func stopByte(stop []byte, b byte) bool {
	for _, s := range stop {
		if s == b {
			return true
		}
	}
	return false
}

func (c *compiler) scanName() string {
	start := c.pos
	for !c.eof() && isNameByte(c.src[c.pos]) {
		c.pos++
	}
	return c.src[start:c.pos]
}

func (c *compiler) scanQuoted(quote byte) ([]byte, error) {
	c.pos++
	var sb strings.Builder
	for !c.eof() {
		b := c.src[c.pos]
		switch b {
		case quote:
			c.pos++
			return []byte(sb.String()), nil
		case '\\':
			c.pos++
			if c.eof() {
				return nil, c.errorf("unterminated escape in quoted key")
			}
			sb.WriteByte(c.src[c.pos])
			c.pos++
		default:
			sb.WriteByte(b)
			c.pos++
		}
	}
	return nil, c.errorf("unterminated quoted key")
}

func (c *compiler) scanBracket() (op, error) {
	c.pos++ // '['
	c.skipSpace()

	if c.peek() == '?' {
		c.pos++
		if c.peek() != '(' {
			return op{}, c.errorf("expected '(' after '?'")
		}
		c.pos++
		pred, err := c.scanPredicate()
		if err != nil {
			return op{}, err
		}
		if c.peek() != ')' {
			return op{}, c.errorf("expected ')' closing the filter")
		}
		c.pos++
		c.skipSpace()
		if c.peek() != ']' {
			return op{}, c.errorf("expected ']' closing the filter")
		}
		c.pos++
		return op{code: OP_FILTER, pred: pred}, nil
	}

	if c.peek() == '*' {
		c.pos++
		c.skipSpace()
		if c.peek() != ']' {
			return op{}, c.errorf("expected ']' after '*'")
		}
		c.pos++
		return op{code: OP_WILDCARD}, nil
	}

	// Index or slice.
	var a, b int
	var hasA, hasB bool
	var err error
	if c.peek() != ':' {
		if a, err = c.scanInt(); err != nil {
			return op{}, err
		}
		hasA = true
	}
	c.skipSpace()
	if c.peek() == ':' {
		c.pos++
		c.skipSpace()
		if c.peek() != ']' {
			if b, err = c.scanInt(); err != nil {
				return op{}, err
			}
			hasB = true
		}
		c.skipSpace()
		if c.peek() != ']' {
			return op{}, c.errorf("expected ']' closing the slice")
		}
		c.pos++
		if !hasA {
			a = 0
		}
		return op{code: OP_SLICE, idx: a, end: b, open: !hasB}, nil
	}
	if !hasA {
		return op{}, c.errorf("expected index or slice")
	}
	if c.peek() != ']' {
		return op{}, c.errorf("expected ']' closing the index")
	}
	c.pos++
	return op{code: OP_INDEX, idx: a}, nil
}

func (c *compiler) scanInt() (int, error) {
	start := c.pos
	if c.peek() == '-' || c.peek() == '+' {
		c.pos++
	}
	for !c.eof() && c.src[c.pos] >= '0' && c.src[c.pos] <= '9' {
		c.pos++
	}
	n, err := strconv.Atoi(c.src[start:c.pos])
	if err != nil {
		return 0, c.errorf("bad index")
	}
	return n, nil
}

func (c *compiler) scanCall(name string) (op, error) {
	c.pos++ // '('
	o := op{code: OP_FUNC, key: []byte(name)}
	c.skipSpace()
	if c.peek() == ')' {
		c.pos++
		return o, nil
	}
	for {
		ops, err := c.parse([]byte{',', ')'})
		if err != nil {
			return op{}, err
		}
		o.args = append(o.args, &Expr{src: c.src, ops: ops})
		c.skipSpace()
		switch c.peek() {
		case ',':
			c.pos++
			continue
		case ')':
			c.pos++
			return o, nil
		}
		return op{}, c.errorf("expected ',' or ')' in function call")
	}
}

func (c *compiler) scanPredicate() (*predicate, error) {
	pred := &predicate{}
	for {
		conj, err := c.scanConjunction()
		if err != nil {
			return nil, err
		}
		pred.or = append(pred.or, *conj)
		c.skipSpace()
		if strings.HasPrefix(c.src[c.pos:], "||") {
			c.pos += 2
			continue
		}
		return pred, nil
	}
}

func (c *compiler) scanConjunction() (*predConj, error) {
	conj := &predConj{}
	for {
		cmp, err := c.scanComparison()
		if err != nil {
			return nil, err
		}
		conj.and = append(conj.and, *cmp)
		c.skipSpace()
		if strings.HasPrefix(c.src[c.pos:], "&&") {
			c.pos += 2
			continue
		}
		return conj, nil
	}
}

func (c *compiler) scanComparison() (*predCmp, error) {
	left, err := c.scanOperand()
	if err != nil {
		return nil, err
	}
	c.skipSpace()

	var o cmpOp
	switch {
	case strings.HasPrefix(c.src[c.pos:], "=="):
		o, c.pos = CMP_EQ, c.pos+2
	case strings.HasPrefix(c.src[c.pos:], "!="):
		o, c.pos = CMP_NE, c.pos+2
	case strings.HasPrefix(c.src[c.pos:], "<="):
		o, c.pos = CMP_LE, c.pos+2
	case strings.HasPrefix(c.src[c.pos:], ">="):
		o, c.pos = CMP_GE, c.pos+2
	case c.peek() == '<':
		o, c.pos = CMP_LT, c.pos+1
	case c.peek() == '>':
		o, c.pos = CMP_GT, c.pos+1
	default:
		return &predCmp{op: CMP_EXISTS, left: left}, nil
	}

	c.skipSpace()
	right, err := c.scanOperand()
	if err != nil {
		return nil, err
	}
	return &predCmp{op: o, left: left, right: right}, nil
}

func (c *compiler) scanOperand() (*operand, error) {
	c.skipSpace()
	b := c.peek()

	switch {
	case b == '"' || b == '\'':
		s, err := c.scanQuoted(b)
		if err != nil {
			return nil, err
		}
		return &operand{lit: true, litKind: LIT_STRING, litStr: s}, nil

	case b == '-' || b >= '0' && b <= '9':
		start := c.pos
		if b == '-' {
			c.pos++
		}
		isFloat := false
		for !c.eof() {
			ch := c.src[c.pos]
			if ch >= '0' && ch <= '9' {
				c.pos++
				continue
			}
			if ch == '.' || ch == 'e' || ch == 'E' || ch == '+' || ch == '-' {
				isFloat = true
				c.pos++
				continue
			}
			break
		}
		text := c.src[start:c.pos]
		if isFloat {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, c.errorf("bad number literal %q", text)
			}
			return &operand{lit: true, litKind: LIT_FLOAT, litF: f}, nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, c.errorf("bad number literal %q", text)
		}
		return &operand{lit: true, litKind: LIT_INT, litInt: i}, nil
	}

	// Keyword literals, then a relative path.
	rest := c.src[c.pos:]
	for _, kw := range []struct {
		text string
		kind litKind
	}{
		{"true", LIT_BOOL_TRUE},
		{"false", LIT_BOOL_FALSE},
		{"null", LIT_NULL},
	} {
		if strings.HasPrefix(rest, kw.text) &&
			(len(rest) == len(kw.text) || !isNameByte(rest[len(kw.text)])) {
			c.pos += len(kw.text)
			return &operand{lit: true, litKind: kw.kind}, nil
		}
	}

	ops, err := c.parse([]byte{'=', '!', '<', '>', '&', '|', ')', ','})
	if err != nil {
		return nil, err
	}
	return &operand{path: &Expr{src: c.src, ops: ops}}, nil
}
