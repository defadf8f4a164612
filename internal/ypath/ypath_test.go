//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package ypath_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantoniou/libfyaml-go/internal/alloc"
	"github.com/pantoniou/libfyaml-go/internal/generic"
	"github.com/pantoniou/libfyaml-go/internal/ypath"
)

type fixture struct {
	b       *generic.Builder
	root    generic.Value
	limits  generic.Value
	anchors map[string]generic.Value
}

// newFixture builds the equivalent of:
//
//	name: demo
//	servers:
//	  - name: alpha
//	    port: 80
//	    tags: [web, prod]
//	  - name: beta
//	    port: 8080
//	    tags: [web]
//	  - name: gamma
//	    port: 9090
//	    disabled: true
//	limits: &lim {max: 100, min: 1}
//	ref: *lim
func newFixture(t *testing.T) *fixture {
	t.Helper()
	a, err := alloc.NewMremap(&alloc.Config{})
	require.NoError(t, err)
	t.Cleanup(a.Destroy)
	tag, err := a.GetTag()
	require.NoError(t, err)
	b := generic.NewBuilder(a, tag)

	str := func(s string) generic.Value {
		v, err := b.CreateString([]byte(s))
		require.NoError(t, err)
		return v
	}
	num := func(i int64) generic.Value {
		v, err := b.CreateInt(i)
		require.NoError(t, err)
		return v
	}
	seq := func(items ...generic.Value) generic.Value {
		v, err := b.CreateSequence(items)
		require.NoError(t, err)
		return v
	}
	mapping := func(pairs ...generic.Value) generic.Value {
		v, err := b.CreateMapping(pairs)
		require.NoError(t, err)
		return v
	}

	alpha := mapping(
		str("name"), str("alpha"),
		str("port"), num(80),
		str("tags"), seq(str("web"), str("prod")))
	beta := mapping(
		str("name"), str("beta"),
		str("port"), num(8080),
		str("tags"), seq(str("web")))
	gamma := mapping(
		str("name"), str("gamma"),
		str("port"), num(9090),
		str("disabled"), b.CreateBool(true))

	limits := mapping(str("max"), num(100), str("min"), num(1))
	ref, err := b.CreateAlias([]byte("lim"))
	require.NoError(t, err)

	root := mapping(
		str("name"), str("demo"),
		str("servers"), seq(alpha, beta, gamma),
		str("limits"), limits,
		str("ref"), ref)

	return &fixture{
		b:      b,
		root:   root,
		limits: limits,
		anchors: map[string]generic.Value{
			"lim": limits,
		},
	}
}

func (fx *fixture) ctx() *ypath.Context {
	return &ypath.Context{
		R: fx.b,
		Anchors: func(name []byte) (generic.Value, bool) {
			v, ok := fx.anchors[string(name)]
			return v, ok
		},
		AllowAliases: true,
	}
}

// query runs an expression and renders each result as a plain string.
func (fx *fixture) query(t *testing.T, expr string) []string {
	t.Helper()
	e, err := ypath.Compile(expr)
	require.NoError(t, err)
	results, err := e.Execute(fx.ctx(), fx.root)
	require.NoError(t, err)
	out := make([]string, 0, len(results))
	for _, v := range results {
		out = append(out, fx.render(v))
	}
	return out
}

func (fx *fixture) render(v generic.Value) string {
	v = generic.IndirectValue(fx.b, v)
	switch generic.TypeOf(v) {
	case generic.TypeString:
		s, _ := generic.GetString(fx.b, v)
		return string(s)
	case generic.TypeInt:
		i, _ := generic.GetInt(fx.b, v)
		return strconv.FormatInt(i, 10)
	case generic.TypeBool:
		b, _ := generic.GetBool(v)
		if b {
			return "true"
		}
		return "false"
	case generic.TypeSequence:
		return "<seq>"
	case generic.TypeMapping:
		return "<map>"
	}
	return "<other>"
}

func intResults(t *testing.T, fx *fixture, expr string) []int64 {
	t.Helper()
	e, err := ypath.Compile(expr)
	require.NoError(t, err)
	results, err := e.Execute(fx.ctx(), fx.root)
	require.NoError(t, err)
	out := make([]int64, 0, len(results))
	for _, v := range results {
		i, ok := generic.GetInt(fx.b, v)
		require.True(t, ok)
		out = append(out, i)
	}
	return out
}

func TestCompileErrors(t *testing.T) {
	for _, tc := range []struct {
		expr string
		msg  string
	}{
		{"", "empty path expression"},
		{"[1", "expected ']' closing the index"},
		{"[0:2", "expected ']' closing the slice"},
		{"[x]", "bad index"},
		{"[?(a", "expected ')' closing the filter"},
		{`"unterminated`, "unterminated quoted key"},
		{"a]", "unexpected character"},
		{"length(a", "expected ',' or ')' in function call"},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := ypath.Compile(tc.expr)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestKeyAndIndexSteps(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []string{"demo"}, fx.query(t, "/name"))
	require.Equal(t, []string{"alpha"}, fx.query(t, "/servers[0]/name"))
	require.Equal(t, []string{"gamma"}, fx.query(t, "/servers[-1]/name"))
	require.Equal(t, []string{"demo"}, fx.query(t, `/"name"`))

	// Out of range indices match nothing.
	require.Empty(t, fx.query(t, "/servers[7]/name"))
	require.Empty(t, fx.query(t, "/nosuch"))
}

func TestSliceSteps(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []string{"alpha", "beta"}, fx.query(t, "/servers[0:2]/name"))
	require.Equal(t, []string{"beta", "gamma"}, fx.query(t, "/servers[1:]/name"))
	require.Equal(t, []string{"alpha"}, fx.query(t, "/servers[:1]/name"))
	require.Equal(t, []string{"gamma"}, fx.query(t, "/servers[-1:]/name"))
	require.Empty(t, fx.query(t, "/servers[2:1]/name"))
}

func TestWildcardAndRecurse(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []string{"alpha", "beta", "gamma"},
		fx.query(t, "/servers/*/name"))
	require.Equal(t, []string{"alpha", "beta", "gamma"},
		fx.query(t, "/servers[*]/name"))

	// Results are structurally deduplicated; "web" appears twice in
	// the tree but only once here.
	require.Equal(t, []string{"web", "prod"}, fx.query(t, "/servers/*/tags/*"))

	// Recursive descent finds every name key at any depth.
	require.Equal(t, []string{"demo", "alpha", "beta", "gamma"},
		fx.query(t, "/**/name"))
}

func TestParentAndThis(t *testing.T) {
	fx := newFixture(t)

	e, err := ypath.Compile("/servers[1]/name/..")
	require.NoError(t, err)
	results, err := e.Execute(fx.ctx(), fx.root)
	require.NoError(t, err)
	require.Len(t, results, 1)

	want, err := ypath.Compile("/servers[1]")
	require.NoError(t, err)
	wantResults, err := want.Execute(fx.ctx(), fx.root)
	require.NoError(t, err)
	require.Len(t, wantResults, 1)
	require.Zero(t, generic.Compare(fx.b, results[0], fx.b, wantResults[0]))

	self, err := ypath.Compile(".")
	require.NoError(t, err)
	selfResults, err := self.Execute(fx.ctx(), fx.root)
	require.NoError(t, err)
	require.Len(t, selfResults, 1)
	require.Equal(t, fx.root, selfResults[0])
}

func TestFilters(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []string{"beta", "gamma"},
		fx.query(t, "/servers/*[?(port > 100)]/name"))
	require.Equal(t, []string{"alpha"},
		fx.query(t, `/servers/*[?(name == "alpha")]/name`))
	require.Equal(t, []string{"beta"},
		fx.query(t, `/servers/*[?(port > 100 && name != "gamma")]/name`))
	require.Equal(t, []string{"alpha", "gamma"},
		fx.query(t, `/servers/*[?(port == 80 || disabled)]/name`))
	require.Equal(t, []string{"gamma"},
		fx.query(t, "/servers/*[?(disabled == true)]/name"))
	require.Equal(t, []string{"alpha", "beta"},
		fx.query(t, "/servers/*[?(port <= 8080)]/name"))
	require.Empty(t, fx.query(t, `/servers/*[?(name == "omega")]/name`))
}

func TestFunctions(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []int64{3}, intResults(t, fx, "length(/servers)"))
	require.Equal(t, []int64{3}, intResults(t, fx, "/servers/length()"))
	require.Equal(t, []int64{2}, intResults(t, fx, "length(/limits)"))
	require.Equal(t, []int64{4}, intResults(t, fx, "/name/length()"))

	require.Equal(t, []string{"max", "min"}, fx.query(t, "keys(/limits)"))
	require.Equal(t, []int64{100, 1}, intResults(t, fx, "values(/limits)"))

	require.Equal(t, []string{"alpha"}, fx.query(t, "first(/servers)/name"))
	require.Equal(t, []string{"gamma"}, fx.query(t, "/servers/last()/name"))

	e, err := ypath.Compile("bogus()")
	require.NoError(t, err)
	_, err = e.Execute(fx.ctx(), fx.root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown path function 'bogus'")
}

func TestAliasSteps(t *testing.T) {
	fx := newFixture(t)

	require.Equal(t, []int64{100}, intResults(t, fx, "*lim/max"))

	// An alias value in the tree is chased transparently.
	require.Equal(t, []int64{1}, intResults(t, fx, "/ref/min"))

	e, err := ypath.Compile("*lim/max")
	require.NoError(t, err)
	ctx := fx.ctx()
	ctx.AllowAliases = false
	_, err = e.Execute(ctx, fx.root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "alias steps are not enabled")

	e, err = ypath.Compile("*nosuch")
	require.NoError(t, err)
	_, err = e.Execute(fx.ctx(), fx.root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unresolved anchor 'nosuch'")
}

func TestUnresolvedAliasInWalk(t *testing.T) {
	fx := newFixture(t)
	delete(fx.anchors, "lim")

	e, err := ypath.Compile("/ref/min")
	require.NoError(t, err)
	_, err = e.Execute(fx.ctx(), fx.root)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unresolved anchor 'lim'")
}

func TestFirst(t *testing.T) {
	fx := newFixture(t)

	e, err := ypath.Compile("/servers/*/name")
	require.NoError(t, err)
	v, found, err := e.First(fx.ctx(), fx.root)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alpha", fx.render(v))

	e, err = ypath.Compile("/nosuch")
	require.NoError(t, err)
	_, found, err = e.First(fx.ctx(), fx.root)
	require.NoError(t, err)
	require.False(t, found)
}

func TestExprString(t *testing.T) {
	e, err := ypath.Compile("/servers[0]/name")
	require.NoError(t, err)
	require.Equal(t, "/servers[0]/name", e.String())
}
