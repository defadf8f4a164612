//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package fyaml_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	yamlv3 "gopkg.in/yaml.v3"

	fyaml "github.com/pantoniou/libfyaml-go"
	"github.com/pantoniou/libfyaml-go/internal/diag"
)

func quietConfig() fyaml.ParseConfig {
	return fyaml.ParseConfig{Quiet: true, CollectDiag: true}
}

func loadOne(t *testing.T, input string, cfg fyaml.ParseConfig) *fyaml.Document {
	t.Helper()
	docs, p, err := fyaml.LoadString(input, cfg)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)
	require.Len(t, docs, 1)
	return docs[0]
}

func TestLoadStringInterface(t *testing.T) {
	doc := loadOne(t, `
name: demo
count: 42
ratio: 2.5
enabled: true
missing: null
items:
  - one
  - 2
nested:
  key: value
`, quietConfig())

	require.Equal(t, map[string]any{
		"name":    "demo",
		"count":   int64(42),
		"ratio":   2.5,
		"enabled": true,
		"missing": nil,
		"items":   []any{"one", int64(2)},
		"nested":  map[string]any{"key": "value"},
	}, doc.Root().Interface())
}

func TestNodeAccessors(t *testing.T) {
	doc := loadOne(t, "a: 1\nlist: [x, y, z]\n", quietConfig())
	root := doc.Root()

	require.Equal(t, fyaml.NODE_MAPPING, root.Type())
	require.Equal(t, 2, root.Len())

	a, ok := root.Key("a")
	require.True(t, ok)
	require.Equal(t, fyaml.NODE_INT, a.Type())
	i, ok := a.Int()
	require.True(t, ok)
	require.Equal(t, int64(1), i)

	list, ok := root.Key("list")
	require.True(t, ok)
	require.Equal(t, fyaml.NODE_SEQUENCE, list.Type())
	require.Equal(t, 3, list.Len())
	item, ok := list.At(2)
	require.True(t, ok)
	s, ok := item.String()
	require.True(t, ok)
	require.Equal(t, "z", s)
	_, ok = list.At(3)
	require.False(t, ok)

	pairs, ok := root.Pairs()
	require.True(t, ok)
	require.Len(t, pairs, 2)
	k, ok := pairs[0][0].String()
	require.True(t, ok)
	require.Equal(t, "a", k)

	require.True(t, a.Equal(pairs[0][1]))
	require.False(t, a.Equal(list))

	_, ok = root.Key("nosuch")
	require.False(t, ok)
}

func TestEmptyDocuments(t *testing.T) {
	docs, p, err := fyaml.LoadString("", quietConfig())
	require.NoError(t, err)
	defer p.Destroy()
	require.Empty(t, docs)

	doc := loadOne(t, "---\n", quietConfig())
	require.Equal(t, fyaml.NODE_NULL, doc.Root().Type())
}

func TestMultipleDocuments(t *testing.T) {
	docs, p, err := fyaml.LoadString("---\na: 1\n---\nb: 2\n", quietConfig())
	require.NoError(t, err)
	defer p.Destroy()
	require.Len(t, docs, 2)
	require.Equal(t, map[string]any{"a": int64(1)}, docs[0].Root().Interface())
	require.Equal(t, map[string]any{"b": int64(2)}, docs[1].Root().Interface())
}

func TestEventStream(t *testing.T) {
	p, err := fyaml.NewParser(quietConfig())
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.PushInput(fyaml.FromString("a: 1\nb: [x, y]\n")))
	out, err := fyaml.EventStream(p)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"+STR",
		"+DOC",
		"+MAP",
		"=VAL :a",
		"=VAL :1",
		"=VAL :b",
		"+SEQ",
		"=VAL :x",
		"=VAL :y",
		"-SEQ",
		"-MAP",
		"-DOC",
		"-STR",
	}, "\n")+"\n", out)
}

func TestEventStreamDecorations(t *testing.T) {
	p, err := fyaml.NewParser(quietConfig())
	require.NoError(t, err)
	defer p.Destroy()

	input := "--- !!map\n" +
		"&a key: !!str \"double\"\n" +
		"lit: |\n" +
		"  text\n" +
		"single: 'sq'\n" +
		"folded: >\n" +
		"  one\n" +
		"  two\n" +
		"alias: *a\n" +
		"...\n"
	require.NoError(t, p.PushInput(fyaml.FromString(input)))
	out, err := fyaml.EventStream(p)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"+STR",
		"+DOC ---",
		"+MAP <tag:yaml.org,2002:map>",
		"=VAL &a :key",
		"=VAL <tag:yaml.org,2002:str> \"double",
		"=VAL :lit",
		"=VAL |text\\n",
		"=VAL :single",
		"=VAL 'sq",
		"=VAL :folded",
		"=VAL >one two\\n",
		"=VAL :alias",
		"=ALI *a",
		"-MAP",
		"-DOC ...",
		"-STR",
	}, "\n")+"\n", out)
}

func TestAnchorsPreserved(t *testing.T) {
	doc := loadOne(t, "base: &b {x: 1}\nref: *b\n", quietConfig())
	root := doc.Root()

	base, ok := root.Key("base")
	require.True(t, ok)
	name, ok := base.Anchor()
	require.True(t, ok)
	require.Equal(t, "b", name)
	require.Equal(t, fyaml.NODE_MAPPING, base.Type())

	ref, ok := root.Key("ref")
	require.True(t, ok)
	require.Equal(t, fyaml.NODE_ALIAS, ref.Type())
	target, ok := ref.AliasTarget()
	require.True(t, ok)
	require.True(t, target.Equal(base))

	require.Equal(t, []string{"b"}, doc.Anchors())
	byName, ok := doc.Anchor("b")
	require.True(t, ok)
	require.True(t, byName.Equal(base))

	// Interface chases aliases even in preserving mode.
	require.Equal(t, map[string]any{
		"base": map[string]any{"x": int64(1)},
		"ref":  map[string]any{"x": int64(1)},
	}, root.Interface())
}

func TestResolveDocument(t *testing.T) {
	cfg := quietConfig()
	cfg.ResolveDocument = true

	doc := loadOne(t, "base: &b {x: 1}\nref: *b\n", cfg)
	ref, ok := doc.Root().Key("ref")
	require.True(t, ok)
	require.Equal(t, fyaml.NODE_MAPPING, ref.Type())
	require.Equal(t, map[string]any{"x": int64(1)}, ref.Interface())
}

func TestResolveDuplicateKey(t *testing.T) {
	cfg := quietConfig()
	cfg.ResolveDocument = true

	p, err := fyaml.NewParser(cfg)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.PushInput(fyaml.FromString("a: 1\na: 2\n")))
	_, err = p.Load()
	require.Error(t, err)

	kinds := map[diag.Kind]bool{}
	for _, e := range p.Diag().Collected() {
		kinds[e.Kind] = true
	}
	require.True(t, kinds[diag.KIND_DUPLICATE_KEY])
}

func TestResolveUndefinedAlias(t *testing.T) {
	cfg := quietConfig()
	cfg.ResolveDocument = true

	p, err := fyaml.NewParser(cfg)
	require.NoError(t, err)
	defer p.Destroy()

	require.NoError(t, p.PushInput(fyaml.FromString("a: *nosuch\n")))
	_, err = p.Load()
	require.Error(t, err)

	kinds := map[diag.Kind]bool{}
	for _, e := range p.Diag().Collected() {
		kinds[e.Kind] = true
	}
	require.True(t, kinds[diag.KIND_UNRESOLVED_ANCHOR])
}

func TestMergeKeys(t *testing.T) {
	cfg := quietConfig()
	cfg.ResolveDocument = true

	input := "%YAML 1.1\n" +
		"---\n" +
		"defaults: &d\n" +
		"  a: 1\n" +
		"  b: 2\n" +
		"m:\n" +
		"  <<: *d\n" +
		"  b: 3\n"
	doc := loadOne(t, input, cfg)

	major, minor := doc.Version()
	require.Equal(t, 1, major)
	require.Equal(t, 1, minor)
	require.True(t, doc.VersionExplicit())

	m, ok := doc.Root().Key("m")
	require.True(t, ok)
	require.Equal(t, map[string]any{"a": int64(1), "b": int64(3)}, m.Interface())
}

func TestSchemaBooleans(t *testing.T) {
	// Core schema: 'yes' is a plain string.
	doc := loadOne(t, "flag: yes\n", quietConfig())
	flag, ok := doc.Root().Key("flag")
	require.True(t, ok)
	require.Equal(t, fyaml.NODE_STRING, flag.Type())

	// YAML 1.1: 'yes' is a boolean.
	doc = loadOne(t, "%YAML 1.1\n---\nflag: yes\n", quietConfig())
	flag, ok = doc.Root().Key("flag")
	require.True(t, ok)
	b, ok := flag.Bool()
	require.True(t, ok)
	require.True(t, b)
}

func TestJSONForce(t *testing.T) {
	cfg := quietConfig()
	cfg.JSONMode = fyaml.JSON_FORCE

	doc := loadOne(t, `{"a": [1, 2.5, true, null], "b": "s"}`, cfg)
	require.Equal(t, map[string]any{
		"a": []any{int64(1), 2.5, true, nil},
		"b": "s",
	}, doc.Root().Interface())

	_, _, err := fyaml.LoadString(`{'a': 1}`, cfg)
	require.Error(t, err)
}

func TestDocumentPath(t *testing.T) {
	cfg := quietConfig()
	cfg.YPathAliases = true

	doc := loadOne(t, `
servers:
  - name: alpha
    port: 80
  - name: beta
    port: 8080
limits: &lim
  max: 100
`, cfg)

	nodes, err := doc.Path("/servers/*/name")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	var names []string
	for _, n := range nodes {
		s, ok := n.String()
		require.True(t, ok)
		names = append(names, s)
	}
	require.Equal(t, []string{"alpha", "beta"}, names)

	node, err := doc.PathOne(`/servers/*[?(name == "beta")]/port`)
	require.NoError(t, err)
	port, ok := node.Int()
	require.True(t, ok)
	require.Equal(t, int64(8080), port)

	node, err = doc.PathOne("*lim/max")
	require.NoError(t, err)
	max, ok := node.Int()
	require.True(t, ok)
	require.Equal(t, int64(100), max)

	_, err = doc.PathOne("/nosuch")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no match for path")

	_, err = doc.Path("[")
	require.Error(t, err)
}

func TestStreamInput(t *testing.T) {
	p, err := fyaml.NewParser(quietConfig())
	require.NoError(t, err)
	defer p.Destroy()

	r := strings.NewReader("a: 1\n")
	require.NoError(t, p.PushInput(fyaml.FromStream("test", r)))
	docs, err := p.Load()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, map[string]any{"a": int64(1)}, docs[0].Root().Interface())
}

// normalizeV3 lines gopkg.in/yaml.v3 output up with Interface():
// ints widen to int64 and map keys become strings.
func normalizeV3(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []any:
		out := make([]any, 0, len(x))
		for _, e := range x {
			out = append(out, normalizeV3(e))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeV3(e)
		}
		return out
	}
	return v
}

func TestAgreesWithYAMLv3(t *testing.T) {
	inputs := []string{
		"a: 1\nb: two\nc: 2.5\nd: true\ne: null\n",
		"list:\n  - 1\n  - nested:\n      deep: value\n",
		"quoted: \"has: colon\"\nsingle: 'x'\n",
		"flow: {a: 1, b: [x, y]}\n",
	}
	for _, input := range inputs {
		doc := loadOne(t, input, quietConfig())

		var want any
		require.NoError(t, yamlv3.Unmarshal([]byte(input), &want))
		require.Equal(t, normalizeV3(want), doc.Root().Interface(), "input %q", input)
	}
}

func TestAllocatorDump(t *testing.T) {
	doc := loadOne(t, "a: some content worth storing\n", quietConfig())
	_ = doc

	p, err := fyaml.NewParser(quietConfig())
	require.NoError(t, err)
	defer p.Destroy()
	var sb strings.Builder
	p.AllocatorDump(&sb)
	require.NotEmpty(t, sb.String())
}
