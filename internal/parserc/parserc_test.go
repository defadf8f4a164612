//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package parserc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
	"github.com/pantoniou/libfyaml-go/internal/parserc"
)

func newTestParser(t *testing.T, source string, cfg parserc.ParseConfig) *parserc.Parser {
	t.Helper()
	if cfg.Diag == nil {
		cfg.Diag = diag.New(diag.Config{Quiet: true, Collect: true})
	}
	p := parserc.NewParser(cfg)
	err := p.PushInput(&parserc.InputConfig{Kind: parserc.INPUT_MEMORY, Data: []byte(source)})
	require.NoError(t, err)
	return p
}

// evString is the one line test form of an event.
func evString(ev *fyh.Event) string {
	var sb strings.Builder
	switch ev.Type {
	case fyh.STREAM_START_EVENT:
		sb.WriteString("+STR")
	case fyh.STREAM_END_EVENT:
		sb.WriteString("-STR")
	case fyh.DOCUMENT_START_EVENT:
		sb.WriteString("+DOC")
		if !ev.Implicit {
			sb.WriteString(" ---")
		}
	case fyh.DOCUMENT_END_EVENT:
		sb.WriteString("-DOC")
		if !ev.Implicit {
			sb.WriteString(" ...")
		}
	case fyh.SEQUENCE_START_EVENT:
		sb.WriteString("+SEQ")
		evDecor(&sb, ev)
	case fyh.SEQUENCE_END_EVENT:
		sb.WriteString("-SEQ")
	case fyh.MAPPING_START_EVENT:
		sb.WriteString("+MAP")
		evDecor(&sb, ev)
	case fyh.MAPPING_END_EVENT:
		sb.WriteString("-MAP")
	case fyh.ALIAS_EVENT:
		sb.WriteString("=ALI *")
		sb.Write(ev.AnchorValue())
	case fyh.SCALAR_EVENT:
		sb.WriteString("=VAL")
		evDecor(&sb, ev)
		sb.WriteByte(' ')
		switch ev.ScalarStyle() {
		case fyh.SINGLE_QUOTED_ATOM:
			sb.WriteByte('\'')
		case fyh.DOUBLE_QUOTED_ATOM:
			sb.WriteByte('"')
		case fyh.LITERAL_ATOM:
			sb.WriteByte('|')
		case fyh.FOLDED_ATOM:
			sb.WriteByte('>')
		default:
			sb.WriteByte(':')
		}
		var value []byte
		if ev.Value != nil {
			value = ev.Value.Atom.Value
		}
		escaped := strings.NewReplacer(
			"\\", `\\`, "\n", `\n`, "\t", `\t`, "\b", `\b`, "\r", `\r`,
		).Replace(string(value))
		sb.WriteString(escaped)
	}
	return sb.String()
}

func evDecor(sb *strings.Builder, ev *fyh.Event) {
	if a := ev.AnchorValue(); a != nil {
		sb.WriteString(" &")
		sb.Write(a)
	}
	if tg := ev.TagValue(); tg != nil {
		sb.WriteString(" <")
		sb.Write(tg)
		sb.WriteByte('>')
	}
}

func parseEvents(t *testing.T, source string, cfg parserc.ParseConfig) ([]string, error) {
	t.Helper()
	p := newTestParser(t, source, cfg)
	var events []string
	for {
		ev, err := p.Parse()
		if err != nil {
			return events, err
		}
		if ev == nil {
			return events, nil
		}
		events = append(events, evString(ev))
		p.RecycleEvent(ev)
	}
}

func TestParseEventStreams(t *testing.T) {
	tests := []struct {
		name   string
		source string
		events []string
	}{
		{
			name:   "simple mapping",
			source: "a: 1\nb: two\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "=VAL :1", "=VAL :b", "=VAL :two",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "indentless sequence",
			source: "key:\n- a\n- b\n",
			events: []string{
				"+STR", "+DOC", "+MAP", "=VAL :key",
				"+SEQ", "=VAL :a", "=VAL :b", "-SEQ",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "nested block sequence",
			source: "- - x\n- y\n",
			events: []string{
				"+STR", "+DOC", "+SEQ",
				"+SEQ", "=VAL :x", "-SEQ", "=VAL :y",
				"-SEQ", "-DOC", "-STR",
			},
		},
		{
			name:   "block scalar keep chomping",
			source: "s: |+\n  abc\n\n",
			events: []string{
				"+STR", "+DOC", "+MAP", "=VAL :s",
				`=VAL |abc\n\n`,
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "block scalar clip and strip",
			source: "a: |\n  x\n\nb: |-\n  y\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", `=VAL |x\n`,
				"=VAL :b", "=VAL |y",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "folded scalar",
			source: ">\n  one\n  two\n",
			events: []string{
				"+STR", "+DOC", `=VAL >one two\n`, "-DOC", "-STR",
			},
		},
		{
			name:   "flow collections",
			source: "{a: [1, 2], b: {c: 3}}\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "+SEQ", "=VAL :1", "=VAL :2", "-SEQ",
				"=VAL :b", "+MAP", "=VAL :c", "=VAL :3", "-MAP",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "flow sequence pair",
			source: "[a: 1]\n",
			events: []string{
				"+STR", "+DOC", "+SEQ",
				"+MAP", "=VAL :a", "=VAL :1", "-MAP",
				"-SEQ", "-DOC", "-STR",
			},
		},
		{
			name:   "anchor and alias",
			source: "a: &x 1\nb: *x\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "=VAL &x :1",
				"=VAL :b", "=ALI *x",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "anchored collection",
			source: "seq: &s\n- 1\n",
			events: []string{
				"+STR", "+DOC", "+MAP", "=VAL :seq",
				"+SEQ &s", "=VAL :1", "-SEQ",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "tag shorthand",
			source: "!!str 123\n",
			events: []string{
				"+STR", "+DOC",
				"=VAL <tag:yaml.org,2002:str> :123",
				"-DOC", "-STR",
			},
		},
		{
			name:   "verbatim and custom tags",
			source: "%TAG !e! tag:example.com,2019:\n---\n- !e!foo bar\n- !<tag:x> y\n",
			events: []string{
				"+STR", "+DOC ---", "+SEQ",
				"=VAL <tag:example.com,2019:foo> :bar",
				"=VAL <tag:x> :y",
				"-SEQ", "-DOC", "-STR",
			},
		},
		{
			name:   "quoted scalars",
			source: "a: 'single'\nb: \"dou\\tble\"\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "=VAL 'single",
				"=VAL :b", `=VAL "dou\tble`,
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "explicit documents",
			source: "---\na\n---\nb\n...\n",
			events: []string{
				"+STR",
				"+DOC ---", "=VAL :a", "-DOC",
				"+DOC ---", "=VAL :b", "-DOC ...",
				"-STR",
			},
		},
		{
			name:   "empty values",
			source: "a:\nb: c\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "=VAL :", "=VAL :b", "=VAL :c",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "explicit key",
			source: "? complex\n: value\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :complex", "=VAL :value",
				"-MAP", "-DOC", "-STR",
			},
		},
		{
			name:   "surrogate pair escape",
			source: "a: \"\\uD83D\\uDE00\"\n",
			events: []string{
				"+STR", "+DOC", "+MAP",
				"=VAL :a", "=VAL \"\U0001F600",
				"-MAP", "-DOC", "-STR",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := parseEvents(t, tt.source, parserc.ParseConfig{})
			require.NoError(t, err)
			require.Equal(t, tt.events, events)
		})
	}
}

func TestParseDirectives(t *testing.T) {
	events, err := parseEvents(t, "%YAML 1.2\n---\nfoo\n", parserc.ParseConfig{})
	require.NoError(t, err)
	require.Equal(t, []string{"+STR", "+DOC ---", "=VAL :foo", "-DOC", "-STR"}, events)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   diag.Kind
	}{
		{"tab as indent", "a:\n\tb: 1\n", diag.KIND_TAB_AS_INDENT},
		{"mismatched flow end", "[1, 2}\n", diag.KIND_UNEXPECTED_FLOW_END},
		{"eof in flow scalar", "a: 'unterminated\n", diag.KIND_EOF_IN_TOKEN},
		{"bad escape", `a: "\q"` + "\n", diag.KIND_BAD_ESCAPE},
		{"unpaired high surrogate", "a: \"\\uD800x\"\n", diag.KIND_BAD_ESCAPE},
		{"lone low surrogate", "a: \"\\uDE00\"\n", diag.KIND_BAD_ESCAPE},
		{"duplicate yaml directive", "%YAML 1.1\n%YAML 1.2\n---\na\n", diag.KIND_DUPLICATE_DIRECTIVE},
		{"undefined tag handle", "!u!foo bar\n", diag.KIND_UNKNOWN_TAG_HANDLE},
		{"zero block indent", "a: |0\n  x\n", diag.KIND_BAD_BLOCK_SCALAR_INDENT},
		{"control character", "a: \x01\n", diag.KIND_CONTROL_CHARACTER},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diag.New(diag.Config{Quiet: true, Collect: true})
			_, err := parseEvents(t, tt.source, parserc.ParseConfig{Diag: d})
			require.Error(t, err)

			var kinds []diag.Kind
			for _, e := range d.Collected() {
				kinds = append(kinds, e.Kind)
			}
			require.Contains(t, kinds, tt.kind)
		})
	}
}

func TestParseErrorSticks(t *testing.T) {
	p := newTestParser(t, "[1, 2}\n", parserc.ParseConfig{})
	var firstErr error
	for {
		ev, err := p.Parse()
		if err != nil {
			firstErr = err
			break
		}
		require.NotNil(t, ev)
		p.RecycleEvent(ev)
	}
	require.Error(t, firstErr)
	require.True(t, p.Stuck())

	_, err := p.Parse()
	require.Equal(t, firstErr, err)
}

func TestSingleDocumentMode(t *testing.T) {
	events, err := parseEvents(t, "---\na\n", parserc.ParseConfig{SingleDocument: true})
	require.NoError(t, err)
	require.Equal(t, []string{"+STR", "+DOC ---", "=VAL :a", "-DOC", "-STR"}, events)

	d := diag.New(diag.Config{Quiet: true, Collect: true})
	_, err = parseEvents(t, "---\na\n---\nb\n", parserc.ParseConfig{SingleDocument: true, Diag: d})
	require.Error(t, err)
}

func TestJSONModeRestrictions(t *testing.T) {
	// Valid JSON parses cleanly.
	events, err := parseEvents(t, `{"a": [1, 2.5, true, null]}`, parserc.ParseConfig{JSONMode: parserc.JSON_FORCE})
	require.NoError(t, err)
	require.Equal(t, []string{
		"+STR", "+DOC", "+MAP",
		`=VAL "a`, "+SEQ", "=VAL :1", "=VAL :2.5", "=VAL :true", "=VAL :null", "-SEQ",
		"-MAP", "-DOC", "-STR",
	}, events)

	// YAML constructs are rejected under the JSON restrictions.
	for _, source := range []string{
		`{'a': 1}`,
		"{\"a\": &x 1}",
		"{\"a\": !!str b}",
		"{\"a\": |\n  x}",
	} {
		d := diag.New(diag.Config{Quiet: true, Collect: true})
		_, err := parseEvents(t, source, parserc.ParseConfig{JSONMode: parserc.JSON_FORCE, Diag: d})
		require.Error(t, err, "source %q", source)
	}
}

func TestReset(t *testing.T) {
	p := newTestParser(t, "[broken\n", parserc.ParseConfig{})
	for {
		ev, err := p.Parse()
		if err != nil {
			break
		}
		require.NotNil(t, ev)
		p.RecycleEvent(ev)
	}
	require.True(t, p.Stuck())

	p.Reset()
	require.False(t, p.Stuck())
	err := p.PushInput(&parserc.InputConfig{Kind: parserc.INPUT_MEMORY, Data: []byte("ok\n")})
	require.NoError(t, err)

	var events []string
	for {
		ev, perr := p.Parse()
		require.NoError(t, perr)
		if ev == nil {
			break
		}
		events = append(events, evString(ev))
		p.RecycleEvent(ev)
	}
	require.Equal(t, []string{"+STR", "+DOC", "=VAL :ok", "-DOC", "-STR"}, events)
}

func TestMultipleInputs(t *testing.T) {
	cfg := parserc.ParseConfig{Diag: diag.New(diag.Config{Quiet: true})}
	p := parserc.NewParser(cfg)
	require.NoError(t, p.PushInput(&parserc.InputConfig{Kind: parserc.INPUT_MEMORY, Data: []byte("---\nfirst\n")}))
	require.NoError(t, p.PushInput(&parserc.InputConfig{Kind: parserc.INPUT_MEMORY, Data: []byte("---\nsecond\n")}))

	var events []string
	for {
		ev, err := p.Parse()
		require.NoError(t, err)
		if ev == nil {
			break
		}
		events = append(events, evString(ev))
		p.RecycleEvent(ev)
	}
	require.Equal(t, []string{
		"+STR",
		"+DOC ---", "=VAL :first", "-DOC",
		"+DOC ---", "=VAL :second", "-DOC",
		"-STR",
	}, events)
}

func TestComposePath(t *testing.T) {
	source := "top:\n  list:\n  - 1\n  - {k: v}\n"
	p := newTestParser(t, source, parserc.ParseConfig{})

	type seen struct {
		event string
		depth int
	}
	var log []seen
	err := p.Compose(func(_ *parserc.Parser, ev *fyh.Event, path *parserc.Path, _ any) parserc.ComposeVerdict {
		log = append(log, seen{evString(ev), path.Depth()})
		return parserc.COMPOSE_CONTINUE
	}, nil)
	require.NoError(t, err)

	// Starts run with their component already pushed; ends run before
	// their component pops.
	require.Equal(t, []seen{
		{"+STR", 0},
		{"+DOC", 1},
		{"+MAP", 2},
		{"=VAL :top", 2},
		{"+MAP", 3},
		{"=VAL :list", 3},
		{"+SEQ", 4},
		{"=VAL :1", 4},
		{"+MAP", 5},
		{"=VAL :k", 5},
		{"=VAL :v", 5},
		{"-MAP", 5},
		{"-SEQ", 4},
		{"-MAP", 3},
		{"-MAP", 2},
		{"-DOC", 1},
		{"-STR", 0},
	}, log)
}

func TestComposeMappingSides(t *testing.T) {
	p := newTestParser(t, "a: 1\nb: 2\n", parserc.ParseConfig{})

	var keys, values []string
	err := p.Compose(func(_ *parserc.Parser, ev *fyh.Event, path *parserc.Path, _ any) parserc.ComposeVerdict {
		if ev.Type != fyh.SCALAR_EVENT {
			return parserc.COMPOSE_CONTINUE
		}
		text := string(ev.Value.Atom.Value)
		if path.InMappingKey() {
			keys = append(keys, text)
		} else if path.InMappingValue() {
			values = append(values, text)
		}
		return parserc.COMPOSE_CONTINUE
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)
	require.Equal(t, []string{"1", "2"}, values)
}

func TestComposeStopResume(t *testing.T) {
	p := newTestParser(t, "- one\n- two\n- three\n", parserc.ParseConfig{})

	var got []string
	collect := func(_ *parserc.Parser, ev *fyh.Event, path *parserc.Path, _ any) parserc.ComposeVerdict {
		if ev.Type == fyh.SCALAR_EVENT {
			got = append(got, string(ev.Value.Atom.Value))
			return parserc.COMPOSE_STOP
		}
		return parserc.COMPOSE_CONTINUE
	}

	// Each Compose run resumes where the previous one paused, with the
	// path still intact.
	require.NoError(t, p.Compose(collect, nil))
	require.Equal(t, []string{"one"}, got)
	require.NoError(t, p.Compose(collect, nil))
	require.NoError(t, p.Compose(collect, nil))
	require.Equal(t, []string{"one", "two", "three"}, got)
}

func TestComposeSequenceIndex(t *testing.T) {
	p := newTestParser(t, "- a\n- b\n- c\n", parserc.ParseConfig{})

	var indexes []int
	err := p.Compose(func(_ *parserc.Parser, ev *fyh.Event, path *parserc.Path, _ any) parserc.ComposeVerdict {
		if ev.Type == fyh.SCALAR_EVENT && path.InSequence() {
			indexes = append(indexes, path.Last().Index)
		}
		return parserc.COMPOSE_CONTINUE
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, indexes)
}

func TestParseComments(t *testing.T) {
	p := newTestParser(t, "# leading\na: 1\n", parserc.ParseConfig{ParseComments: true})

	for {
		ev, err := p.Parse()
		require.NoError(t, err)
		if ev == nil {
			break
		}
		p.RecycleEvent(ev)
	}
	c := p.LastComment()
	require.NotNil(t, c)
	require.Equal(t, []byte("# leading"), c.Atom.Value)
}
