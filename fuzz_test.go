//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package fyaml_test

import (
	"strings"
	"testing"

	fyaml "github.com/pantoniou/libfyaml-go"
)

var fuzzSeeds = []string{
	``,
	`{}`,
	`v: hi`,
	`v: true`,
	`v: 10`,
	`v: 0x1F`,
	`v: 0o17`,
	`v: 4294967296`,
	`v: 0.1`,
	`v: .inf`,
	`v: -.inf`,
	`int64_min: -9223372036854775808`,
	`123`,
	`empty:`,
	`canonical: ~`,
	`~: null key`,
	`seq: [A,B,C,]`,
	"seq:\n - A\n - B\n - C",
	"scalar: | # Comment\n\n literal\n\n \ttext\n\n",
	"scalar: > # Comment\n\n folded\n line\n \n next\n line\n  * one\n  * two\n\n last\n line\n\n",
	"a: {b: c, 1: d}",
	"'1': '\"2\"'",
	"v: !!float '1.1'",
	"v: !!null ''",
	"%TAG !y! tag:yaml.org,2002:\n---\nv: !y!int '1'",
	"a: &x 1\nb: &y 2\nc: *x\nd: *y\n",
	"a: &a {c: 1}\nb: *a",
	"<<: *missing\n",
	"a: \"\\uD83D\\uDE00\"\n",
	"a: \"\\uD800\"\n",
	"%YAML 1.1\n---\nv: yes\n",
	"%YAML 1.3\n---\nv: 1\n",
	"---\nhello\n...\n---\nworld\n...\n",
	"---\nhello\n...\n}not yaml",
	"true\n#" + strings.Repeat(" ", 512*3),
	"a: b\r\nc:\r\n- d\r\n- e\r\n",
	"\n0:\n<<:\n  {}:\n",
	"\xff\xfe\xf1\x00o\x00\xf1\x00o\x00:\x00 \x00y\x00\n\x00",
	"\xef\xbb\xbfa: 1\n",
	"a: \xc3\x28\n",
}

// FuzzParse pushes arbitrary bytes through both the event stream and
// the document loader. Malformed input must come back as an error,
// never as a panic or a wedged parser.
func FuzzParse(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data string) {
		p, err := fyaml.NewParser(quietConfig())
		if err != nil {
			t.Fatal(err)
		}
		if err = p.PushInput(fyaml.FromString(data)); err == nil {
			_, _ = fyaml.EventStream(p)
		}
		p.Destroy()

		docs, p, err := fyaml.LoadString(data, quietConfig())
		if err != nil {
			return
		}
		for _, doc := range docs {
			_ = doc.Root().Interface()
		}
		p.Destroy()
	})
}
