//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

// Package diag implements positional diagnostics: every parse error
// carries a pair of marks and an error kind, and is routed through a
// go-kit logger with optional colorization and collection.
package diag

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

type Kind int

// Error kinds, grouped per the failure source.
const (
	KIND_NONE Kind = iota

	// Lexical.
	KIND_INVALID_UTF8
	KIND_PARTIAL_UTF8
	KIND_CONTROL_CHARACTER
	KIND_TAB_AS_INDENT
	KIND_BAD_ESCAPE
	KIND_EOF_IN_TOKEN

	// Syntactic.
	KIND_MISSING_COLON
	KIND_UNEXPECTED_FLOW_END
	KIND_DANGLING_DOCUMENT_MARKER
	KIND_DUPLICATE_DIRECTIVE
	KIND_UNKNOWN_TAG_HANDLE
	KIND_BAD_BLOCK_SCALAR_INDENT
	KIND_MULTILINE_PLAIN_KEY
	KIND_JSON_VIOLATION
	KIND_SYNTAX

	// Semantic.
	KIND_UNRESOLVED_ANCHOR
	KIND_ALIAS_CYCLE
	KIND_DUPLICATE_KEY
	KIND_INVALID_MERGE

	// Resource.
	KIND_ALLOC_FAILED
	KIND_INPUT_READ_FAILED

	// Internal.
	KIND_SCANNER_STUCK
)

var kindStrings = map[Kind]string{
	KIND_NONE:                     "none",
	KIND_INVALID_UTF8:             "invalid-utf8",
	KIND_PARTIAL_UTF8:             "partial-utf8",
	KIND_CONTROL_CHARACTER:        "control-character",
	KIND_TAB_AS_INDENT:            "tab-as-indent",
	KIND_BAD_ESCAPE:               "bad-escape",
	KIND_EOF_IN_TOKEN:             "eof-in-token",
	KIND_MISSING_COLON:            "missing-colon",
	KIND_UNEXPECTED_FLOW_END:      "unexpected-flow-end",
	KIND_DANGLING_DOCUMENT_MARKER: "dangling-document-marker",
	KIND_DUPLICATE_DIRECTIVE:      "duplicate-directive",
	KIND_UNKNOWN_TAG_HANDLE:       "unknown-tag-handle",
	KIND_BAD_BLOCK_SCALAR_INDENT:  "bad-block-scalar-indent",
	KIND_MULTILINE_PLAIN_KEY:      "multiline-plain-key",
	KIND_JSON_VIOLATION:           "json-violation",
	KIND_SYNTAX:                   "syntax",
	KIND_UNRESOLVED_ANCHOR:        "unresolved-anchor",
	KIND_ALIAS_CYCLE:              "alias-cycle",
	KIND_DUPLICATE_KEY:            "duplicate-key",
	KIND_INVALID_MERGE:            "invalid-merge",
	KIND_ALLOC_FAILED:             "alloc-failed",
	KIND_INPUT_READ_FAILED:        "input-read-failed",
	KIND_SCANNER_STUCK:            "scanner-stuck",
}

func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("kind-%d", int(k))
}

// Error is a positional diagnostic. It implements error.
type Error struct {
	Kind    Kind
	Module  string // originating module: "reader", "scan", "parse", ...
	File    string // input name.
	Problem string

	Start_mark fyh.Position
	End_mark   fyh.Position

	// Optional secondary context, i.e. "while parsing a flow mapping".
	Context      string
	Context_mark fyh.Position
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteByte(':')
	}
	fmt.Fprintf(&sb, "%d:%d: ", e.Start_mark.Line+1, e.Start_mark.Column+1)
	sb.WriteString(e.Problem)
	if e.Context != "" {
		fmt.Fprintf(&sb, " (%s at %d:%d)", e.Context, e.Context_mark.Line+1, e.Context_mark.Column+1)
	}
	fmt.Fprintf(&sb, " [%s/%s]", e.Module, e.Kind)
	return sb.String()
}

type Color int

const (
	COLOR_AUTO Color = iota
	COLOR_ON
	COLOR_OFF
)

// Config controls diagnostic output.
type Config struct {
	Quiet   bool
	Collect bool
	Color   Color
	Output  io.Writer  // nil means stderr.
	Logger  log.Logger // nil builds a logfmt logger over Output.
}

// Diag routes diagnostics. Errors are terminal for the emitting parser;
// warnings continue.
type Diag struct {
	mu        sync.Mutex
	cfg       Config
	logger    log.Logger
	collected []*Error
	useColor  bool
}

func New(cfg Config) *Diag {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(out))
	}
	useColor := cfg.Color == COLOR_ON
	if cfg.Color == COLOR_AUTO {
		f, ok := out.(*os.File)
		useColor = ok && isTerminal(f)
	}
	return &Diag{cfg: cfg, logger: logger, useColor: useColor}
}

func isTerminal(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}

// ReportError logs and (optionally) collects the error.
func (d *Diag) ReportError(e *Error) {
	d.report(level.Error(d.logger), e)
}

// ReportWarning logs a warning; warnings are additive and never stick.
func (d *Diag) ReportWarning(e *Error) {
	d.report(level.Warn(d.logger), e)
}

func (d *Diag) report(logger log.Logger, e *Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.Collect {
		d.collected = append(d.collected, e)
	}
	if d.cfg.Quiet {
		return
	}
	_ = logger.Log(
		"module", e.Module,
		"kind", e.Kind.String(),
		"file", e.File,
		"line", e.Start_mark.Line+1,
		"column", e.Start_mark.Column+1,
		"msg", e.Problem,
	)
}

// Collected returns the diagnostics gathered so far.
func (d *Diag) Collected() []*Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Error, len(d.collected))
	copy(out, d.collected)
	return out
}

const (
	ansiRed   = "\x1b[31;1m"
	ansiReset = "\x1b[0m"
)

// Render produces the human readable form of an error over its source
// line: position header, the line itself and a caret underline of the
// offending range.
func (d *Diag) Render(e *Error, source []byte) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	sb.WriteByte('\n')

	line := sourceLine(source, e.Start_mark.Offset)
	if line == nil {
		return sb.String()
	}
	sb.Write(line)
	sb.WriteByte('\n')

	width := e.End_mark.Column - e.Start_mark.Column
	if width < 1 || e.End_mark.Line != e.Start_mark.Line {
		width = 1
	}
	sb.WriteString(strings.Repeat(" ", e.Start_mark.Column))
	if d.useColor {
		sb.WriteString(ansiRed)
	}
	sb.WriteByte('^')
	if width > 1 {
		sb.WriteString(strings.Repeat("~", width-1))
	}
	if d.useColor {
		sb.WriteString(ansiReset)
	}
	return sb.String()
}

func sourceLine(source []byte, offset int) []byte {
	if offset > len(source) {
		return nil
	}
	start := bytes.LastIndexByte(source[:offset], '\n') + 1
	end := bytes.IndexByte(source[offset:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += offset
	}
	return source[start:end]
}
