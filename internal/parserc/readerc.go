//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package parserc

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/text/width"

	"github.com/pantoniou/libfyaml-go/internal/diag"
	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// InputKind selects the source of an input.
type InputKind int

const (
	INPUT_FILE   InputKind = iota // a file, memory mapped when possible.
	INPUT_STREAM                  // an io.Reader, read in chunks.
	INPUT_MEMORY                  // a caller owned byte slice.
	INPUT_ALLOC                   // a byte slice whose ownership transfers here.
	INPUT_CALLBACK                // a pull function.
)

// PullFunc feeds a callback input; it follows io.Reader semantics.
type PullFunc func(buf []byte) (int, error)

// InputConfig describes one input of the logical stream.
type InputConfig struct {
	Kind      InputKind
	Name      string // diagnostic name; defaults per kind.
	Filename  string
	Stream    io.Reader
	ChunkSize int
	Data      []byte
	Pull      PullFunc

	// JSON mode override for this input; zero means inherit from the
	// parser configuration.
	JSONMode JSONMode
}

const defaultChunkSize = 64 * 1024

// input is one opened (or pending) source.
type input struct {
	cfg InputConfig
	ref *fyh.InputRef

	data   []byte // everything read so far; atoms alias into this.
	mapped mmap.MMap
	stream io.Reader
	eof    bool

	json bool
}

// Reader lowers the queued inputs into a single logical stream of
// Unicode scalars with position tracking.
type Reader struct {
	p *Parser

	inputs []*input
	cur    int

	pos      int // byte offset into the current input data.
	position fyh.Position

	tabWidth int
	err      error
}

func newReader(p *Parser) *Reader {
	tw := p.cfg.TabHandling
	if tw == TAB_AUTO {
		tw = 8
	}
	return &Reader{p: p, tabWidth: tw}
}

func (r *Reader) reset() {
	for _, in := range r.inputs[r.cur:] {
		if in.ref != nil {
			in.ref.Unref()
		}
	}
	r.inputs = nil
	r.cur = 0
	r.pos = 0
	r.position = fyh.Position{}
	r.err = nil
}

func (r *Reader) pushInput(icfg *InputConfig) error {
	if icfg == nil {
		return errors.New("nil input config")
	}
	in := &input{cfg: *icfg}
	switch icfg.Kind {
	case INPUT_FILE:
		if icfg.Filename == "" {
			return errors.New("file input needs a filename")
		}
	case INPUT_STREAM:
		if icfg.Stream == nil {
			return errors.New("stream input needs a reader")
		}
	case INPUT_MEMORY, INPUT_ALLOC:
		// Data may legitimately be empty.
	case INPUT_CALLBACK:
		if icfg.Pull == nil {
			return errors.New("callback input needs a pull function")
		}
	default:
		return errors.Errorf("unknown input kind %d", icfg.Kind)
	}
	r.inputs = append(r.inputs, in)
	return nil
}

func (in *input) name() string {
	if in.cfg.Name != "" {
		return in.cfg.Name
	}
	switch in.cfg.Kind {
	case INPUT_FILE:
		return in.cfg.Filename
	case INPUT_STREAM:
		return "<stream>"
	case INPUT_CALLBACK:
		return "<callback>"
	}
	return "<memory>"
}

// open prepares the source and decides JSON mode for the input.
func (r *Reader) open(in *input) error {
	switch in.cfg.Kind {
	case INPUT_FILE:
		if err := r.openFile(in); err != nil {
			return err
		}
	case INPUT_STREAM:
		in.stream = in.cfg.Stream
	case INPUT_MEMORY, INPUT_ALLOC:
		in.data = in.cfg.Data
		in.eof = true
	case INPUT_CALLBACK:
		in.stream = pullReader{in.cfg.Pull}
	}

	mode := in.cfg.JSONMode
	if mode == JSON_AUTO {
		mode = r.p.cfg.JSONMode
	}
	switch mode {
	case JSON_FORCE:
		in.json = true
	case JSON_OFF:
		in.json = false
	default:
		in.json = strings.HasSuffix(strings.ToLower(in.name()), ".json")
	}

	if in.ref == nil {
		mapped := in.mapped
		in.ref = fyh.NewInputRef(in.name(), func() {
			if mapped != nil {
				_ = mapped.Unmap()
			}
		})
	}

	r.skipBOM(in)
	return nil
}

func (r *Reader) openFile(in *input) error {
	f, err := os.Open(in.cfg.Filename)
	if err != nil {
		return errors.Wrap(err, "input open")
	}
	defer f.Close()

	if !r.p.cfg.DisableMmap {
		if m, merr := mmap.Map(f, mmap.RDONLY, 0); merr == nil {
			in.mapped = m
			in.data = m
			in.eof = true
			return nil
		}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "input read")
	}
	in.data = data
	in.eof = true
	return nil
}

type pullReader struct{ pull PullFunc }

func (pr pullReader) Read(buf []byte) (int, error) { return pr.pull(buf) }

// skipBOM drops a leading UTF-8 byte order mark. UTF-16 inputs are
// rejected up front.
func (r *Reader) skipBOM(in *input) {
	d := in.data
	if len(d) >= 3 && d[0] == 0xef && d[1] == 0xbb && d[2] == 0xbf {
		r.pos += 3
		r.position.Offset += 3
		return
	}
	if len(d) >= 2 && ((d[0] == 0xff && d[1] == 0xfe) || (d[0] == 0xfe && d[1] == 0xff)) {
		r.fail(diag.KIND_INVALID_UTF8, "UTF-16 input is not supported")
	}
}

func (r *Reader) fail(kind diag.Kind, problem string) {
	if r.err != nil {
		return
	}
	e := &diag.Error{
		Kind:       kind,
		Module:     "reader",
		File:       r.inputName(),
		Problem:    problem,
		Start_mark: r.position,
		End_mark:   r.position,
	}
	r.p.diag.ReportError(e)
	r.err = e
}

// Err returns the sticky reader error.
func (r *Reader) Err() error { return r.err }

func (r *Reader) inputName() string {
	if in := r.current(); in != nil {
		return in.name()
	}
	return ""
}

// current returns the input under the cursor, opening it if needed,
// or nil when all inputs are exhausted.
func (r *Reader) current() *input {
	for r.cur < len(r.inputs) {
		in := r.inputs[r.cur]
		if in.ref == nil {
			if err := r.open(in); err != nil {
				r.fail(diag.KIND_INPUT_READ_FAILED, err.Error())
				return nil
			}
		}
		if r.pos < len(in.data) || !in.eof {
			return in
		}
		// Exhausted; move on, restarting positions per input.
		in.ref.Unref()
		r.cur++
		r.pos = 0
		r.position = fyh.Position{}
	}
	return nil
}

// InputRef returns the pinning handle of the current input.
func (r *Reader) InputRef() *fyh.InputRef {
	if in := r.current(); in != nil {
		return in.ref
	}
	return nil
}

// JSONMode reports whether the current input parses under the JSON
// restrictions.
func (r *Reader) JSONMode() bool {
	if in := r.current(); in != nil {
		return in.json
	}
	return false
}

// ensure makes at least n more bytes available in the current input,
// pulling from the stream as needed. Returns the available count.
func (r *Reader) ensure(in *input, n int) int {
	for !in.eof && len(in.data)-r.pos < n {
		chunk := in.cfg.ChunkSize
		if chunk <= 0 {
			chunk = defaultChunkSize
		}
		buf := make([]byte, chunk)
		got, err := in.stream.Read(buf)
		if got > 0 {
			in.data = append(in.data, buf[:got]...)
		}
		if err == io.EOF {
			in.eof = true
		} else if err != nil {
			r.fail(diag.KIND_INPUT_READ_FAILED, err.Error())
			in.eof = true
		}
	}
	return len(in.data) - r.pos
}

// decodeAt decodes the rune at byte offset off of the current input.
func (r *Reader) decodeAt(in *input, off int) (rune, int) {
	avail := r.ensure(in, off-r.pos+utf8.UTFMax)
	if avail <= off-r.pos {
		return fyh.EOF, 0
	}
	d := in.data[off:]
	if d[0] < utf8.RuneSelf {
		return rune(d[0]), 1
	}
	c, w := utf8.DecodeRune(d)
	if c == utf8.RuneError && w <= 1 {
		if !utf8.FullRune(d) {
			return fyh.PARTIAL_UTF8, 0
		}
		return fyh.INVALID_UTF8, 0
	}
	return c, w
}

// Peek returns the scalar under the cursor without consuming it.
func (r *Reader) Peek() rune {
	in := r.current()
	if in == nil {
		return fyh.EOF
	}
	c, _ := r.decodeAt(in, r.pos)
	return c
}

// PeekAt returns the scalar n positions ahead of the cursor.
func (r *Reader) PeekAt(n int) rune {
	in := r.current()
	if in == nil {
		return fyh.EOF
	}
	off := r.pos
	for ; n > 0; n-- {
		_, w := r.decodeAt(in, off)
		if w == 0 {
			return fyh.EOF
		}
		off += w
	}
	c, _ := r.decodeAt(in, off)
	return c
}

// Advance consumes one scalar, updating the column. Line breaks go
// through AdvanceLine instead.
func (r *Reader) Advance() {
	in := r.current()
	if in == nil {
		return
	}
	c, w := r.decodeAt(in, r.pos)
	if w == 0 {
		return
	}
	r.pos += w
	r.position.Offset += w
	r.position.Column += r.columnsOf(c)
}

func (r *Reader) columnsOf(c rune) int {
	if c == '\t' {
		if r.tabWidth <= 0 {
			return 1
		}
		return r.tabWidth - (r.position.Column % r.tabWidth)
	}
	switch width.LookupRune(c).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// AdvanceLine consumes a full line break, treating CRLF as one break,
// and moves the position to the start of the next line.
func (r *Reader) AdvanceLine() {
	in := r.current()
	if in == nil {
		return
	}
	c, w := r.decodeAt(in, r.pos)
	if w == 0 {
		return
	}
	r.pos += w
	r.position.Offset += w
	if c == '\r' {
		if c2, w2 := r.decodeAt(in, r.pos); c2 == '\n' {
			r.pos += w2
			r.position.Offset += w2
		}
	}
	r.position.Line++
	r.position.Column = 0
}

// Mark returns the current position.
func (r *Reader) Mark() fyh.Position { return r.position }

// SliceFrom returns the raw source bytes from a mark to the cursor.
// Both ends must be in the current input.
func (r *Reader) SliceFrom(start fyh.Position) []byte {
	in := r.current()
	if in == nil || start.Offset > r.pos {
		return nil
	}
	return in.data[start.Offset:r.pos]
}

// SliceRange returns the raw source bytes between two marks of the
// current input.
func (r *Reader) SliceRange(start, end fyh.Position) []byte {
	in := r.current()
	if in == nil || start.Offset > end.Offset || end.Offset > len(in.data) {
		return nil
	}
	return in.data[start.Offset:end.Offset]
}
