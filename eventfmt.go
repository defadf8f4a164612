//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package fyaml

import (
	"strings"

	"github.com/pantoniou/libfyaml-go/internal/fyh"
)

// EventString renders an event in the test suite line format:
//
//	+STR / -STR               stream start and end
//	+DOC [---] / -DOC [...]   document start and end, markers when explicit
//	+SEQ / +MAP [&a] [<tag>]  collection starts with decorations
//	-SEQ / -MAP               collection ends
//	=VAL [&a] [<tag>] Svalue  scalar, S one of : ' " | >
//	=ALI *a                   alias
func EventString(ev *Event) string {
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
		writeDecorations(&sb, ev)
	case fyh.SEQUENCE_END_EVENT:
		sb.WriteString("-SEQ")
	case fyh.MAPPING_START_EVENT:
		sb.WriteString("+MAP")
		writeDecorations(&sb, ev)
	case fyh.MAPPING_END_EVENT:
		sb.WriteString("-MAP")
	case fyh.SCALAR_EVENT:
		sb.WriteString("=VAL")
		writeDecorations(&sb, ev)
		sb.WriteByte(' ')
		sb.WriteByte(scalarStyleChar(ev.ScalarStyle()))
		writeEscaped(&sb, scalarValue(ev))
	case fyh.ALIAS_EVENT:
		sb.WriteString("=ALI *")
		sb.Write(ev.AnchorValue())
	default:
		sb.WriteString("?" + ev.Type.String())
	}

	return sb.String()
}

func writeDecorations(sb *strings.Builder, ev *Event) {
	if a := ev.AnchorValue(); a != nil {
		sb.WriteString(" &")
		sb.Write(a)
	}
	if t := ev.TagValue(); t != nil {
		sb.WriteString(" <")
		sb.Write(t)
		sb.WriteByte('>')
	}
}

func scalarStyleChar(style fyh.AtomStyle) byte {
	switch style {
	case fyh.SINGLE_QUOTED_ATOM:
		return '\''
	case fyh.DOUBLE_QUOTED_ATOM:
		return '"'
	case fyh.LITERAL_ATOM:
		return '|'
	case fyh.FOLDED_ATOM:
		return '>'
	}
	return ':'
}

func scalarValue(ev *Event) []byte {
	if ev.Value == nil {
		return nil
	}
	return ev.Value.Atom.Value
}

// writeEscaped emits scalar content with backslash, linebreak, tab,
// backspace and carriage return escaped so every event fits one line.
func writeEscaped(sb *strings.Builder, s []byte) {
	for _, c := range s {
		switch c {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
}
