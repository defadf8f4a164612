//
// Copyright (c) 2023 Pantelis Antoniou <pantelis.antoniou@konsulko.com>
//
// SPDX-License-Identifier: MIT
//

package generic

import (
	"math"
	"strconv"
	"strings"
)

// Schema selects the plain scalar classification rules.
type Schema int

const (
	SCHEMA_CORE Schema = iota // YAML 1.2 core schema; the default.
	SCHEMA_YAML_1_1           // adds the 1.1 bool variants and leading-zero octal.
	SCHEMA_JSON               // strict JSON literals and numbers only.
)

// Scalar is a classified plain scalar.
type Scalar struct {
	Type  Type
	Bool  bool
	Int   int64
	Float float64
}

var stringScalar = Scalar{Type: TypeString}

// ClassifyScalar resolves the lexical form of a plain scalar against
// the schema. Non-plain styles never reach here; they are strings by
// construction.
func ClassifyScalar(s []byte, schema Schema) Scalar {
	text := string(s)
	switch schema {
	case SCHEMA_JSON:
		return classifyJSON(text)
	case SCHEMA_YAML_1_1:
		return classifyYAML(text, true)
	default:
		return classifyYAML(text, false)
	}
}

func classifyYAML(text string, yaml11 bool) Scalar {
	switch text {
	case "", "~", "null", "Null", "NULL":
		return Scalar{Type: TypeNull}
	case "true", "True", "TRUE":
		return Scalar{Type: TypeBool, Bool: true}
	case "false", "False", "FALSE":
		return Scalar{Type: TypeBool}
	}
	if yaml11 {
		switch text {
		case "yes", "Yes", "YES", "on", "On", "ON", "y", "Y":
			return Scalar{Type: TypeBool, Bool: true}
		case "no", "No", "NO", "off", "Off", "OFF", "n", "N":
			return Scalar{Type: TypeBool}
		}
	}
	if sc, ok := classifyInt(text, yaml11); ok {
		return sc
	}
	if sc, ok := classifyFloat(text); ok {
		return sc
	}
	return stringScalar
}

func classifyInt(text string, yaml11 bool) (Scalar, bool) {
	t := text
	neg := false
	if len(t) > 0 && (t[0] == '+' || t[0] == '-') {
		neg = t[0] == '-'
		t = t[1:]
	}
	if t == "" {
		return stringScalar, false
	}
	base := 10
	switch {
	case strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X"):
		base, t = 16, t[2:]
	case strings.HasPrefix(t, "0o") || strings.HasPrefix(t, "0O"):
		base, t = 8, t[2:]
	case yaml11 && len(t) > 1 && t[0] == '0':
		// Legacy 1.1 octal, '0777' style.
		base, t = 8, t[1:]
	}
	if t == "" {
		return stringScalar, false
	}
	// Parse with the sign attached so the full negative range,
	// including the minimum, stays an integer.
	signed := t
	if neg {
		signed = "-" + t
	}
	if i, err := strconv.ParseInt(signed, base, 64); err == nil {
		return Scalar{Type: TypeInt, Int: i}, true
	}
	if !neg {
		// Try the unsigned range before giving up.
		if u, uerr := strconv.ParseUint(t, base, 64); uerr == nil {
			return Scalar{Type: TypeInt, Int: int64(u)}, true
		}
	}
	return stringScalar, false
}

func classifyFloat(text string) (Scalar, bool) {
	t := text
	sign := 1.0
	if len(t) > 0 && (t[0] == '+' || t[0] == '-') {
		if t[0] == '-' {
			sign = -1
		}
		t = t[1:]
	}
	switch t {
	case ".inf", ".Inf", ".INF":
		return Scalar{Type: TypeFloat, Float: sign * math.Inf(1)}, true
	case ".nan", ".NaN", ".NAN":
		return Scalar{Type: TypeFloat, Float: math.NaN()}, true
	}
	if t == "" || strings.ContainsAny(t, "_ ") {
		return stringScalar, false
	}
	// Require a float marker so integers stay integers.
	if !strings.ContainsAny(t, ".eE") {
		return stringScalar, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return stringScalar, false
	}
	return Scalar{Type: TypeFloat, Float: sign * f}, true
}

func classifyJSON(text string) Scalar {
	switch text {
	case "null":
		return Scalar{Type: TypeNull}
	case "true":
		return Scalar{Type: TypeBool, Bool: true}
	case "false":
		return Scalar{Type: TypeBool}
	}
	if jsonCanonicalNumber(text) {
		if !strings.ContainsAny(text, ".eE") {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return Scalar{Type: TypeInt, Int: i}
			}
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Scalar{Type: TypeFloat, Float: f}
		}
	}
	return stringScalar
}

// jsonCanonicalNumber accepts the JSON number grammar: an optional
// minus, no leading zeros, optional fraction and exponent.
func jsonCanonicalNumber(text string) bool {
	i, n := 0, len(text)
	if n == 0 {
		return false
	}
	if text[i] == '-' {
		i++
	}
	if i >= n {
		return false
	}
	switch {
	case text[i] == '0':
		i++
	case text[i] >= '1' && text[i] <= '9':
		for i < n && text[i] >= '0' && text[i] <= '9' {
			i++
		}
	default:
		return false
	}
	if i < n && text[i] == '.' {
		i++
		if i >= n || text[i] < '0' || text[i] > '9' {
			return false
		}
		for i < n && text[i] >= '0' && text[i] <= '9' {
			i++
		}
	}
	if i < n && (text[i] == 'e' || text[i] == 'E') {
		i++
		if i < n && (text[i] == '+' || text[i] == '-') {
			i++
		}
		if i >= n || text[i] < '0' || text[i] > '9' {
			return false
		}
		for i < n && text[i] >= '0' && text[i] <= '9' {
			i++
		}
	}
	return i == n
}
