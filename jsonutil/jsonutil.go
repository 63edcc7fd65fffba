// Package jsonutil provides the JSON helpers exposed to legacy scripts,
// e.g. as the JsonUtils global.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/joeycumines/go-utilpkg/jsonenc"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// maxSpace is the indent length limit applied by JSON.stringify.
const maxSpace = 10

// ErrUnsafeJSON is returned by SafeEval for input that isn't valid JSON.
var ErrUnsafeJSON = errors.New(`jsonutil: illegal character in JSON string`)

var lineTerminators = strings.NewReplacer(
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Stringify encodes v as JSON, without escaping HTML characters. If space is
// non-empty, the output is indented, one member per line, using space
// (truncated to 10 characters) as the indent, like JSON.stringify.
func Stringify(v any, space string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ``, err
	}
	return Indent(bytes.TrimRight(buf.Bytes(), "\n"), space), nil
}

// Indent reformats the JSON document b per [Stringify]. It is exported for
// callers that already hold encoded JSON, e.g. from a JS engine.
func Indent(b []byte, space string) string {
	if len(space) > maxSpace {
		space = space[:maxSpace]
	}
	if space == `` {
		return string(pretty.Ugly(b))
	}
	b = pretty.PrettyOptions(b, &pretty.Options{Indent: space})
	return string(bytes.TrimRight(b, "\n"))
}

// EscapeValue returns s encoded as a quoted JSON string, which is also safe
// to embed in a script, i.e. the line and paragraph separators are escaped.
func EscapeValue(s string) string {
	return lineTerminators.Replace(string(jsonenc.AppendString(nil, s)))
}

// SafeToEval returns true if s is a valid JSON document.
func SafeToEval(s string) bool {
	return gjson.Valid(s)
}

// SafeEval decodes s, which must be valid JSON, to the generic Go
// representation: map[string]any, []any, float64, string, bool, or nil.
func SafeEval(s string) (any, error) {
	if !SafeToEval(s) {
		return nil, ErrUnsafeJSON
	}
	return gjson.Parse(s).Value(), nil
}
