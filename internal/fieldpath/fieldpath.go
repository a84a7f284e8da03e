// Package fieldpath reads string leaves out of JSON documents of unknown shape
// using operator-supplied dotted paths such as "data.result.text" or
// "item_list.0.url".
package fieldpath

import (
	"strings"

	"github.com/tidwall/gjson"
)

// String walks path over the JSON document and returns the leaf when it is a
// JSON string. Numeric segments index arrays. Blank paths, missing keys, and
// non-string leaves report false.
func String(doc []byte, path string) (string, bool) {
	query, ok := compile(path)
	if !ok {
		return "", false
	}
	result := gjson.GetBytes(doc, query)
	if !result.Exists() || result.Type != gjson.String {
		return "", false
	}
	return result.Str, true
}

// Valid reports whether doc is well-formed JSON.
func Valid(doc []byte) bool {
	return gjson.ValidBytes(doc)
}

// Int returns the leaf at path when it is a JSON number.
func Int(doc []byte, path string) (int64, bool) {
	query, ok := compile(path)
	if !ok {
		return 0, false
	}
	result := gjson.GetBytes(doc, query)
	if result.Type != gjson.Number {
		return 0, false
	}
	return result.Int(), true
}

// First returns the first candidate path that resolves to a non-blank string,
// trimmed. The operator override, when set, is tried before the candidates.
func First(doc []byte, override string, candidates ...string) (string, bool) {
	if strings.TrimSpace(override) != "" {
		if value, ok := String(doc, override); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	for _, candidate := range candidates {
		if value, ok := String(doc, candidate); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// compile turns a dotted path into a gjson query. Segment punctuation is
// escaped so keys like "video_(id)/page" match literally instead of being read
// as gjson wildcards or modifiers.
func compile(path string) (string, bool) {
	raw := strings.Split(path, ".")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		segments = append(segments, escape(segment))
	}
	if len(segments) == 0 {
		return "", false
	}
	return strings.Join(segments, "."), true
}

func escape(segment string) string {
	var b strings.Builder
	b.Grow(len(segment) * 2)
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		if isPathPunct(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isPathPunct(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == '_' || c == '-':
		return false
	case c >= 0x80:
		return false
	}
	return c > ' '
}
