package protocol

import (
	"sort"
	"strings"
)

// Object literals render nested key/value data on a single value line, e.g.
// {special_attack_uses: 5, special_defense_uses: 5}. The codec carries them
// as opaque strings; the session layer formats and parses them with these
// helpers. Keys are emitted in sorted order so both peers render identical
// bytes. Keys and values must not contain '{', '}', ',' or ':'.

// FormatObjectLiteral renders m as a single-line object literal with keys in
// sorted order.
func FormatObjectLiteral(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(m[k])
	}
	b.WriteByte('}')
	return b.String()
}

// ParseObjectLiteral parses a single-line object literal back into a map.
// The empty object {} yields an empty map.
func ParseObjectLiteral(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, malformedf("object literal must be brace-delimited: %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	m := make(map[string]string)
	if body == "" {
		return m, nil
	}
	for _, pair := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, malformedf("object entry %q is not a key: value pair", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			return nil, malformedf("object entry %q has an empty key", pair)
		}
		m[key] = value
	}
	return m, nil
}
