// Package headers decodes raw response header blocks and builds request
// header lines.
package headers

import (
	"sort"
	"strings"
)

// Decode turns a raw header block into a name/value map.
//
// Carriage returns are dropped, and each line without a colon is ignored
// (status lines, blank separators between redirect hops). A line is split at
// its first colon, so "Location: http://x:8080/" keeps the port in the value.
// Names and values are trimmed of surrounding whitespace and a line with an
// empty name is dropped; otherwise names keep the spelling found in raw. A
// repeated name keeps the last value seen.
//
// Blocks captured by internal/exchange are rebuilt from net/http's parsed
// headers, so names arrive in canonical form (x-foo becomes X-Foo) and
// hop-level lines such as Transfer-Encoding are absent.
func Decode(raw []byte) map[string]string {
	out := make(map[string]string)
	if len(raw) == 0 {
		return out
	}

	text := strings.ReplaceAll(string(raw), "\r", "")
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// Lookup finds name in h, preferring an exact match and falling back to a
// case-insensitive scan in sorted key order.
func Lookup(h map[string]string, name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}
	for _, k := range sortedKeys(h) {
		if strings.EqualFold(k, name) {
			return h[k], true
		}
	}
	return "", false
}

// Merge overlays override on base. Names are compared case-insensitively
// and the override's spelling wins.
func Merge(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		for existing := range out {
			if existing != k && strings.EqualFold(existing, k) {
				delete(out, existing)
			}
		}
		out[k] = v
	}
	return out
}

// Format renders h as "Name: value" lines sorted by name.
func Format(h map[string]string) []string {
	lines := make([]string, 0, len(h))
	for _, k := range sortedKeys(h) {
		lines = append(lines, k+": "+h[k])
	}
	return lines
}

// Parse splits a "Name: value" line produced by Format.
func Parse(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

// Has reports whether h carries name, ignoring case.
func Has(h map[string]string, name string) bool {
	_, ok := Lookup(h, name)
	return ok
}

func sortedKeys(h map[string]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
