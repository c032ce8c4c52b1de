// Package vdftext reads and edits Valve's brace-nested key/value text files
// line by line. It is deliberately lenient: malformed sections are dropped
// instead of failing the whole document, and edits touch only the bytes they
// replace.
package vdftext

import (
	"strings"
)

// Entry is one numeric-keyed block directly under the document root.
type Entry struct {
	ID     string
	Fields map[string]string
}

// ParseLoginEntries returns every numeric top-level block keyed by its id,
// with inner keys lower-cased.
func ParseLoginEntries(text string) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, e := range ParseLoginEntriesOrdered(text) {
		out[e.ID] = e.Fields
	}
	return out
}

// ParseLoginEntriesOrdered is ParseLoginEntries preserving file order. A block
// id that appears twice keeps its first position and its last contents.
func ParseLoginEntriesOrdered(text string) []Entry {
	var (
		entries []Entry
		index   = map[string]int{}
		current string
		fields  map[string]string
		depth   int
	)

	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "{":
			depth++
			continue
		case "}":
			depth--
			if depth < 0 {
				depth = 0
				current, fields = "", nil
				continue
			}
			if depth == 1 && current != "" {
				if i, ok := index[current]; ok {
					entries[i].Fields = fields
				} else {
					index[current] = len(entries)
					entries = append(entries, Entry{ID: current, Fields: fields})
				}
				current, fields = "", nil
			}
			continue
		}

		parts := strings.Split(trimmed, `"`)
		switch {
		case len(parts) >= 4:
			if depth == 2 && current != "" {
				fields[strings.ToLower(parts[1])] = parts[3]
			}
		case len(parts) >= 2:
			if depth != 1 {
				continue
			}
			if key := parts[1]; isDigits(key) {
				current, fields = key, map[string]string{}
			} else {
				current, fields = "", nil
			}
		}
	}
	return entries
}

// RemoveAccountEntry drops every top-level block whose numeric key is id.
// Every other byte of text is kept, including line endings. The returned
// flag is false, and text is returned untouched, when no such block exists.
func RemoveAccountEntry(text, id string) (string, bool) {
	if !isDigits(id) {
		return text, false
	}

	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	b.Grow(len(text))
	removed := false
	depth := 0
	start := -1
	kept := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "{":
			depth++
			continue
		case "}":
			depth--
			if depth < 0 {
				depth = 0
				start = -1
				continue
			}
			if depth == 1 && start >= 0 {
				b.WriteString(strings.Join(lines[kept:start], ""))
				kept = i + 1
				start = -1
				removed = true
			}
			continue
		}

		if depth != 1 {
			continue
		}
		parts := strings.Split(trimmed, `"`)
		if len(parts) >= 2 && len(parts) < 4 {
			if parts[1] == id {
				start = i
			} else {
				start = -1
			}
		}
	}
	if !removed {
		return text, false
	}
	b.WriteString(strings.Join(lines[kept:], ""))
	return b.String(), true
}

// SplitKeyValue splits a `"key" "value"` line. ok is false for lines that do
// not carry both a quoted key and a quoted value.
func SplitKeyValue(line string) (key, value string, ok bool) {
	parts := strings.Split(strings.TrimSpace(line), `"`)
	if len(parts) < 4 {
		return "", "", false
	}
	return parts[1], parts[3], true
}

// ExtractValue returns the value of the first line whose key matches key,
// ignoring case.
func ExtractValue(text, key string) (string, bool) {
	for _, line := range strings.SplitAfter(text, "\n") {
		k, v, ok := SplitKeyValue(line)
		if ok && strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ExtractValues returns the values of every line whose key matches key,
// ignoring case, in file order.
func ExtractValues(text, key string) []string {
	var out []string
	for _, line := range strings.SplitAfter(text, "\n") {
		k, v, ok := SplitKeyValue(line)
		if ok && strings.EqualFold(k, key) {
			out = append(out, v)
		}
	}
	return out
}

// UnescapePath turns the doubled backslashes Valve writes into single ones.
func UnescapePath(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
