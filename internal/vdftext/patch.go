package vdftext

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const personaStateKey = "PersonaState"

// ReplaceFirstValue rewrites the value of the first `"key" "value"` line for
// key. Keys are matched case-sensitively. The rest of text is returned as is.
func ReplaceFirstValue(text, key, value string) (string, bool) {
	quoted := `"` + key + `"`
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		keyAt := strings.Index(line, quoted)
		if keyAt < 0 {
			continue
		}
		end := strings.LastIndex(line, `"`)
		if end <= keyAt+len(quoted)-1 {
			continue
		}
		start := strings.LastIndex(line[:end], `"`)
		if start < keyAt+len(quoted) {
			continue
		}
		lines[i] = line[:start+1] + value + line[end:]
		return strings.Join(lines, ""), true
	}
	return text, false
}

// PatchPersonaState sets the first PersonaState value in the localconfig file
// at path. State digits outside 0-7 and missing files are no-ops. The file is
// read whole and overwritten whole; a crash mid-write can corrupt it.
func PatchPersonaState(path, state string) (bool, error) {
	if len(state) != 1 || state[0] < '0' || state[0] > '7' {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	updated, found := ReplaceFirstValue(string(data), personaStateKey, state)
	if !found {
		return false, nil
	}
	if updated == string(data) {
		return true, nil
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// SetBlockValue sets key to value inside the first block named block. An
// existing line for key is rewritten in place; otherwise a new line is added
// directly after the block's opening brace, indented one level deeper. The
// flag is false when neither the key nor the block could be found.
func SetBlockValue(text, block, key, value string) (string, bool) {
	if out, ok := ReplaceFirstValue(text, key, value); ok {
		return out, true
	}

	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		if !strings.EqualFold(strings.TrimSpace(line), `"`+block+`"`) {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			if trimmed != "{" {
				break
			}
			indent := lines[j][:strings.Index(lines[j], "{")]
			eol := "\n"
			if strings.HasSuffix(lines[j], "\r\n") {
				eol = "\r\n"
			}
			entry := indent + "\t" + `"` + key + `"` + "\t\t" + `"` + value + `"` + eol
			out := strings.Join(lines[:j+1], "") + entry + strings.Join(lines[j+1:], "")
			return out, true
		}
	}
	return text, false
}
