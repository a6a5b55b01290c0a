package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON returns the first JSON object embedded in a completion.
// Models wrap structured output in markdown fences or surround it with
// prose, so it checks fenced blocks first, then scans for a balanced
// top-level object, then tries the text as-is.
func ExtractJSON(text string) (string, bool) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if json.Valid([]byte(m[1])) {
			return m[1], true
		}
	}

	if obj, ok := scanJSONObject(text); ok {
		return obj, true
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	return "", false
}

// scanJSONObject counts braces outside string literals and returns the
// first balanced object that actually parses.
func scanJSONObject(text string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				start = -1
			}
		}
	}
	return "", false
}

// DecodeJSON extracts the first JSON object in text and unmarshals it
// into v.
func DecodeJSON(text string, v any) error {
	raw, ok := ExtractJSON(text)
	if !ok {
		return fmt.Errorf("no JSON object found in completion")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode completion JSON: %w", err)
	}
	return nil
}
