package stepexec

import (
	"encoding/json"
	"regexp"
	"strings"
)

// The parser is intentionally forgiving. Models are asked for bare JSON but
// routinely wrap it in code fences, lead with commentary, or drop the
// structure entirely; four tiers recover progressively rougher output before
// declaring the text unparsable.

var (
	// fencePattern strips ``` / ```json wrappers.
	fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	// keyValuePattern pulls "key": "value" pairs out of free text for the
	// last-resort tier.
	keyValuePattern = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// parseResponse recovers a JSON payload from raw model text. The boolean is
// true when no tier succeeded and the text was wrapped as {"content": raw}.
//
// Tiers: (a) direct parse; (b) parse after stripping code fences;
// (c) first balanced JSON object or array inside the text; (d) regex
// extraction of string key/value pairs.
func parseResponse(text string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(text)

	// (a) direct parse
	if raw, ok := tryParse(trimmed); ok {
		return raw, false
	}

	// (b) code-fence stripping
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		if raw, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return raw, false
		}
	}

	// (c) first balanced structure in free text
	if block := firstJSONBlock(trimmed); block != "" {
		if raw, ok := tryParse(block); ok {
			return raw, false
		}
	}

	// (d) named-key extraction
	if pairs := keyValuePattern.FindAllStringSubmatch(trimmed, -1); len(pairs) > 0 {
		obj := make(map[string]string, len(pairs))
		for _, p := range pairs {
			if _, dup := obj[p[1]]; !dup {
				var value string
				if err := json.Unmarshal([]byte(`"`+p[2]+`"`), &value); err != nil {
					continue
				}
				obj[p[1]] = value
			}
		}
		if len(obj) > 0 {
			if raw, err := json.Marshal(obj); err == nil {
				return raw, false
			}
		}
	}

	// All four tiers failed: preserve the text rather than losing it.
	wrapped, _ := json.Marshal(map[string]string{"content": text})
	return wrapped, true
}

// tryParse accepts only JSON objects and arrays; bare scalars are never a
// step payload.
func tryParse(s string) (json.RawMessage, bool) {
	if len(s) == 0 || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// firstJSONBlock scans for the first brace- or bracket-balanced block,
// respecting string literals and escapes.
func firstJSONBlock(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++ // skip the escaped character
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
