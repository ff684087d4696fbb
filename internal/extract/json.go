package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// fencePattern matches markdown code fence markers such as ```json or a bare ```.
var fencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*")

func stripFences(content string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))
}

// outerSpan returns the text from the first open delimiter to the last close delimiter.
// It is not balance-aware: unrelated braces in surrounding prose widen the span.
func outerSpan(content string, open, close byte) (string, bool) {
	start := strings.IndexByte(content, open)
	if start == -1 {
		return "", false
	}
	end := strings.LastIndexByte(content, close)
	if end == -1 || end < start {
		return "", false
	}
	return content[start : end+1], true
}

func keyArrayPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*\[`)
}

// arrayAfterKey captures the array value of the first occurrence of key, ending at the
// bracket that closes it. Brackets inside string literals are ignored. It reports false
// when the key is missing or the array never closes.
func arrayAfterKey(content string, pattern *regexp.Regexp) (string, bool) {
	loc := pattern.FindStringIndex(content)
	if loc == nil {
		return "", false
	}
	start := loc[1] - 1
	end := closingBracket(content, start)
	if end == -1 {
		return "", false
	}
	return content[start : end+1], true
}

func closingBracket(content string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// objectFields decodes a JSON object and lower-cases its keys.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, true
}

// lookup returns the first present field among names.
func lookup(fields map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		if v, ok := fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// scalarString renders a JSON scalar as text. Strings are unquoted, numbers and booleans
// keep their literal form, null and containers become empty.
func scalarString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return trimmed
	}
}

func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, scalarString(item))
	}
	return out
}

// leadingInt reads an integer from a number or from text such as "25 minutes".
func leadingInt(raw json.RawMessage) (int, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(math.Round(n)), true
	}
	s := strings.TrimSpace(scalarString(raw))
	end := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if end == -1 {
		end = len(s)
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

// unquoteCapture decodes JSON escapes in a regex-captured string body.
func unquoteCapture(body string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err != nil {
		return body
	}
	return s
}
