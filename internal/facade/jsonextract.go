package facade

import (
	"regexp"
	"strings"
)

// extractJSON pulls a JSON object out of an LLM response that may be wrapped
// in markdown code fences or preceded/followed by prose. It returns the
// first balanced `{...}` run it finds, or the trimmed input unchanged if it
// finds no braces at all.
func extractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	trimmed = stripCodeFences(trimmed)

	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return trimmed
	}
	depth, inString := 0, false
	for i := start; i < len(trimmed); i++ {
		switch c := trimmed[i]; {
		case inString && c == '\\':
			i++ // skip the escaped byte
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			if depth--; depth == 0 {
				return trimmed[start : i+1]
			}
		}
	}
	return trimmed
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "JSON")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// tolerateTrailingCommas strips a trailing comma before a closing brace or
// bracket, a syntax error strict JSON decoders reject but LLMs routinely
// produce.
func tolerateTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// normalizeJSON runs the full lenient-extraction pipeline: fence stripping,
// brace-run extraction, trailing-comma tolerance.
func normalizeJSON(response string) string {
	return tolerateTrailingCommas(extractJSON(response))
}

// aliasField returns the first present value among candidate keys in m,
// normalizing field-name variants an LLM might use interchangeably (e.g.
// "type"/"entityType"/"entity_type", or "from"/"to" edge endpoints).
func aliasField(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func aliasString(m map[string]any, keys ...string) string {
	v, ok := aliasField(m, keys...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
