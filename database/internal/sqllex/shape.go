package sqllex

import "strings"

var rowKeywords = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"SHOW":     {},
	"EXPLAIN":  {},
	"VALUES":   {},
	"TABLE":    {},
	"DESCRIBE": {},
}

// ReturnsRows reports whether query produces a result set: it starts with a reading
// keyword or carries a RETURNING clause outside literals and comments.
func ReturnsRows(query string) bool {
	words := Keywords(query)
	if len(words) == 0 {
		return false
	}
	if _, ok := rowKeywords[words[0]]; ok {
		return true
	}
	for _, w := range words[1:] {
		if w == "RETURNING" {
			// Oracle RETURNING ... INTO binds out-parameters instead of producing rows.
			return !containsInto(words)
		}
	}
	return false
}

// Operation returns the leading keyword of query in lower case, or "" for an empty statement.
func Operation(query string) string {
	words := Keywords(query)
	if len(words) == 0 {
		return ""
	}
	return strings.ToLower(words[0])
}

func containsInto(words []string) bool {
	seenReturning := false
	for _, w := range words {
		if w == "RETURNING" {
			seenReturning = true
		}
		if seenReturning && w == "INTO" {
			return true
		}
	}
	return false
}

// Keywords returns the upper-cased bare words of query, skipping literals, quoted
// identifiers, comments and placeholders.
func Keywords(query string) []string {
	var words []string
	i := 0
	for i < len(query) {
		c := query[i]
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(query, i, c)
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			if nl := strings.IndexByte(query[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = len(query)
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			if end := strings.Index(query[i+2:], "*/"); end >= 0 {
				i += end + 4
			} else {
				i = len(query)
			}
		case c == ':' || c == '$':
			i++
			for i < len(query) && isIdentPart(query[i]) {
				i++
			}
		case isIdentStart(c):
			start := i
			for i < len(query) && isIdentPart(query[i]) {
				i++
			}
			words = append(words, strings.ToUpper(query[start:i]))
		default:
			i++
		}
	}
	return words
}

func skipQuoted(s string, i int, quote byte) int {
	i++
	for i < len(s) {
		if s[i] == quote {
			if i+1 < len(s) && s[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}
