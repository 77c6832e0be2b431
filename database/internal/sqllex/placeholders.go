// Package sqllex scans SQL text for bind placeholders and statement shape while
// skipping string literals, quoted identifiers and comments.
package sqllex

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-datasource/database/types"
)

// Style identifies the placeholder convention used by a statement.
type Style int

const (
	StyleNone Style = iota
	// StylePositional is "?" placeholders filled in order.
	StylePositional
	// StyleOrdinal is "$1" or ":1" placeholders referencing a 1-based position.
	StyleOrdinal
	// StyleNamed is ":name" placeholders; a name may repeat.
	StyleNamed
)

func (s Style) String() string {
	switch s {
	case StylePositional:
		return "positional"
	case StyleOrdinal:
		return "ordinal"
	case StyleNamed:
		return "named"
	default:
		return "none"
	}
}

// Slot is one placeholder occurrence.
type Slot struct {
	// Index is the zero-based positional index for positional and ordinal slots.
	Index int
	// Name is set for named slots.
	Name string
}

// Parsed is a statement with every placeholder replaced by "?" and literal
// question marks escaped as "??", ready for squirrel placeholder formatting.
type Parsed struct {
	SQL   string
	Slots []Slot
	Style Style
}

// Names returns the distinct named placeholders in order of first appearance.
func (p *Parsed) Names() []string {
	seen := make(map[string]struct{}, len(p.Slots))
	var names []string
	for _, s := range p.Slots {
		if s.Name == "" {
			continue
		}
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		names = append(names, s.Name)
	}
	return names
}

// Arity returns how many distinct positional values the statement expects.
func (p *Parsed) Arity() int {
	switch p.Style {
	case StyleNamed:
		return len(p.Names())
	case StyleOrdinal:
		maxIdx := -1
		for _, s := range p.Slots {
			maxIdx = max(maxIdx, s.Index)
		}
		return maxIdx + 1
	default:
		return len(p.Slots)
	}
}

// Format renders the statement with the dialect placeholder format.
func (p *Parsed) Format(format squirrel.PlaceholderFormat) (string, error) {
	if format == nil {
		format = squirrel.Question
	}
	if format == squirrel.Question {
		return strings.ReplaceAll(p.SQL, "??", "?"), nil
	}
	return format.ReplacePlaceholders(p.SQL)
}

// Parse scans query for "?", "$n", ":n" and ":name" placeholders. Mixing conventions
// returns an error wrapping types.ErrMixedParameters.
func Parse(query string) (*Parsed, error) {
	l := lexer{src: query}
	if err := l.run(); err != nil {
		return nil, err
	}
	return &Parsed{SQL: l.out.String(), Slots: l.slots, Style: l.style}, nil
}

type lexer struct {
	src   string
	pos   int
	out   strings.Builder
	slots []Slot
	style Style
	next  int
}

func (l *lexer) run() error {
	l.out.Grow(len(l.src))
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\'':
			l.copyQuoted('\'', l.isEscapeString())
		case c == '"':
			l.copyQuoted('"', false)
		case c == '-' && l.peek(1) == '-':
			l.copyUntil("\n")
		case c == '/' && l.peek(1) == '*':
			l.copyBlockComment()
		case c == '$' && isIdentPart(l.prev()):
			l.emit(c)
		case c == '$' && isDigit(l.peek(1)):
			if err := l.ordinal(1); err != nil {
				return err
			}
		case c == '$':
			if !l.copyDollarQuoted() {
				l.emit(c)
			}
		case c == ':' && (l.peek(1) == ':' || l.peek(1) == '='):
			l.out.WriteString(l.src[l.pos : l.pos+2])
			l.pos += 2
		case c == ':' && isDigit(l.peek(1)) && !isIdentPart(l.prev()):
			if err := l.ordinal(1); err != nil {
				return err
			}
		case c == ':' && isIdentStart(l.peek(1)) && !isIdentPart(l.prev()):
			if err := l.named(); err != nil {
				return err
			}
		case c == '?':
			if err := l.setStyle(StylePositional); err != nil {
				return err
			}
			l.slots = append(l.slots, Slot{Index: l.next})
			l.next++
			l.out.WriteByte('?')
			l.pos++
		default:
			l.emit(c)
		}
	}
	return nil
}

func (l *lexer) setStyle(s Style) error {
	if l.style == StyleNone || l.style == s {
		l.style = s
		return nil
	}
	return fmt.Errorf("%w: %s and %s placeholders at offset %d", types.ErrMixedParameters, l.style, s, l.pos)
}

func (l *lexer) ordinal(skip int) error {
	if err := l.setStyle(StyleOrdinal); err != nil {
		return err
	}
	start := l.pos + skip
	end := start
	for end < len(l.src) && isDigit(l.src[end]) {
		end++
	}
	n := 0
	for _, d := range l.src[start:end] {
		n = n*10 + int(d-'0')
	}
	if n == 0 {
		return fmt.Errorf("invalid placeholder %q at offset %d", l.src[l.pos:end], l.pos)
	}
	l.slots = append(l.slots, Slot{Index: n - 1})
	l.out.WriteByte('?')
	l.pos = end
	return nil
}

func (l *lexer) named() error {
	if err := l.setStyle(StyleNamed); err != nil {
		return err
	}
	start := l.pos + 1
	end := start
	for end < len(l.src) && isIdentPart(l.src[end]) {
		end++
	}
	l.slots = append(l.slots, Slot{Name: l.src[start:end]})
	l.out.WriteByte('?')
	l.pos = end
	return nil
}

// emit copies one byte, escaping literal question marks.
func (l *lexer) emit(c byte) {
	if c == '?' {
		l.out.WriteString("??")
	} else {
		l.out.WriteByte(c)
	}
	l.pos++
}

func (l *lexer) copyRange(end int) {
	for l.pos < end {
		l.emit(l.src[l.pos])
	}
}

func (l *lexer) copyQuoted(quote byte, backslash bool) {
	i := l.pos + 1
	for i < len(l.src) {
		switch {
		case backslash && l.src[i] == '\\':
			i += 2
			continue
		case l.src[i] == quote && i+1 < len(l.src) && l.src[i+1] == quote:
			i += 2
			continue
		case l.src[i] == quote:
			l.copyRange(i + 1)
			return
		}
		i++
	}
	l.copyRange(len(l.src))
}

func (l *lexer) copyUntil(terminator string) {
	idx := strings.Index(l.src[l.pos:], terminator)
	if idx < 0 {
		l.copyRange(len(l.src))
		return
	}
	l.copyRange(l.pos + idx + len(terminator))
}

func (l *lexer) copyBlockComment() {
	idx := strings.Index(l.src[l.pos+2:], "*/")
	if idx < 0 {
		l.copyRange(len(l.src))
		return
	}
	l.copyRange(l.pos + 2 + idx + 2)
}

// copyDollarQuoted copies a PostgreSQL $tag$...$tag$ string and reports whether one started here.
func (l *lexer) copyDollarQuoted() bool {
	end := l.pos + 1
	for end < len(l.src) && isIdentPart(l.src[end]) {
		end++
	}
	if end >= len(l.src) || l.src[end] != '$' {
		return false
	}
	tag := l.src[l.pos : end+1]
	closing := strings.Index(l.src[end+1:], tag)
	if closing < 0 {
		l.copyRange(len(l.src))
		return true
	}
	l.copyRange(end + 1 + closing + len(tag))
	return true
}

// isEscapeString reports whether the quote at pos opens a PostgreSQL E'...' string.
func (l *lexer) isEscapeString() bool {
	if l.pos == 0 {
		return false
	}
	p := l.src[l.pos-1]
	if p != 'E' && p != 'e' {
		return false
	}
	return l.pos == 1 || !isIdentPart(l.src[l.pos-2])
}

func (l *lexer) peek(n int) byte {
	if l.pos+n < len(l.src) {
		return l.src[l.pos+n]
	}
	return 0
}

func (l *lexer) prev() byte {
	if l.pos == 0 {
		return 0
	}
	return l.src[l.pos-1]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
