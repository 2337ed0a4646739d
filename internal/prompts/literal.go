package prompts

import (
	"strconv"
	"strings"
	"unicode"
)

// parseLiteral parses a bracketed list whose elements are single- or
// double-quoted strings, the shape text models return when asked for "a list
// of strings". Bare numbers and keywords are kept as their literal text.
func parseLiteral(src string) ([]string, bool) {
	s := &scanner{src: src}
	s.skipSpace()
	if !s.consume('[') {
		return nil, false
	}

	out := []string{}
	for {
		s.skipSpace()
		if s.consume(']') {
			break
		}

		item, ok := s.element()
		if !ok {
			return nil, false
		}
		out = append(out, item)

		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume(']') {
			break
		}
		return nil, false
	}

	s.skipSpace()
	if !s.done() {
		return nil, false
	}
	return out, true
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) consume(c byte) bool {
	if s.peek() == c && !s.done() {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) skipSpace() {
	for !s.done() && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

// element reads one list element. Adjacent quoted strings are joined.
func (s *scanner) element() (string, bool) {
	c := s.peek()
	if c != '\'' && c != '"' {
		return s.bare()
	}

	var b strings.Builder
	for {
		part, ok := s.quoted()
		if !ok {
			return "", false
		}
		b.WriteString(part)

		save := s.pos
		s.skipSpace()
		if c := s.peek(); c != '\'' && c != '"' {
			s.pos = save
			return b.String(), true
		}
	}
}

func (s *scanner) bare() (string, bool) {
	start := s.pos
	for !s.done() {
		c := s.src[s.pos]
		if c == ',' || c == ']' || unicode.IsSpace(rune(c)) {
			break
		}
		s.pos++
	}

	tok := s.src[start:s.pos]
	if tok == "" {
		return "", false
	}
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return tok, true
	}
	switch tok {
	case "True", "False", "None", "true", "false", "null":
		return tok, true
	}
	return "", false
}

func (s *scanner) quoted() (string, bool) {
	quote := s.src[s.pos]
	s.pos++

	var b strings.Builder
	for !s.done() {
		c := s.src[s.pos]
		switch {
		case c == quote:
			s.pos++
			return b.String(), true
		case c == '\n':
			return "", false
		case c == '\\':
			s.pos++
			if s.done() {
				return "", false
			}
			if !s.escape(&b) {
				return "", false
			}
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", false
}

func (s *scanner) escape(b *strings.Builder) bool {
	c := s.src[s.pos]
	s.pos++

	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case '\\', '\'', '"':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'u':
		if s.pos+4 > len(s.src) {
			return false
		}
		code, err := strconv.ParseUint(s.src[s.pos:s.pos+4], 16, 32)
		if err != nil {
			return false
		}
		b.WriteRune(rune(code))
		s.pos += 4
	default:
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return true
}
