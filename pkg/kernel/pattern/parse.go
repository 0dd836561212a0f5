package pattern

import (
	"strings"
)

// segment is either literal text or a wildcard placeholder.
type segment struct {
	literal       string
	name          string
	constraint    string
	hasConstraint bool
}

func (s segment) isWildcard() bool { return s.name != "" }

// parse splits a template into literal and wildcard segments.
//
// Grammar: {name} or {name,REGEX}. Braces inside REGEX may nest one level
// as a quantifier ({w,a{3,5}}). Doubled braces are literal braces.
func parse(template string) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(template); {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			seg, end, err := parsePlaceholder(template, i)
			if err != nil {
				return nil, err
			}
			flush()
			segs = append(segs, seg)
			i = end
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return nil, &PatternError{Template: template, Msg: "single '}' encountered; use '}}' for a literal brace"}
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segs, nil
}

// parsePlaceholder parses the placeholder starting at template[start] == '{'
// and returns the segment and the index just past the closing brace.
func parsePlaceholder(template string, start int) (segment, int, error) {
	fail := func(msg string) (segment, int, error) {
		return segment{}, 0, &PatternError{Template: template, Msg: msg}
	}

	i := skipSpace(template, start+1)
	nameStart := i
	for i < len(template) && isWordByte(template[i]) {
		i++
	}
	name := template[nameStart:i]
	if name == "" {
		return fail("wildcard without a name")
	}
	i = skipSpace(template, i)
	if i >= len(template) {
		return fail("unterminated wildcard {" + name)
	}

	switch template[i] {
	case '}':
		return segment{name: name}, i + 1, nil
	case ',':
		i = skipSpace(template, i+1)
		var cons strings.Builder
		for i < len(template) {
			c := template[i]
			switch c {
			case '}':
				return segment{name: name, constraint: cons.String(), hasConstraint: true}, i + 1, nil
			case '{':
				end, ok := scanQuantifier(template, i)
				if !ok {
					return fail("braces inside the constraint of wildcard " + name + " must form a quantifier like {3} or {3,5}")
				}
				cons.WriteString(template[i:end])
				i = end
			default:
				cons.WriteByte(c)
				i++
			}
		}
		return fail("unterminated constraint for wildcard " + name)
	default:
		return fail("invalid character " + string(template[i]) + " in wildcard name " + name)
	}
}

// scanQuantifier matches {\d+(,\d*)?} at template[i].
func scanQuantifier(template string, i int) (int, bool) {
	j := i + 1
	digits := 0
	for j < len(template) && template[j] >= '0' && template[j] <= '9' {
		j++
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if j < len(template) && template[j] == ',' {
		j++
		for j < len(template) && template[j] >= '0' && template[j] <= '9' {
			j++
		}
	}
	if j < len(template) && template[j] == '}' {
		return j + 1, true
	}
	return 0, false
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// escapeBraces doubles every brace so the text survives parse as a literal.
func escapeBraces(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// render turns segments back into template text.
func render(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		if !s.isWildcard() {
			b.WriteString(escapeBraces(s.literal))
			continue
		}
		b.WriteByte('{')
		b.WriteString(s.name)
		if s.hasConstraint {
			b.WriteByte(',')
			b.WriteString(s.constraint)
		}
		b.WriteByte('}')
	}
	return b.String()
}
