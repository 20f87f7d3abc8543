// Package topic computes the routing key ("topic") of outbound messages from
// channel key templates such as "ORDERS/${Region}/${Product:ALL}".
//
// Resolution happens in two phases. At configuration time the initial
// key-resolution table of a channel is substituted once into its template
// (Template.Substitute). At send time a Resolver fills in the variables that
// remain, from a per-send key-resolution table or from message fields.
package topic

import (
	"fmt"
	"strings"
)

type segment struct {
	literal    string
	variable   string
	def        string
	hasDefault bool
}

func (s segment) isVariable() bool { return s.variable != "" }

// Template is a parsed channel key.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate parses a key template. Variables are written ${Name} or
// ${Name:default}; everything else is literal.
func ParseTemplate(key string) (Template, error) {
	t := Template{raw: key}
	rest := key
	for len(rest) > 0 {
		start := strings.Index(rest, "${")
		if start < 0 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if start > 0 {
			t.segments = append(t.segments, segment{literal: rest[:start]})
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return Template{}, fmt.Errorf("key %q: unterminated variable at offset %d", key, len(key)-len(rest)+start)
		}
		body := rest[start+2 : start+end]
		seg := segment{variable: body}
		if name, def, ok := strings.Cut(body, ":"); ok {
			seg = segment{variable: name, def: def, hasDefault: true}
		}
		if strings.TrimSpace(seg.variable) == "" {
			return Template{}, fmt.Errorf("key %q: empty variable name", key)
		}
		t.segments = append(t.segments, seg)
		rest = rest[start+end+1:]
	}
	return t, nil
}

// MustParseTemplate is ParseTemplate for keys known to be valid.
func MustParseTemplate(key string) Template {
	t, err := ParseTemplate(key)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) String() string { return t.raw }

// IsStatic reports whether the template has no variables left.
func (t Template) IsStatic() bool {
	for _, s := range t.segments {
		if s.isVariable() {
			return false
		}
	}
	return true
}

// Variables lists the variable names in order of appearance.
func (t Template) Variables() []string {
	var names []string
	for _, s := range t.segments {
		if s.isVariable() {
			names = append(names, s.variable)
		}
	}
	return names
}

// Substitute replaces the variables present in krt and leaves the others,
// including their defaults, verbatim. It is the static half of key
// resolution and runs once per channel.
func (t Template) Substitute(krt map[string]string) string {
	if len(krt) == 0 {
		return t.raw
	}
	var b strings.Builder
	b.Grow(len(t.raw))
	for _, s := range t.segments {
		if !s.isVariable() {
			b.WriteString(s.literal)
			continue
		}
		if v, ok := krt[s.variable]; ok {
			b.WriteString(v)
			continue
		}
		b.WriteString("${")
		b.WriteString(s.variable)
		if s.hasDefault {
			b.WriteByte(':')
			b.WriteString(s.def)
		}
		b.WriteByte('}')
	}
	return b.String()
}
