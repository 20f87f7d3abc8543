package topic

import (
	"bytes"
	"sort"
	"strings"
)

// RawKRT is a key-resolution table in wire form: "Name=Value" pairs separated
// by commas. Lookups scan the bytes in place and never allocate.
type RawKRT []byte

// NewRawKRT encodes values as a RawKRT with keys in sorted order.
func NewRawKRT(values map[string]string) RawKRT {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
	}
	return RawKRT(b.String())
}

// Lookup returns the value stored for name.
func (r RawKRT) Lookup(name string) ([]byte, bool) {
	rest := []byte(r)
	for len(rest) > 0 {
		entry := rest
		if i := bytes.IndexByte(rest, ','); i >= 0 {
			entry, rest = rest[:i], rest[i+1:]
		} else {
			rest = nil
		}
		eq := bytes.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		if string(entry[:eq]) == name {
			return entry[eq+1:], true
		}
	}
	return nil, false
}

func (r RawKRT) appendValue(dst []byte, name string) ([]byte, bool) {
	v, ok := r.Lookup(name)
	if !ok || len(v) == 0 {
		return dst, false
	}
	return append(dst, v...), true
}

type propertiesKRT map[string]string

func (p propertiesKRT) appendValue(dst []byte, name string) ([]byte, bool) {
	v, ok := p[name]
	if !ok || v == "" {
		return dst, false
	}
	return append(dst, v...), true
}

type krtSource interface {
	appendValue(dst []byte, name string) ([]byte, bool)
}
