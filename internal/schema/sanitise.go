package schema

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonIdentifier = regexp.MustCompile(`[^0-9a-z_]`)
)

// SanitiseString normalizes a display value into identifier form: lowercase,
// whitespace runs collapsed to single underscores, every character outside
// [0-9a-z_] removed. It is pure and idempotent.
func SanitiseString(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = nonIdentifier.ReplaceAllString(s, "")
	return s
}

// Mapping records, in first-seen order, how each distinct original value was
// sanitised. Go maps do not preserve insertion order, so the key order is
// kept alongside the lookup table.
type Mapping struct {
	keys  []string
	clean map[string]string
}

// Get returns the sanitised form of an original value.
func (m *Mapping) Get(original string) (string, bool) {
	c, ok := m.clean[original]
	return c, ok
}

// Keys returns the distinct original values in first-seen order.
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the sanitised forms in first-seen key order.
func (m *Mapping) Values() []string {
	out := make([]string, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.clean[k]
	}
	return out
}

// Len returns the number of distinct original values.
func (m *Mapping) Len() int { return len(m.keys) }

// SanitiseField sanitises every value in a field at once and returns the
// sanitised values plus the original-to-clean mapping.
//
// Distinct originals that collapse to the same sanitised form are
// disambiguated with a numeric suffix: the first member of a colliding group
// keeps the bare form, later members get __1, __2 and so on in first-seen
// order. Sanitised outputs are therefore pairwise distinct whenever the
// inputs are.
func SanitiseField(values []string) ([]string, *Mapping) {
	m := &Mapping{clean: make(map[string]string)}
	counts := make(map[string]int)

	for _, v := range values {
		if _, seen := m.clean[v]; seen {
			continue
		}
		c := SanitiseString(v)
		n := counts[c]
		counts[c]++
		if n > 0 {
			c = fmt.Sprintf("%s__%d", c, n)
		}
		m.keys = append(m.keys, v)
		m.clean[v] = c
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = m.clean[v]
	}
	return out, m
}
