package docsift

import (
	"regexp"
	"strings"
)

// negationMarker, appended to a filter key, negates whatever the remaining
// key resolves to.
const negationMarker = "!"

// nestedKeyRe limits nested filter keys to dotted identifier paths, since
// the resolved path is interpolated into the document-path expression.
var nestedKeyRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)

// resolveField maps a raw filter key to a canonical field name (or nested
// path) and the effective query kind to apply. ok is false when the key
// addresses no declared field; such keys contribute no predicate.
func resolveField(s Schema, key string) (name string, q FieldQuery, ok bool) {
	if spec, found := s.Get(key); found {
		return key, spec.Query, true
	}

	if stripped, negated := strings.CutSuffix(key, negationMarker); negated {
		if spec, found := s.Get(stripped); found {
			return stripped, Not{Inner: spec.Query}, true
		}
		if name, q, found := scanFields(s, stripped); found {
			return name, Not{Inner: q}, true
		}
		return "", nil, false
	}

	return scanFields(s, key)
}

// scanFields handles keys that are not declared field names: the min/max
// virtual keys of Range fields and dotted paths under Nested fields. Linear
// scan; schemas hold tens of fields at most.
func scanFields(s Schema, key string) (string, FieldQuery, bool) {
	for name, spec := range s.Fields {
		switch q := spec.Query.(type) {
		case Range:
			if key == q.Min {
				return name, Min{}, true
			}
			if key == q.Max {
				return name, Max{}, true
			}
		case Nested:
			head, _, _ := strings.Cut(key, ".")
			if head == name && nestedKeyRe.MatchString(key) {
				return key, Nested{}, true
			}
		}
	}
	return "", nil, false
}
