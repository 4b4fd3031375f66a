package docsift

import "strings"

// combineAtoms splits a raw filter value on the and_/or_ separators and folds
// each atom through translate, joining the translated fragments with && / ||
// in encounter order. There is no precedence and no grouping; downstream
// consumers depend on the left-to-right order.
//
// The separators are exact tokens, not substrings: the value is cut after
// every underscore, and only a piece that is exactly "and_" or "or_" ends the
// pending atom. A value like "my_tag" therefore stays one atom, while
// "16_and_18" is two.
func combineAtoms(raw string, translate func(string) (string, error)) (string, error) {
	var parts []string
	var pending strings.Builder

	for _, tok := range strings.SplitAfter(raw, "_") {
		var op string
		switch tok {
		case "and_":
			op = "&&"
		case "or_":
			op = "||"
		default:
			pending.WriteString(tok)
			continue
		}

		// The atom accumulated so far still carries the underscore that
		// glued it to the separator.
		atom := strings.TrimSuffix(pending.String(), "_")
		frag, err := translate(atom)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag, op)
		pending.Reset()
	}

	if pending.Len() > 0 {
		frag, err := translate(pending.String())
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}

	return "(" + strings.Join(parts, " ") + ")", nil
}
