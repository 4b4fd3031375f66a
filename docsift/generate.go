package docsift

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docsift/docsift/docsift/storage/sqlbuilder"
)

// jsonpathEscaper escapes string atoms before they are interpolated into the
// document-path expression. Numeric and boolean values come from a
// successful parse and need no escaping.
var jsonpathEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeAtom(s string) string {
	return jsonpathEscaper.Replace(s)
}

// generateField translates one resolved field's raw value into predicate
// fragments. Document-path fragments are appended to jp; flat SQL fragments
// go to flats with their bound values allocated through b.
func generateField(name string, q FieldQuery, raw string, jp *[]string, flats *[]string, b *sqlbuilder.Builder) error {
	switch q := q.(type) {
	case Range:
		// A Range field addressed by its canonical name behaves like a
		// numeric tag; the min/max keys resolve to Min/Max instead.
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			if x == "exists" {
				return fmt.Sprintf("(exists($.%s))", name), nil
			}
			if x == "notexists" {
				return fmt.Sprintf("(!exists($.%s))", name), nil
			}
			if n, ok := q.Aliases[strings.ToUpper(x)]; ok {
				return fmt.Sprintf("($.%s == %d)", name, n), nil
			}
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return "", NumberError(name, x, err)
			}
			return fmt.Sprintf("($.%s == %d)", name, n), nil
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case Min:
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return "", NumberError(name, x, err)
			}
			return fmt.Sprintf("($.%s > %d)", name, n), nil
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case Max:
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return "", NumberError(name, x, err)
			}
			return fmt.Sprintf("($.%s < %d)", name, n), nil
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case Bool:
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			switch x {
			case "exists":
				return fmt.Sprintf("(exists($.%s))", name), nil
			case "notexists":
				return fmt.Sprintf("(!exists($.%s))", name), nil
			case "true", "false":
				return fmt.Sprintf("($.%s == %s)", name, x), nil
			default:
				return "", BoolError(name, x)
			}
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case AmbiguousTag:
		frags, err := combineAtoms(raw, ambiguousAtom(name))
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case NumericTag:
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			if x == "exists" {
				return fmt.Sprintf("(exists($.%s))", name), nil
			}
			if x == "notexists" {
				return fmt.Sprintf("(!exists($.%s))", name), nil
			}
			if n, ok := q.Aliases[strings.ToUpper(x)]; ok {
				return dualEq(name, n), nil
			}
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return "", NumberError(name, x, err)
			}
			return dualEq(name, n), nil
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case StringTag:
		frags, err := combineAtoms(raw, func(x string) (string, error) {
			return fmt.Sprintf("($.%s == \"%s\")", name, escapeAtom(x)), nil
		})
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case Nested:
		// name is the full dotted path preserved by the resolver.
		frags, err := combineAtoms(raw, ambiguousAtom(name))
		if err != nil {
			return err
		}
		*jp = append(*jp, frags)

	case Fulltext:
		// The whole raw value is one search phrase; free text cannot be
		// embedded in query text, so it is bound.
		target := q.Target
		if target == "" {
			target = name
		}
		*flats = append(*flats, fmt.Sprintf(
			"to_tsvector('%s',%s->>'%s') @@ %s('%s',%s)",
			q.Lang, docColumn, target, q.Syntax, q.Lang, b.Arg(raw),
		))

	case Not:
		var innerJP, innerFlats []string
		if err := generateField(name, q.Inner, raw, &innerJP, &innerFlats, b.Fork()); err != nil {
			return err
		}
		// Only document-path fragments survive negation; flat fragments and
		// their bindings are dropped, so a negated Fulltext matches nothing
		// at the relational level.
		for _, f := range innerJP {
			*jp = append(*jp, "!("+f+")")
		}

	default:
		return SchemaError(fmt.Sprintf("unknown query kind %T for field %q", q, name))
	}

	return nil
}

// ambiguousAtom handles fields stored sometimes as number, sometimes as
// string, sometimes absent: at most one typed alternative, always joined
// with a string-equality fragment against the raw atom.
func ambiguousAtom(path string) func(string) (string, error) {
	return func(x string) (string, error) {
		var alts []string
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			alts = append(alts, fmt.Sprintf("($.%s == %d)", path, n))
		} else if x == "true" || x == "false" {
			alts = append(alts, fmt.Sprintf("($.%s == %s)", path, x))
		} else if x == "exists" {
			alts = append(alts, fmt.Sprintf("(exists($.%s))", path))
		} else if x == "notexists" {
			alts = append(alts, fmt.Sprintf("(!exists($.%s))", path))
		}

		alts = append(alts, fmt.Sprintf("($.%s == \"%s\")", path, escapeAtom(x)))

		return "(" + strings.Join(alts, " || ") + ")", nil
	}
}

// dualEq matches an integer-coded value stored either as a number or as its
// string form.
func dualEq(path string, n int64) string {
	return fmt.Sprintf("(($.%s == %d) || ($.%s == \"%d\"))", path, n, path, n)
}
