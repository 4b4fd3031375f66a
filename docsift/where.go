package docsift

import (
	"sort"
	"strconv"
	"strings"

	"github.com/docsift/docsift/docsift/storage/sqlbuilder"
)

// Clauses is the compiled output of BuildWhere.
type Clauses struct {
	// Filter is the SQL WHERE clause, empty when no field produced a
	// predicate and the document-path comparison was not forced.
	Filter string
	// Order is the ORDER BY / LIMIT / OFFSET clause. Sort path, limit and
	// offset follow the document-path parameter when one is bound and start
	// at $1 otherwise.
	Order string
	// HasDocPath reports whether the clauses reference the document-path
	// parameter. Callers bind DocPath only when it does; the shapes without
	// it shift every placeholder down by one.
	HasDocPath bool
	// DocPath is the composed document-path expression, bound as $1 whenever
	// HasDocPath is set.
	DocPath string
	// SortBy is the text[] path literal to order by.
	SortBy string
	Limit  int64
	Offset int64
	// FlatBindings are the values for flat SQL fragments, in emission order.
	FlatBindings []any
}

// BuildWhere compiles a filter map against the schema. startIndex is the
// bind-parameter number given to the first flat fragment when a
// document-path parameter is bound; without one every placeholder shifts
// down by one. forceDocPath keeps the document-path comparison in the clause
// even when no field produced a document-path fragment (used when the caller
// supplies a pre-built expression).
//
// BuildWhere is a pure function of its arguments: it touches no shared state
// and identical inputs yield identical output.
func BuildWhere(s Schema, fields map[string]string, startIndex int, forceDocPath bool) (Clauses, error) {
	// Key order fixes fragment order; ranging over the map directly would
	// make identical inputs compile to different text.
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	jpFrags, flatFrags, bindings, err := compileFragments(s, fields, keys, startIndex)
	if err != nil {
		return Clauses{}, err
	}

	hasDocPath := len(jpFrags) > 0 || forceDocPath
	if !hasDocPath {
		// No document-path parameter, so the slot it would have taken must
		// not appear in the text. Recompile so the flat fragments and their
		// binding slots agree with the shifted numbering.
		jpFrags, flatFrags, bindings, err = compileFragments(s, fields, keys, startIndex-1)
		if err != nil {
			return Clauses{}, err
		}
	}

	cl := Clauses{
		HasDocPath:   hasDocPath,
		DocPath:      "(" + strings.Join(jpFrags, " && ") + ")",
		FlatBindings: bindings,
	}

	switch {
	case hasDocPath && len(flatFrags) == 0:
		cl.Filter = "WHERE " + docColumn + " @@ CAST($1 AS JSONPATH)"
	case hasDocPath:
		cl.Filter = "WHERE " + docColumn + " @@ CAST($1 AS JSONPATH) AND " + strings.Join(flatFrags, " AND ")
	case len(flatFrags) > 0:
		cl.Filter = "WHERE " + strings.Join(flatFrags, " AND ")
	}

	// Absent sortorder means DESC; a present but malformed one means ASC.
	dir := "DESC"
	if raw, present := fields[KeySortOrder]; present {
		dir = "ASC"
		if up := strings.ToUpper(raw); up == "ASC" || up == "DESC" {
			dir = up
		}
	}
	base := 2
	if !hasDocPath {
		base = 1
	}
	cl.Order = " ORDER BY (" + docColumn + " #> ($" + strconv.Itoa(base) + ")::text[]) " + dir +
		", " + idColumn + " NULLS LAST LIMIT $" + strconv.Itoa(base+1) +
		" OFFSET $" + strconv.Itoa(base+2)

	cl.SortBy = s.DefaultSortBy
	if v, present := fields[KeySortBy]; present {
		cl.SortBy = v
	}

	cl.Limit = DefaultLimit
	if v, present := fields[KeyLimit]; present {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Clauses{}, NumberError(KeyLimit, v, err)
		}
		cl.Limit = n
	}

	cl.Offset = DefaultOffset
	if v, present := fields[KeyOffset]; present {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Clauses{}, NumberError(KeyOffset, v, err)
		}
		cl.Offset = n
	}

	return cl, nil
}

// compileFragments runs the per-field generators with flat placeholders
// numbered from start. keys must already be sorted.
func compileFragments(s Schema, fields map[string]string, keys []string, start int) ([]string, []string, []any, error) {
	var jpFrags, flatFrags []string
	b := sqlbuilder.NewAt(sqlbuilder.PlaceholderDollar, start)

	for _, key := range keys {
		name, q, ok := resolveField(s, key)
		if !ok {
			// Reserved pagination/sort keys and unknown parameters.
			continue
		}
		if err := generateField(name, q, fields[key], &jpFrags, &flatFrags, b); err != nil {
			return nil, nil, nil, err
		}
	}
	return jpFrags, flatFrags, b.Args(), nil
}
