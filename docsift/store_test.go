package docsift

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
)

// checkArgsBound fails when the query text and the argument list disagree:
// every argument must be referenced by its placeholder, and no placeholder
// may reach past the arguments. The driver rejects either mismatch before
// the statement reaches the server.
func checkArgsBound(t *testing.T, query string, args []any) {
	t.Helper()
	for i := range args {
		if !strings.Contains(query, "$"+strconv.Itoa(i+1)) {
			t.Errorf("argument %d is never referenced in %q", i+1, query)
		}
	}
	if strings.Contains(query, "$"+strconv.Itoa(len(args)+1)) {
		t.Errorf("query %q references a placeholder past the %d bound arguments", query, len(args))
	}
}

func TestSearchQueryText(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{"genre": "comedy"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT object FROM documents WHERE object @@ CAST($1 AS JSONPATH)" +
		" ORDER BY (object #> ($2)::text[]) DESC, doc_id NULLS LAST LIMIT $3 OFFSET $4"
	if query != want {
		t.Errorf("got query %q", query)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
	if args[0] != `((($.genre == "comedy")))` {
		t.Errorf("got document path arg %v", args[0])
	}
	if args[1] != "{date}" || args[2] != int64(100) || args[3] != int64(0) {
		t.Errorf("got sort/limit/offset args %v", args[1:])
	}
	checkArgsBound(t, query, args)
}

func TestSearchQueryRawPathOverride(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{}, `($.season == 3)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Forced document-path evaluation even though no field resolved.
	if args[0] != `($.season == 3)` {
		t.Errorf("got document path arg %v", args[0])
	}
	want := "SELECT object FROM documents WHERE object @@ CAST($1 AS JSONPATH)" +
		" ORDER BY (object #> ($2)::text[]) DESC, doc_id NULLS LAST LIMIT $3 OFFSET $4"
	if query != want {
		t.Errorf("got query %q", query)
	}
	checkArgsBound(t, query, args)
}

func TestSearchQueryEmptyFilter(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT object FROM documents " +
		" ORDER BY (object #> ($1)::text[]) DESC, doc_id NULLS LAST LIMIT $2 OFFSET $3"
	if query != want {
		t.Errorf("got query %q", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
	if args[0] != "{date}" || args[1] != int64(100) || args[2] != int64(0) {
		t.Errorf("got sort/limit/offset args %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestSearchQueryUnrecognizedKeysOnly(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{"nope": "1"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(query, "WHERE") {
		t.Errorf("expected no filter clause, got %q", query)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestSearchQueryFlatOnly(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{"body": "hello", KeyLimit: "5"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No document-path fragment, so no $1 for it: the order slots and the
	// flat fragment all shift down by one.
	want := "SELECT object FROM documents WHERE to_tsvector('english',object->>'body') @@ plainto_tsquery('english',$4)" +
		" ORDER BY (object #> ($1)::text[]) DESC, doc_id NULLS LAST LIMIT $2 OFFSET $3"
	if query != want {
		t.Errorf("got query %q", query)
	}
	if len(args) != 4 || args[3] != "hello" {
		t.Errorf("expected the phrase as the fourth arg, got %v", args)
	}
	if args[1] != int64(5) {
		t.Errorf("expected limit 5, got %v", args[1])
	}
	checkArgsBound(t, query, args)
}

func TestSearchQueryCombinedFilter(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.searchQuery(map[string]string{"body": "hello", "genre": "comedy"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT object FROM documents WHERE object @@ CAST($1 AS JSONPATH)" +
		" AND to_tsvector('english',object->>'body') @@ plainto_tsquery('english',$5)" +
		" ORDER BY (object #> ($2)::text[]) DESC, doc_id NULLS LAST LIMIT $3 OFFSET $4"
	if query != want {
		t.Errorf("got query %q", query)
	}
	if len(args) != 5 || args[4] != "hello" {
		t.Errorf("expected the phrase as the fifth arg, got %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestCountQueryText(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.countQuery(map[string]string{"genre": "comedy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "SELECT COUNT(*) FROM documents WHERE object @@ CAST($1 AS JSONPATH)" {
		t.Errorf("got query %q", query)
	}
	if len(args) != 1 || args[0] != `((($.genre == "comedy")))` {
		t.Errorf("got args %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestCountQueryEmptyFilter(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.countQuery(map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "SELECT COUNT(*) FROM documents " {
		t.Errorf("got query %q", query)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestCountQueryFlatOnly(t *testing.T) {
	st := NewStore(nil, testSchema())

	query, args, err := st.countQuery(map[string]string{"body": "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "SELECT COUNT(*) FROM documents WHERE to_tsvector('english',object->>'body') @@ plainto_tsquery('english',$1)"
	if query != want {
		t.Errorf("got query %q", query)
	}
	if len(args) != 1 || args[0] != "hi" {
		t.Errorf("got args %v", args)
	}
	checkArgsBound(t, query, args)
}

func TestDecodeDocKeepsNumbers(t *testing.T) {
	doc, err := decodeDoc([]byte(`{"created_at": 1700000000, "name": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["created_at"] != json.Number("1700000000") {
		t.Errorf("expected json.Number, got %T", doc["created_at"])
	}
}
