package docsift

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/docsift/docsift/docsift/storage/postgres"
)

// Bind-parameter layout: a search binds the document path, sort path, limit
// and offset ahead of the flat-fragment values, so flats number from 5; a
// count binds the document path ahead of them. The document path is bound
// only when the compiled filter references it, and the shapes without it
// shift every placeholder down by one. Every bound argument must be
// referenced by the query text or the driver rejects the statement.
const (
	searchBindStart = 5
	countBindStart  = 2
)

// Store executes compiled filter queries against one schema's table. The
// compilation itself is pure; Store owns the single round trip per call.
type Store struct {
	db     *sql.DB
	schema Schema
}

func NewStore(db *sql.DB, schema Schema) *Store {
	return &Store{db: db, schema: schema}
}

// Open connects to the database and returns a store for the schema.
func Open(ctx context.Context, dsn string, schema Schema) (*Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	db, err := postgres.New(dsn).Connect(ctx)
	if err != nil {
		return nil, Wrap(ErrIO, "connect to database", err)
	}
	return NewStore(db, schema), nil
}

func (st *Store) Close() error {
	if err := st.db.Close(); err != nil {
		return Wrap(ErrIO, "close database", err)
	}
	return nil
}

// Schema returns the store's schema.
func (st *Store) Schema() Schema {
	return st.schema
}

// Search compiles the filter map and returns matching documents, post
// processed by the schema's converters. A non-empty rawPath overrides the
// composed document-path expression; flat fragments still combine with it.
func (st *Store) Search(ctx context.Context, fields map[string]string, rawPath string) ([]map[string]any, error) {
	query, args, err := st.searchQuery(fields, rawPath)
	if err != nil {
		return nil, err
	}

	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Wrap(ErrSQL, "execute search", err)
	}
	defer rows.Close()

	out, err := st.collectDocs(rows)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of matching documents, unaffected by
// limit/offset.
func (st *Store) Count(ctx context.Context, fields map[string]string) (int64, error) {
	query, args, err := st.countQuery(fields)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := st.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, Wrap(ErrSQL, "execute count", err)
	}
	return n, nil
}

// GetByIDs returns the documents whose primary keys are in ids, post
// processed by the schema's converters. Order is not guaranteed and
// duplicate keys collapse.
func (st *Store) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]map[string]any, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	query := "SELECT " + docColumn + " FROM " + st.schema.Table +
		" WHERE " + idColumn + " = ANY($1::uuid[])"

	rows, err := st.db.QueryContext(ctx, query, strs)
	if err != nil {
		return nil, Wrap(ErrSQL, "execute get by ids", err)
	}
	defer rows.Close()

	return st.collectDocs(rows)
}

// Explain runs the search the filter map compiles to under EXPLAIN ANALYZE
// and returns the plan text.
func (st *Store) Explain(ctx context.Context, fields map[string]string) (string, error) {
	query, args, err := st.searchQuery(fields, "")
	if err != nil {
		return "", err
	}
	plan, err := postgres.ExplainAnalyze(ctx, st.db, query, args...)
	if err != nil {
		return "", Wrap(ErrSQL, "explain search", err)
	}
	return plan, nil
}

func (st *Store) searchQuery(fields map[string]string, rawPath string) (string, []any, error) {
	cl, err := BuildWhere(st.schema, fields, searchBindStart, rawPath != "")
	if err != nil {
		return "", nil, err
	}

	docPath := cl.DocPath
	if rawPath != "" {
		docPath = rawPath
	}

	query := "SELECT " + docColumn + " FROM " + st.schema.Table + " " + cl.Filter + cl.Order
	args := make([]any, 0, 4+len(cl.FlatBindings))
	if cl.HasDocPath {
		args = append(args, docPath)
	}
	args = append(args, cl.SortBy, cl.Limit, cl.Offset)
	args = append(args, cl.FlatBindings...)
	return query, args, nil
}

func (st *Store) countQuery(fields map[string]string) (string, []any, error) {
	cl, err := BuildWhere(st.schema, fields, countBindStart, false)
	if err != nil {
		return "", nil, err
	}

	query := "SELECT COUNT(*) FROM " + st.schema.Table + " " + cl.Filter
	args := make([]any, 0, 1+len(cl.FlatBindings))
	if cl.HasDocPath {
		args = append(args, cl.DocPath)
	}
	args = append(args, cl.FlatBindings...)
	return query, args, nil
}

func (st *Store) collectDocs(rows *sql.Rows) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, Wrap(ErrSQL, "scan row", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		applyConverters(st.schema, doc)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap(ErrSQL, "iterate rows", err)
	}
	return out, nil
}

// decodeDoc keeps numbers as json.Number so epoch values survive conversion
// without float rounding.
func decodeDoc(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, Wrap(ErrSQL, "decode document", err)
	}
	return doc, nil
}
