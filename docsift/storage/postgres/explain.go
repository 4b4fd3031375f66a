package postgres

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is the query surface ExplainAnalyze needs; both *sql.DB and *sql.Tx
// satisfy it.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ExplainAnalyze runs a query under EXPLAIN ANALYZE and returns the plan
// text. The query is executed for real; callers should only pass reads.
func ExplainAnalyze(ctx context.Context, db DBTX, sqlStr string, args ...any) (string, error) {
	rows, err := db.QueryContext(ctx, "EXPLAIN (ANALYZE, BUFFERS, FORMAT TEXT) "+sqlStr, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), rows.Err()
}
