package database

// Atomic writes
//
// SurrealDB has no client-held transactions over this driver, so atomic
// writes are batch-based: statements accumulate and run together inside
// BEGIN TRANSACTION / COMMIT TRANSACTION when executed.
//
//	batch := NewAtomicBatch()
//	batch.Add(query1, vars1)
//	batch.Add(query2, vars2)
//	err := batch.Execute(ctx, db) // all or nothing
//
// Variables are namespaced per statement ($email -> $v1_email), so two
// statements may both use $email without clashing.

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TxBuilder builds a transaction query with per-statement variable namespacing.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
}

// NewTxBuilder creates a new transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{vars: make(map[string]interface{})}
}

// Add appends a statement, renaming its variables to $v<n>_<name>
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) {
	n := len(tb.statements) + 1

	// Longest names first so $user never rewrites part of $user_id.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		renamed := fmt.Sprintf("v%d_%s", n, name)
		pairs = append(pairs, "$"+name, "$"+renamed)
		tb.vars[renamed] = vars[name]
	}
	if len(pairs) > 0 {
		query = strings.NewReplacer(pairs...).Replace(query)
	}

	tb.statements = append(tb.statements, query)
}

// Build returns the complete transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(strings.TrimSpace(stmt))
		if !strings.HasSuffix(strings.TrimSpace(stmt), ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction executes a transaction built with TxBuilder
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}
	return db.Query(ctx, query, vars)
}

// AtomicBatch collects statements that must succeed or fail together
type AtomicBatch struct {
	queries []batchQuery
}

type batchQuery struct {
	query string
	vars  map[string]interface{}
}

// NewAtomicBatch creates a new atomic batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{}
}

// Add adds a query to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.queries = append(ab.queries, batchQuery{query: query, vars: vars})
	return ab
}

// Execute runs all queries as a single transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	if len(ab.queries) == 0 {
		return nil
	}

	tb := NewTxBuilder()
	for _, q := range ab.queries {
		tb.Add(q.query, q.vars)
	}

	_, err := ExecuteTransaction(ctx, db, tb)
	return err
}

// Len returns the number of queries in the batch
func (ab *AtomicBatch) Len() int {
	return len(ab.queries)
}
