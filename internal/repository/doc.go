// Package repository implements the data access layer for the Nemesis API.
//
// Each repository wraps a database.Database and speaks SurrealQL:
//
//   - UserRepository: account reads for enrichment and activity checks
//   - QuestionRepository: the question catalog
//   - AnswerRepository: answer writes and the snapshot reads matching runs on
//   - LedgerRepository: the append-only match ledger and its cycles
//
// # Query Patterns
//
//   - Parameterized queries with $variable syntax for security
//   - type::record() and type::thing() for safe ID handling
//   - type::string(id) INSIDE $ids for batched reads
//   - database.AtomicBatch for multi-statement writes
//
// Lookups of a single missing row return (nil, nil); services decide
// whether that is an error.
//
// # Example Usage
//
//	ledger := NewLedgerRepository(db)
//	views, err := ledger.MatchesFor(ctx, "user:abc123", 20)
//	if err != nil {
//	    return err
//	}
package repository
