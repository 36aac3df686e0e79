// Package database is the SurrealDB access layer for the Nemesis API.
//
// Database abstracts the connection so repositories can be tested with
// fakes; SurrealDB is the only production implementation.
//
//	db := database.NewSurrealDB(cfg)
//	if err := db.Connect(ctx); err != nil { ... }
//	defer db.Close()
//
// Multi-statement writes that must be all-or-nothing, such as a matching
// cycle's ledger append, go through AtomicBatch. Schema files under
// migrations/ are applied with LoadMigrations and Migrate.
//
// Errors are sentinels checked with errors.Is: ErrNotFound, ErrConnection
// and ErrQuery.
package database
