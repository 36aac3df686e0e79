// Package testdb provides SurrealDB environments for integration tests.
//
// Each call to New connects to the server named by TEST_DB_HOST, creates a
// fresh namespace and applies every file in migrations/ in name order.
// Without TEST_DB_HOST the calling test is skipped, so `go test ./...`
// stays green on machines with no database.
//
//	func TestLedger(t *testing.T) {
//	    tdb := testdb.New(t)
//
//	    repo := repository.NewLedgerRepository(tdb.DB)
//	    ...
//	}
//
// The namespace is removed by t.Cleanup when the test ends.
// The migrations directory is found relative to the test's working
// directory, or under NEMESIS_ROOT when set.
package testdb
