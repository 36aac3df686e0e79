package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// SurrealDB implements Database over the surrealdb.go websocket client
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ConnectRetries < 0 {
		cfg.ConnectRetries = 0
	}
	return &SurrealDB{
		config: cfg,
	}
}

// Connect dials the server, signs in and selects the namespace and database.
// Failed attempts are retried with exponential backoff, since the database
// often starts alongside the service.
func (s *SurrealDB) Connect(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= s.config.ConnectRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("database connection failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrConnection, ctx.Err())
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxConnectBackoff)
		}

		db, err := s.dial(ctx)
		if err == nil {
			s.db = db
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (s *SurrealDB) dial(ctx context.Context) (*surrealdb.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()

	db, err := surrealdb.FromEndpointURLString(ctx, s.config.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	})
	if err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}
	return db, nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close(context.Background())
	s.db = nil
	return err
}

// Ping checks the database connection
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns one {status, result} entry per
// statement. A statement that did not succeed fails the whole call.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	if _, ok := ctx.Deadline(); !ok && s.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
	}

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	var failures []statementFailure
	for i, r := range *results {
		if r.Status != "OK" {
			msg := "status " + r.Status
			if r.Error != nil {
				msg = r.Error.Message
			}
			failures = append(failures, statementFailure{index: i, message: msg})
			continue
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}
	if f, ok := rootFailure(failures); ok {
		return nil, fmt.Errorf("%w: statement %d: %s", ErrQuery, f.index, f.message)
	}
	return output, nil
}

// cancelledTxMessage is what SurrealDB reports for every statement of a
// failed transaction except the one that caused the failure.
const cancelledTxMessage = "not executed due to a failed transaction"

type statementFailure struct {
	index   int
	message string
}

// rootFailure picks the statement that actually failed a transaction,
// falling back to the first failure.
func rootFailure(failures []statementFailure) (statementFailure, bool) {
	if len(failures) == 0 {
		return statementFailure{}, false
	}
	for _, f := range failures {
		if !strings.Contains(f.message, cancelledTxMessage) {
			return f, true
		}
	}
	return failures[0], true
}

// QueryOne returns the first row of the first statement, or ErrNotFound
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return firstRow(results)
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

func firstRow(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return results[0], nil
	}
	switch rows := resp["result"].(type) {
	case []interface{}:
		if len(rows) == 0 {
			return nil, ErrNotFound
		}
		return rows[0], nil
	case nil:
		return nil, ErrNotFound
	default:
		// Scalar results such as RETURN 1
		return rows, nil
	}
}
