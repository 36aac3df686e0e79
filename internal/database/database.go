package database

import (
	"context"
	"errors"
	"time"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure, including a cancelled transaction.
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns one {status, result} entry per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns the first row of the first statement
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	TLS       bool
	User      string
	Password  string
	Namespace string
	Database  string

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
	// ConnectRetries is how many extra attempts Connect makes before giving up.
	ConnectRetries int
	// QueryTimeout applies to queries whose context has no deadline. Zero disables it.
	QueryTimeout time.Duration
}

const (
	defaultConnectTimeout = 10 * time.Second
	maxConnectBackoff     = 5 * time.Second
)

// Endpoint returns the websocket URL of the server
func (c Config) Endpoint() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	return scheme + "://" + c.Host + ":" + c.Port
}
