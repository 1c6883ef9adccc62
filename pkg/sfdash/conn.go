package sfdash

import "context"

// Conn abstracts the live warehouse session needed by the connection manager
// and the query service. It decouples callers from database/sql and driver
// specific types.
//
// Thread-Safety: implementations backed by a connection pool are safe for
// concurrent use.
type Conn interface {
	// Query executes sql and returns every row as a Record, in the order the
	// warehouse returned them. An empty result is an empty, non-nil slice.
	Query(ctx context.Context, sql string) ([]Record, error)

	// Ping verifies the session is alive.
	Ping(ctx context.Context) error

	// Close releases the session. After Close the Conn must not be used.
	Close() error
}
