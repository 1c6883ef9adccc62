package sfdash

import "context"

// Connector establishes a live warehouse connection for one credential variant.
// Different implementations handle the authentication modes (interactive SSO,
// delegated OAuth token).
type Connector interface {
	// Connect opens the connection and completes authentication. For the
	// interactive variant this blocks until the browser login finishes.
	// The returned Conn must be closed by the caller when done.
	Connect(ctx context.Context) (Conn, error)
}
