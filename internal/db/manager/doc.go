// Package manager owns the process-wide Snowflake connection handle.
//
// The Manager builds a handle lazily on the first Acquire, re-evaluates the
// credential signal (token file presence and content) on every Acquire, and
// replaces the handle when the signal changes. At most one construction is
// in flight at a time; concurrent callers wait for and share its result.
//
// # Handle lifecycle
//
//	UNINITIALIZED --construct ok--> READY
//	UNINITIALIZED --construct fail--> UNINITIALIZED
//	READY --recoverable failure (Invalidate)--> STALE
//	READY --credential change--> STALE
//	any --Close--> CLOSED
//
// A STALE handle is never returned again; queries on it fail with
// sfdash.ErrStaleHandle.
//
// # Example Usage
//
//	resolver, _ := db.NewCredentialResolver(cfg, logger)
//	mgr := manager.New(resolver, func(c sfdash.Credential) (sfdash.Connector, error) {
//	    return db.NewConnector(cfg, c, logger)
//	}, logger)
//	defer mgr.Close()
//
//	h, err := mgr.Acquire(ctx)
//	records, err := h.Query(ctx, "SELECT 1")
//
// # Thread Safety
//
// Manager and Handle are safe for concurrent use.
package manager
