package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// Handle is a live warehouse session bound to exactly one credential.
type Handle struct {
	id         string
	credential sfdash.Credential
	conn       sfdash.Conn
	createdAt  time.Time
	state      atomic.Int32
}

func newHandle(credential sfdash.Credential, conn sfdash.Conn) *Handle {
	h := &Handle{
		id:         uuid.NewString(),
		credential: credential,
		conn:       conn,
		createdAt:  time.Now(),
	}
	h.state.Store(int32(sfdash.HandleReady))
	return h
}

// ID returns the handle's unique identifier, used in log lines.
func (h *Handle) ID() string { return h.id }

// Credential returns the credential the handle was built from.
func (h *Handle) Credential() sfdash.Credential { return h.credential }

// Mode returns the credential variant.
func (h *Handle) Mode() sfdash.AuthMode { return h.credential.Mode() }

// CreatedAt returns when the handle finished construction.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// State returns the current lifecycle state.
func (h *Handle) State() sfdash.HandleState {
	return sfdash.HandleState(h.state.Load())
}

// Query executes sql on the handle's session. Queries on a handle that is no
// longer READY, or that fail because the handle was invalidated while they
// ran, return an error matching sfdash.ErrStaleHandle.
func (h *Handle) Query(ctx context.Context, sql string) ([]sfdash.Record, error) {
	if s := h.State(); s != sfdash.HandleReady {
		return nil, fmt.Errorf("handle %s is %s: %w", h.id, s, sfdash.ErrStaleHandle)
	}

	records, err := h.conn.Query(ctx, sql)
	if err != nil {
		if s := h.State(); s != sfdash.HandleReady {
			return nil, fmt.Errorf("%w (handle %s is %s): %w", sfdash.ErrStaleHandle, h.id, s, err)
		}
		return nil, err
	}
	return records, nil
}

// markStale moves a READY handle to STALE. Returns false if it was not READY.
func (h *Handle) markStale() bool {
	return h.state.CompareAndSwap(int32(sfdash.HandleReady), int32(sfdash.HandleStale))
}

func (h *Handle) markClosed() {
	h.state.Store(int32(sfdash.HandleClosed))
}
