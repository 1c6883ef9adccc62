package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/sfdash/internal/db/manager"
	"github.com/vvka-141/sfdash/internal/retry"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// HandleSource provides connection handles. *manager.Manager satisfies it.
type HandleSource interface {
	Acquire(ctx context.Context) (*manager.Handle, error)
	InvalidateHandle(h *manager.Handle) bool
}

// Service runs SQL statements with retry on recoverable session failures.
// Safe for concurrent use.
type Service struct {
	handles    HandleSource
	catalog    *Catalog
	classifier sfdash.ErrorClassifier
	retryDelay time.Duration
	budget     int
	logger     sfdash.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog sets the named statements available to Run.
func WithCatalog(c *Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithRetryDelay sets the wait before re-running after a recoverable failure.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithRetryBudget sets the budget used by Query and Run.
func WithRetryBudget(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.budget = n
		}
	}
}

// WithClassifier replaces the recoverable-failure classifier.
func WithClassifier(c sfdash.ErrorClassifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// NewService creates a Service drawing handles from handles.
func NewService(handles HandleSource, logger sfdash.Logger, opts ...Option) *Service {
	s := &Service{
		handles:    handles,
		classifier: retry.NewSessionErrorClassifier(),
		retryDelay: sfdash.DefaultRetryDelay,
		budget:     sfdash.DefaultRetryBudget,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the configured named statements (possibly empty).
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Query runs sql with the configured retry budget (default 1).
func (s *Service) Query(ctx context.Context, sql string) ([]sfdash.Record, error) {
	return s.QueryWithBudget(ctx, sql, s.budget)
}

// Run executes the catalog statement registered under name.
func (s *Service) Run(ctx context.Context, name string) ([]sfdash.Record, error) {
	sql, err := s.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, sql)
}

// QueryWithBudget runs sql, re-running it from handle acquisition up to
// budget times after recoverable failures. Each re-run first discards the
// handle the failed attempt used.
func (s *Service) QueryWithBudget(ctx context.Context, sql string, budget int) ([]sfdash.Record, error) {
	if budget < 0 {
		budget = 0
	}
	queryID := uuid.NewString()
	preview := sfdash.PreviewSQL(sql)
	start := time.Now()

	var (
		records  []sfdash.Record
		used     *manager.Handle
		attempts int
	)

	executor := retry.NewExecutor(acquisitionAware{s.classifier}, retry.NewFixedBackoff(budget, s.retryDelay)).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.logger.Info("[%s] Recoverable session failure, reconnecting (retry %d/%d): %v", queryID, attempt+1, budget, err)
			if used != nil {
				s.handles.InvalidateHandle(used)
			}
		})

	err := executor.Execute(ctx, func(ctx context.Context) error {
		attempts++
		h, err := s.handles.Acquire(ctx)
		if err != nil {
			used = nil
			return err
		}
		used = h
		s.logger.Verbose("[%s] attempt %d on handle %s: %s", queryID, attempts, h.ID(), preview)

		rows, err := h.Query(ctx, sql)
		if err != nil {
			return err
		}
		records = rows
		return nil
	})

	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		// A recoverable failure leaves the handle unusable even when the
		// budget is spent.
		if used != nil && !isAcquisitionError(err) && s.classifier.IsTransient(err) {
			s.handles.InvalidateHandle(used)
		}
		s.logger.Error("[%s] Query failed after %d attempt(s) in %v: %s: %v", queryID, attempts, elapsed, preview, err)
		return nil, s.wrapError(queryID, attempts, err)
	}

	s.logger.Info("[%s] %d row(s) in %v", queryID, len(records), elapsed)
	return records, nil
}

func (s *Service) wrapError(queryID string, attempts int, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("query %s: %w", queryID, err)
	case isAcquisitionError(err):
		return fmt.Errorf("query %s: %w", queryID, err)
	case s.classifier.IsTransient(err):
		return fmt.Errorf("%w (query %s, %w after %d attempt(s)): %w",
			sfdash.ErrQueryFailed, queryID, sfdash.ErrSessionExpired, attempts, err)
	default:
		return fmt.Errorf("%w (query %s): %w", sfdash.ErrQueryFailed, queryID, err)
	}
}

// isAcquisitionError reports failures to obtain a handle. They are returned
// to the caller unchanged instead of being retried.
func isAcquisitionError(err error) bool {
	return errors.Is(err, sfdash.ErrConnectionFailed) ||
		errors.Is(err, sfdash.ErrManagerClosed) ||
		errors.Is(err, sfdash.ErrInvalidConfig) ||
		errors.Is(err, sfdash.ErrUnsupportedAuthMode)
}

// acquisitionAware never retries acquisition failures; query failures are
// delegated to the wrapped classifier.
type acquisitionAware struct {
	inner sfdash.ErrorClassifier
}

func (c acquisitionAware) IsTransient(err error) bool {
	if isAcquisitionError(err) {
		return false
	}
	return c.inner.IsTransient(err)
}
