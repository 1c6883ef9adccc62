package sfdash

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	records, err := svc.Query(ctx, "SELECT 1")
//	if errors.Is(err, sfdash.ErrConnectionFailed) {
//	    // Handle unreachable warehouse or rejected credential
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates a connection handle could not be constructed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQueryFailed indicates statement execution failed.
	ErrQueryFailed = errors.New("query failed")

	// ErrSessionExpired marks a recoverable session failure that was still
	// failing after the retry budget was spent.
	ErrSessionExpired = errors.New("session expired")

	// ErrStaleHandle is returned when a query is attempted on a handle that
	// has been invalidated. Callers treat it as recoverable.
	ErrStaleHandle = errors.New("connection handle is stale")

	// ErrManagerClosed indicates the connection manager was shut down.
	ErrManagerClosed = errors.New("connection manager closed")

	// ErrUnsupportedAuthMode indicates the credential variant is not supported.
	ErrUnsupportedAuthMode = errors.New("unsupported authentication mode")

	// ErrQueryNotFound indicates a named query is not in the catalog.
	ErrQueryNotFound = errors.New("query not found")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMode):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrQueryNotFound):
		return ExitQueryNotFound
	case errors.Is(err, ErrQueryFailed):
		return ExitQueryFailed
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError matches the error strings cobra produces for bad invocations.
func isUsageError(msg string) bool {
	usagePrefixes := []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"requires at least",
		"required flag",
		"invalid argument",
	}
	for _, p := range usagePrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}
