package sfdash

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to the warehouse
	ExitQueryFailed     = 13 // SQL execution failed
	ExitQueryNotFound   = 14 // Named query not in the catalog
)

const (
	// DefaultTokenPath is where the container platform mounts the OAuth token.
	// Its presence selects delegated-token mode.
	DefaultTokenPath = "/snowflake/session/token"

	// DefaultRetryBudget is how many times a query is re-run after a
	// recoverable session failure.
	DefaultRetryBudget = 1

	// DefaultRetryDelay is the wait before re-running a query after a
	// recoverable failure. The handle is rebuilt first, so no delay is needed.
	DefaultRetryDelay = 0 * time.Second

	// DefaultConnectRetryAttempts is how many times establishing a
	// delegated-token session is retried after a transient network error.
	// Interactive logins are never retried.
	DefaultConnectRetryAttempts = 2

	// DefaultConnectRetryInitialDelay is the first backoff delay between connect attempts.
	DefaultConnectRetryInitialDelay = 250 * time.Millisecond

	// DefaultConnectRetryMaxDelay caps the connect backoff.
	DefaultConnectRetryMaxDelay = 2 * time.Second

	// DefaultMaxOpenConns bounds the per-handle pool in delegated-token mode.
	// Interactive handles always use a single connection so the browser login
	// happens once.
	DefaultMaxOpenConns = 4

	// DefaultMaxIdleConns keeps a couple of sessions warm between requests.
	DefaultMaxIdleConns = 2

	// DefaultConnMaxIdleTime closes pooled sessions that sat idle this long.
	DefaultConnMaxIdleTime = 30 * time.Minute

	// DefaultApplication is reported to Snowflake as the client application.
	DefaultApplication = "sfdash"

	// DefaultListenAddr is the HTTP listen address for `sfdash serve`.
	DefaultListenAddr = ":8080"

	// MaxSQLPreviewLength is the maximum number of characters of a statement
	// shown in log lines and error messages.
	MaxSQLPreviewLength = 200
)

// Placeholders substituted when the corresponding setting is absent.
// Each substitution is reported to the operator as a configuration warning.
const (
	PlaceholderAccount   = "your_account"
	PlaceholderUser      = "your_user"
	PlaceholderWarehouse = "COMPUTE_WH"
	PlaceholderDatabase  = "SNOWFLAKE_SAMPLE_DATA"
	PlaceholderSchema    = "TPCH_SF1"
)

// PreviewSQL shortens sql to MaxSQLPreviewLength characters for display.
func PreviewSQL(sql string) string {
	if len(sql) <= MaxSQLPreviewLength {
		return sql
	}
	return sql[:MaxSQLPreviewLength] + "..."
}
