// Package retry provides retry logic for warehouse operations: a bounded
// re-run of queries that failed because the session or token expired, and
// exponential backoff for transient network failures while connecting.
//
// # Example Usage
//
//	classifier := retry.NewSessionErrorClassifier()
//	strategy := retry.NewFixedBackoff(1, 0)
//	executor := retry.NewExecutor(classifier, strategy).
//	    WithOnRetry(func(attempt int, err error, delay time.Duration) {
//	        mgr.Invalidate()
//	    })
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return runQuery(ctx)
//	})
//
// # Error Classification
//
// SessionErrorClassifier recognizes expired OAuth tokens, terminated
// connections and the Snowflake session timeout code. NetworkErrorClassifier
// recognizes refused, reset and unreachable connections and DNS hiccups.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Use WithOnRetry() to create
// independent configurations per call.
package retry
