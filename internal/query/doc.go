// Package query executes SQL against the managed connection handle.
//
// Service acquires the current handle, runs one statement and returns the
// rows as records keyed by the column names the warehouse reports. A failure
// caused by an expired or terminated session discards the handle and re-runs
// the statement on a fresh one, up to the retry budget (default 1). Any other
// failure is returned on first occurrence.
//
// Catalog holds the named, fixed SQL statements that the HTTP layer and the
// CLI are allowed to run; callers never pass SQL text through.
package query
