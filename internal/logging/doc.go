// Package logging provides concrete implementations of the sfdash.Logger interface.
//
// Available implementations:
//   - ZeroLogger: zerolog-backed structured logger writing to the console and,
//     optionally, to a size-rotated log file
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
