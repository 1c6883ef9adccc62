// Package web exposes the query catalog over HTTP.
//
// Routes:
//
//	GET /healthz             connection manager state
//	GET /api/queries         sorted catalog names
//	GET /api/queries/{name}  records of the named query
//
// Errors are returned as {"error": "..."}; warehouse detail is logged, never
// sent to the client.
package web
