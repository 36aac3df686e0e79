// Package middleware provides HTTP middleware for the Nemesis API.
//
// # Available Middleware
//
//   - Auth: bearer token validation and user extraction
//   - AdminAuth: admin role plus the X-Admin-Key service key
//   - RateLimit: token bucket per user or client IP
//   - RequestID, Logger, Recovery, CORS, Compress, Metrics
//
// Compose them with Chain, outermost first:
//
//	h := middleware.Chain(mux, middleware.Recovery, middleware.RequestID, middleware.Logger)
//
// # Context Values
//
// After Auth, handlers read the caller from the request context:
//
//	userID := middleware.GetUserID(r.Context())
//	if middleware.IsAdmin(r.Context()) { ... }
package middleware
