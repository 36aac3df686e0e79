// Package handler provides the HTTP endpoints of the Nemesis API.
//
// Each handler struct depends on a small interface describing the service
// calls it makes, so tests substitute func-field mocks and cmd/server passes
// the concrete services.
//
// # Response Format
//
//   - WriteData: single resource in a {"data": ..., "_links": ...} envelope
//   - WriteCollection: list of resources with a count; nil lists encode as []
//   - WriteError: RFC 9457 Problem Details (application/problem+json)
//
// Service errors become Problem Details in one place, MapServiceError.
//
// # Routes
//
// NewRouter owns the route table. User routes sit behind middleware.Auth,
// admin routes behind middleware.AdminAuth, and the two find-enemy routes
// additionally behind the find-enemy rate limiter.
package handler
