// Package model defines domain entities and data structures for the Nemesis API.
//
// The model package contains the struct definitions shared by every layer:
// domain objects, request/response types, the matching policy and the
// error definitions.
//
// # Domain Entities
//
//   - User: read-only view of an account that can be matched
//   - Question, Answer: the survey catalog and a user's 1-10 ratings
//   - MatchRecord: one immutable ledger entry pairing a user with an enemy
//   - Cycle: the batch run that produced a set of records
//   - MatchingPolicy: the tunables shared by on-demand and batch matching
//
// # Validation Constants
//
//	const (
//	    MinAnswerValue = 1
//	    MaxAnswerValue = 10
//	    MaxSurveySize  = 200
//	)
//
// Request types expose Validate() []FieldError; handlers turn a non-empty
// result into a 422 response.
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type    string    `json:"type"`
//	    Title   string    `json:"title"`
//	    Status  int       `json:"status"`
//	    Detail  string    `json:"detail"`
//	}
package model
