package model

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *ProblemDetails
		status  int
		title   string
		code    ErrorCode
		typeEnd string
	}{
		{"unauthorized", NewUnauthorizedError("missing token"), http.StatusUnauthorized, "Unauthorized", ErrCodeUnauthorized, "/unauthorized"},
		{"forbidden", NewForbiddenError("admins only"), http.StatusForbidden, "Forbidden", ErrCodeForbidden, "/forbidden"},
		{"not found", NewNotFoundError("question"), http.StatusNotFound, "Not Found", ErrCodeNotFound, "/not-found"},
		{"conflict", NewConflictError("duplicate"), http.StatusConflict, "Conflict", ErrCodeConflict, "/conflict"},
		{"no candidate", NewNoCandidateError("nobody shares enough questions"), http.StatusUnprocessableEntity, "No Eligible Candidate", ErrCodeNoCandidate, "/no-eligible-candidate"},
		{"cycle running", NewCycleConflictError("a cycle is in progress"), http.StatusConflict, "Cycle Already Running", ErrCodeCycleRunning, "/cycle-running"},
		{"internal", NewInternalError("boom"), http.StatusInternalServerError, "Internal Server Error", ErrCodeInternal, "/internal"},
		{"bad request", NewBadRequestError("malformed JSON"), http.StatusBadRequest, "Bad Request", ErrCodeInvalidInput, "/bad-request"},
		{"method not allowed", NewMethodNotAllowedError("POST"), http.StatusMethodNotAllowed, "Method Not Allowed", 0, "/method-not-allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.code, tt.problem.Code)
			assert.Equal(t, "https://nemesis-api.forgo.software/errors"+tt.typeEnd, tt.problem.Type)
			assert.NotEmpty(t, tt.problem.Detail)
		})
	}
}

func TestNewNotFoundError_NamesResource(t *testing.T) {
	assert.Equal(t, "match cycle not found", NewNotFoundError("match cycle").Detail)
}

func TestNewInternalError_DefaultDetail(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", NewInternalError("").Detail)
	assert.Equal(t, "ledger offline", NewInternalError("ledger offline").Detail)
}

func TestNewValidationError_Detail(t *testing.T) {
	assert.Equal(t, "One or more fields failed validation", NewValidationError(nil).Detail)

	one := NewValidationError([]FieldError{{Field: "value", Message: "must be between 1 and 5"}})
	assert.Equal(t, "value: must be between 1 and 5", one.Detail)
	assert.Equal(t, http.StatusUnprocessableEntity, one.Status)
	assert.Len(t, one.Errors, 1)

	many := NewValidationError([]FieldError{
		{Field: "answers", Message: "is required"},
		{Field: "question_id", Message: "unknown question"},
		{Field: "value", Message: "out of range"},
	})
	assert.Equal(t, "answers: is required (and 2 more errors)", many.Detail)
}

func TestRetryAfterProblems(t *testing.T) {
	unavailable := NewServiceUnavailableError("ledger write failed", 5)
	assert.Equal(t, http.StatusServiceUnavailable, unavailable.Status)
	assert.Equal(t, ErrCodeLedgerWrite, unavailable.Code)
	require.NotNil(t, unavailable.RetryAfter)
	assert.Equal(t, 5, *unavailable.RetryAfter)

	limited := NewRateLimitError(30)
	assert.Equal(t, http.StatusTooManyRequests, limited.Status)
	require.NotNil(t, limited.RetryAfter)
	assert.Equal(t, 30, *limited.RetryAfter)
	assert.Contains(t, limited.Detail, "30 seconds")
}

func TestProblemDetails_Error(t *testing.T) {
	p := NewCycleConflictError("a cycle is in progress")
	assert.Equal(t, "[409] Cycle Already Running: a cycle is in progress", p.Error())

	var err error = p
	assert.Error(t, err)
}

func TestProblemDetails_WriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	p := NewNoCandidateError("no eligible candidate")
	p.Instance = "req-123"
	p.WriteJSON(rr)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "No Eligible Candidate", body["title"])
	assert.Equal(t, "req-123", body["instance"])
	assert.Equal(t, float64(ErrCodeNoCandidate), body["code"])
	assert.NotContains(t, body, "retry_after")
	assert.NotContains(t, body, "errors")
}

func TestProblemDetails_JSONIncludesRetryAfter(t *testing.T) {
	raw, err := json.Marshal(NewServiceUnavailableError("try again", 2))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"retry_after":2`)
}

func TestErrorCodes(t *testing.T) {
	codes := map[ErrorCode]string{}
	ranges := []struct {
		lo, hi ErrorCode
		codes  []ErrorCode
	}{
		{1000, 1999, []ErrorCode{ErrCodeUnauthorized, ErrCodeTokenExpired, ErrCodeTokenInvalid}},
		{2000, 2999, []ErrorCode{ErrCodeForbidden}},
		{3000, 3999, []ErrorCode{ErrCodeNotFound, ErrCodeAlreadyExists, ErrCodeConflict, ErrCodeCycleRunning}},
		{4000, 4999, []ErrorCode{ErrCodeValidation, ErrCodeInvalidInput, ErrCodeNoCandidate}},
		{5000, 5999, []ErrorCode{ErrCodeInternal, ErrCodeDatabase, ErrCodeLedgerWrite}},
	}

	for _, r := range ranges {
		for _, c := range r.codes {
			assert.GreaterOrEqual(t, c, r.lo)
			assert.LessOrEqual(t, c, r.hi)
			_, dup := codes[c]
			assert.False(t, dup, "duplicate error code %d", c)
			codes[c] = ""
		}
	}
}
