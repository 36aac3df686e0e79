package handler

import (
	"errors"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

// ledgerRetryAfter is the retry hint, in seconds, sent with a failed ledger write.
const ledgerRetryAfter = 5

// MapServiceError converts a service error to a ProblemDetails response.
// Every handler goes through here so the same error always yields the same
// status and body.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var pd *model.ProblemDetails
	if errors.As(err, &pd) {
		return pd
	}

	switch {
	// ===== Matching Errors =====
	case errors.Is(err, service.ErrNoEligibleCandidate):
		return model.NewNoCandidateError(err.Error())
	case errors.Is(err, service.ErrConcurrentCycleConflict):
		return model.NewCycleConflictError(err.Error())
	case errors.Is(err, service.ErrLedgerWrite):
		return model.NewServiceUnavailableError(err.Error(), ledgerRetryAfter)
	case errors.Is(err, service.ErrPairAlreadyMatched):
		return model.NewConflictError(err.Error())

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotMatchOwner):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")
	case errors.Is(err, service.ErrQuestionNotFound):
		return model.NewNotFoundError("question")
	case errors.Is(err, service.ErrMatchNotFound):
		return model.NewNotFoundError("match")
	case errors.Is(err, service.ErrCycleNotFound):
		return model.NewNotFoundError("cycle")

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrQuestionInactive):
		return model.NewValidationError([]model.FieldError{{Field: "question_id", Message: err.Error()}})
	case errors.Is(err, service.ErrAnswerOutOfRange):
		return model.NewValidationError([]model.FieldError{{Field: "answer_value", Message: err.Error()}})
	case errors.Is(err, service.ErrInvalidSurvey):
		return model.NewValidationError([]model.FieldError{{Field: "answers", Message: err.Error()}})
	case errors.Is(err, service.ErrInsufficientOverlap):
		return model.NewValidationError([]model.FieldError{{Field: "answers", Message: err.Error()}})

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext converts a service error to a ProblemDetails response
// with additional context about the operation that failed.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
