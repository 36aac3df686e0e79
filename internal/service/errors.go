package service

import (
	"errors"

	"github.com/forgo/nemesis/api/internal/model"
)

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Scoring Errors =====
var (
	ErrInsufficientOverlap = errors.New("users have no answered questions in common")
	ErrAnswerOutOfRange    = errors.New("answer value outside 1-10")
)

// ===== Matching Errors =====
var (
	ErrNoEligibleCandidate     = errors.New("no eligible enemy candidate")
	ErrConcurrentCycleConflict = errors.New("a matching cycle is already in progress")
	ErrLedgerWrite             = errors.New("match ledger write failed")
	ErrInvalidPolicy           = errors.New("invalid matching policy")
	ErrPairAlreadyMatched      = model.ErrPairWithinWindow
)

// ===== Not Found Errors =====
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrMatchNotFound    = errors.New("no matches found for this user")
	ErrCycleNotFound    = errors.New("cycle not found")
)

// ===== Authorization Errors =====
var (
	ErrNotMatchOwner = errors.New("cannot access another user's matches")
)

// ===== Validation Errors =====
var (
	ErrInvalidSurvey    = errors.New("invalid survey submission")
	ErrQuestionInactive = errors.New("question is no longer active")
)
