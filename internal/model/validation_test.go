package model

import (
	"strings"
	"testing"
	"time"
)

// ============================================================================
// AnswerRequest Tests
// ============================================================================

func TestAnswerRequest_Validate_Valid(t *testing.T) {
	t.Parallel()

	for _, v := range []int{1, 5, 10} {
		req := &AnswerRequest{QuestionID: "question:1", Value: v}
		if errs := req.Validate(); len(errs) > 0 {
			t.Errorf("value %d: expected no errors, got %v", v, errs)
		}
	}
}

func TestAnswerRequest_Validate_OutOfRange(t *testing.T) {
	t.Parallel()

	for _, v := range []int{0, -3, 11, 100} {
		req := &AnswerRequest{QuestionID: "question:1", Value: v}
		errs := req.Validate()
		if len(errs) != 1 || errs[0].Field != "answer_value" {
			t.Errorf("value %d: expected answer_value error, got %v", v, errs)
		}
	}
}

func TestAnswerRequest_Validate_MissingQuestion(t *testing.T) {
	t.Parallel()

	req := &AnswerRequest{Value: 4}
	errs := req.Validate()
	if len(errs) != 1 || errs[0].Field != "question_id" {
		t.Errorf("expected question_id error, got %v", errs)
	}
}

// ============================================================================
// SurveyRequest Tests
// ============================================================================

func TestSurveyRequest_Validate_Valid(t *testing.T) {
	t.Parallel()

	req := &SurveyRequest{Answers: []AnswerRequest{
		{QuestionID: "question:1", Value: 1},
		{QuestionID: "question:2", Value: 10},
	}}
	if errs := req.Validate(); len(errs) > 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestSurveyRequest_Validate_Empty(t *testing.T) {
	t.Parallel()

	req := &SurveyRequest{}
	errs := req.Validate()
	if len(errs) != 1 || errs[0].Field != "answers" {
		t.Errorf("expected answers error, got %v", errs)
	}
}

func TestSurveyRequest_Validate_IndexesBadEntry(t *testing.T) {
	t.Parallel()

	req := &SurveyRequest{Answers: []AnswerRequest{
		{QuestionID: "question:1", Value: 3},
		{QuestionID: "question:2", Value: 11},
	}}
	errs := req.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "answers[1].answer_value" {
		t.Errorf("expected answers[1].answer_value, got %q", errs[0].Field)
	}
}

func TestSurveyRequest_Validate_DuplicateQuestion(t *testing.T) {
	t.Parallel()

	req := &SurveyRequest{Answers: []AnswerRequest{
		{QuestionID: "question:1", Value: 3},
		{QuestionID: "question:1", Value: 4},
	}}
	errs := req.Validate()
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "more than once") {
		t.Errorf("expected duplicate error, got %v", errs)
	}
}

func TestSurveyRequest_Validate_TooLarge(t *testing.T) {
	t.Parallel()

	answers := make([]AnswerRequest, MaxSurveySize+1)
	for i := range answers {
		answers[i] = AnswerRequest{QuestionID: "question:x", Value: 5}
	}
	req := &SurveyRequest{Answers: answers}
	errs := req.Validate()
	if len(errs) != 1 || errs[0].Field != "answers" {
		t.Errorf("expected single answers error, got %v", errs)
	}
}

// ============================================================================
// MatchingPolicy Tests
// ============================================================================

func TestMatchingPolicy_Defaults(t *testing.T) {
	t.Parallel()

	p := DefaultMatchingPolicy()
	if p.MinOverlap != 3 {
		t.Errorf("expected min overlap 3, got %d", p.MinOverlap)
	}
	if p.Mode != SelectionModePairs {
		t.Errorf("expected pairs mode, got %q", p.Mode)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy should validate: %v", err)
	}
}

func TestMatchingPolicy_EffectiveMinOverlap_NeverZero(t *testing.T) {
	t.Parallel()

	p := MatchingPolicy{MinOverlap: 0, Mode: SelectionModePairs}
	if got := p.EffectiveMinOverlap(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestMatchingPolicy_Validate_UnknownMode(t *testing.T) {
	t.Parallel()

	p := MatchingPolicy{Mode: "round-robin"}
	if err := p.Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// ============================================================================
// ExclusionWindow / History Tests
// ============================================================================

func TestExclusionWindow_Includes(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	w := ExclusionWindow{Since: since}

	if !w.Includes(since) {
		t.Error("window start should be included")
	}
	if w.Includes(since.Add(-time.Second)) {
		t.Error("time before window should be excluded")
	}
	if !(ExclusionWindow{All: true}).Includes(time.Time{}) {
		t.Error("all-history window should include zero time")
	}
	if (ExclusionWindow{Disabled: true, All: true}).Includes(since) {
		t.Error("disabled window should include nothing")
	}
}

func TestHistory_AddIsSymmetric(t *testing.T) {
	t.Parallel()

	h := History{}
	h.Add("user:a", "user:b")

	if !h.Excludes("user:a", "user:b") || !h.Excludes("user:b", "user:a") {
		t.Error("history should exclude in both directions")
	}
	if h.Excludes("user:a", "user:c") {
		t.Error("unrelated pair should not be excluded")
	}
}
