package model

import "time"

// Question is a survey statement users rate from 1 to 10.
type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	SortOrder int       `json:"sort_order"`
	CreatedOn time.Time `json:"created_on"`
}

// Answer represents a user's rating of a question. There is at most one
// answer per (user, question); resubmitting overwrites the value.
type Answer struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	QuestionID string     `json:"question_id"`
	Value      int        `json:"answer_value"`
	AnsweredOn time.Time  `json:"answered_at"`
	UpdatedOn  *time.Time `json:"updated_at,omitempty"`
}

// Answer value bounds
const (
	MinAnswerValue = 1
	MaxAnswerValue = 10
	MaxSurveySize  = 200
)

// AnswerSet maps question ID to answer value for a single user.
type AnswerSet map[string]int

// AnswerSnapshot maps user ID to that user's answers, read at one instant.
type AnswerSnapshot map[string]AnswerSet

// Users returns the user IDs in the snapshot.
func (s AnswerSnapshot) Users() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// AnswerRequest is a single answer submission
type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Value      int    `json:"answer_value"`
}

// Validate validates a single answer submission
func (r *AnswerRequest) Validate() []FieldError {
	return r.validate("")
}

func (r *AnswerRequest) validate(prefix string) []FieldError {
	var errors []FieldError
	if r.QuestionID == "" {
		errors = append(errors, FieldError{Field: prefix + "question_id", Message: "question_id is required"})
	}
	if r.Value < MinAnswerValue || r.Value > MaxAnswerValue {
		errors = append(errors, FieldError{Field: prefix + "answer_value", Message: "answer_value must be between 1 and 10"})
	}
	return errors
}

// SurveyRequest submits several answers at once
type SurveyRequest struct {
	Answers []AnswerRequest `json:"answers"`
}

// Validate checks every answer before anything is written, so a survey with
// one bad value is rejected as a whole.
func (r *SurveyRequest) Validate() []FieldError {
	var errors []FieldError
	if len(r.Answers) == 0 {
		return []FieldError{{Field: "answers", Message: "at least one answer is required"}}
	}
	if len(r.Answers) > MaxSurveySize {
		return []FieldError{{Field: "answers", Message: "too many answers in one survey"}}
	}

	seen := make(map[string]bool, len(r.Answers))
	for i := range r.Answers {
		a := &r.Answers[i]
		prefix := fieldIndex("answers", i)
		errors = append(errors, a.validate(prefix)...)
		if a.QuestionID != "" {
			if seen[a.QuestionID] {
				errors = append(errors, FieldError{Field: prefix + "question_id", Message: "question answered more than once"})
			}
			seen[a.QuestionID] = true
		}
	}
	return errors
}
