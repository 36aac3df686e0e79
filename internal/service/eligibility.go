package service

import "github.com/forgo/nemesis/api/internal/model"

// Candidate is a user considered for matching, with their answer snapshot.
type Candidate struct {
	ID      string
	Answers model.AnswerSet
}

// Eligible reports whether candidate may be matched against user.
//
// A candidate is rejected when it is the user, when the two share fewer than
// minOverlap answered questions (never fewer than one), or when the history
// already pairs them inside the active exclusion window. Eligible reads its
// inputs only.
func Eligible(user, candidate Candidate, history model.History, minOverlap int) bool {
	if candidate.ID == user.ID {
		return false
	}
	if history.Excludes(user.ID, candidate.ID) {
		return false
	}
	if minOverlap < 1 {
		minOverlap = 1
	}
	return Overlap(user.Answers, candidate.Answers) >= minOverlap
}
