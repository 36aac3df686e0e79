package service

import (
	"context"
	"math"

	"github.com/forgo/nemesis/api/internal/model"
)

// maxDisagreement is the largest possible gap between two 1-10 answers.
const maxDisagreement = model.MaxAnswerValue - model.MinAnswerValue

// Score computes the incompatibility of two answer sets.
//
// Only questions both users answered count. Each shared question contributes
// |a-b| (0..9); the score is round(100 * mean / 9), so identical answers give
// 0 and opposite extremes give 100. The result is symmetric in its arguments.
// Pairs with no shared questions return ErrInsufficientOverlap and no score.
func Score(a, b model.AnswerSet) (score, overlap int, err error) {
	// Walk the smaller set; the result does not depend on which side is which.
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	total := 0
	for questionID, va := range small {
		vb, ok := large[questionID]
		if !ok {
			continue
		}
		if !validAnswer(va) || !validAnswer(vb) {
			return 0, 0, ErrAnswerOutOfRange
		}
		total += absInt(va - vb)
		overlap++
	}

	if overlap == 0 {
		return 0, 0, ErrInsufficientOverlap
	}

	score = int(math.Round(100 * float64(total) / float64(maxDisagreement*overlap)))
	return score, overlap, nil
}

// Overlap counts the questions answered by both users.
func Overlap(a, b model.AnswerSet) int {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	n := 0
	for questionID := range small {
		if _, ok := large[questionID]; ok {
			n++
		}
	}
	return n
}

func validAnswer(v int) bool {
	return v >= model.MinAnswerValue && v <= model.MaxAnswerValue
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// CompatibilityService scores arbitrary pairs of users from stored answers.
// It is used for diagnostics; matching itself scores from a snapshot.
type CompatibilityService struct {
	answerRepo AnswerRepository
}

// CompatibilityServiceConfig holds configuration for the compatibility service
type CompatibilityServiceConfig struct {
	AnswerRepo AnswerRepository
}

// NewCompatibilityService creates a new compatibility service
func NewCompatibilityService(cfg CompatibilityServiceConfig) *CompatibilityService {
	return &CompatibilityService{
		answerRepo: cfg.AnswerRepo,
	}
}

// PairScore is the scored relationship between two users
type PairScore struct {
	UserAID string `json:"user_a_id"`
	UserBID string `json:"user_b_id"`
	Score   int    `json:"score"`
	Overlap int    `json:"overlap"`
}

// ScorePair loads both users' answers in one read and scores them.
func (s *CompatibilityService) ScorePair(ctx context.Context, userAID, userBID string) (*PairScore, error) {
	snapshot, err := s.answerRepo.Snapshot(ctx, []string{userAID, userBID})
	if err != nil {
		return nil, err
	}

	score, overlap, err := Score(snapshot[userAID], snapshot[userBID])
	if err != nil {
		return nil, err
	}

	return &PairScore{
		UserAID: userAID,
		UserBID: userBID,
		Score:   score,
		Overlap: overlap,
	}, nil
}
