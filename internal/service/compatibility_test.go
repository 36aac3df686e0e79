package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/nemesis/api/internal/model"
)

// ============================================================================
// Score
// ============================================================================

func TestScore_OppositeExtremes(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 1, "q2": 1, "q3": 1}
	b := model.AnswerSet{"q1": 10, "q2": 10, "q3": 10}

	score, overlap, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, 100, score)
	assert.Equal(t, 3, overlap)
}

func TestScore_RoundsMeanDisagreement(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 5, "q2": 5}
	b := model.AnswerSet{"q1": 5, "q2": 6}

	// mean 0.5 -> 100*0.5/9 = 5.56 -> 6
	score, overlap, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, 6, score)
	assert.Equal(t, 2, overlap)
}

func TestScore_IdenticalAnswersScoreZero(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 3, "q2": 7, "q3": 10}

	score, _, err := Score(a, a)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestScore_IgnoresUnsharedQuestions(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 1, "q2": 1, "only-a": 10}
	b := model.AnswerSet{"q1": 10, "q2": 10, "only-b": 1}

	score, overlap, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, 100, score)
	assert.Equal(t, 2, overlap)
}

func TestScore_NoOverlap(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 1}
	b := model.AnswerSet{"q2": 10}

	_, overlap, err := Score(a, b)
	assert.True(t, errors.Is(err, ErrInsufficientOverlap))
	assert.Equal(t, 0, overlap)

	_, _, err = Score(model.AnswerSet{}, nil)
	assert.ErrorIs(t, err, ErrInsufficientOverlap)
}

func TestScore_RejectsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	_, _, err := Score(model.AnswerSet{"q1": 0}, model.AnswerSet{"q1": 5})
	assert.ErrorIs(t, err, ErrAnswerOutOfRange)

	_, _, err = Score(model.AnswerSet{"q1": 5}, model.AnswerSet{"q1": 11})
	assert.ErrorIs(t, err, ErrAnswerOutOfRange)
}

func TestScore_SymmetricAndBounded(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	questions := []string{"q1", "q2", "q3", "q4", "q5", "q6"}

	for i := 0; i < 500; i++ {
		a, b := model.AnswerSet{}, model.AnswerSet{}
		for _, q := range questions {
			if rng.Intn(3) > 0 {
				a[q] = 1 + rng.Intn(10)
			}
			if rng.Intn(3) > 0 {
				b[q] = 1 + rng.Intn(10)
			}
		}

		ab, overlapAB, errAB := Score(a, b)
		ba, overlapBA, errBA := Score(b, a)

		assert.Equal(t, errAB, errBA)
		assert.Equal(t, ab, ba, "score must be symmetric for %v / %v", a, b)
		assert.Equal(t, overlapAB, overlapBA)
		if errAB == nil {
			assert.GreaterOrEqual(t, ab, model.MinScore)
			assert.LessOrEqual(t, ab, model.MaxScore)
		}
	}
}

func TestOverlap(t *testing.T) {
	t.Parallel()

	a := model.AnswerSet{"q1": 1, "q2": 2, "q3": 3}
	b := model.AnswerSet{"q2": 9, "q3": 9, "q4": 9}

	assert.Equal(t, 2, Overlap(a, b))
	assert.Equal(t, 2, Overlap(b, a))
	assert.Equal(t, 0, Overlap(a, nil))
}

// ============================================================================
// Eligible
// ============================================================================

func TestEligible(t *testing.T) {
	t.Parallel()

	user := Candidate{ID: "user:a", Answers: model.AnswerSet{"q1": 1, "q2": 1, "q3": 1}}
	full := Candidate{ID: "user:b", Answers: model.AnswerSet{"q1": 9, "q2": 9, "q3": 9}}
	thin := Candidate{ID: "user:c", Answers: model.AnswerSet{"q1": 9, "q2": 9}}

	history := model.History{}
	history.Add("user:a", "user:d")
	recent := Candidate{ID: "user:d", Answers: full.Answers}

	tests := []struct {
		name       string
		candidate  Candidate
		minOverlap int
		want       bool
	}{
		{"eligible", full, 3, true},
		{"self", user, 1, false},
		{"below min overlap", thin, 3, false},
		{"meets lower min overlap", thin, 2, true},
		{"recent enemy", recent, 1, false},
		{"zero min overlap still needs one shared", Candidate{ID: "user:e", Answers: model.AnswerSet{"qx": 5}}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Eligible(user, tt.candidate, history, tt.minOverlap))
		})
	}
}

// ============================================================================
// CompatibilityService
// ============================================================================

type mockAnswerRepo struct {
	snapshotFunc   func(ctx context.Context, userIDs []string) (model.AnswerSnapshot, error)
	populationFunc func(ctx context.Context) ([]string, error)
}

func (m *mockAnswerRepo) Snapshot(ctx context.Context, userIDs []string) (model.AnswerSnapshot, error) {
	if m.snapshotFunc != nil {
		return m.snapshotFunc(ctx, userIDs)
	}
	return model.AnswerSnapshot{}, nil
}

func (m *mockAnswerRepo) ActivePopulation(ctx context.Context) ([]string, error) {
	if m.populationFunc != nil {
		return m.populationFunc(ctx)
	}
	return nil, nil
}

// staticAnswers serves a fixed snapshot, filtered to the requested users.
func staticAnswers(snapshot model.AnswerSnapshot) *mockAnswerRepo {
	return &mockAnswerRepo{
		snapshotFunc: func(_ context.Context, userIDs []string) (model.AnswerSnapshot, error) {
			out := model.AnswerSnapshot{}
			for _, id := range userIDs {
				if answers, ok := snapshot[id]; ok {
					out[id] = answers
				}
			}
			return out, nil
		},
		populationFunc: func(context.Context) ([]string, error) {
			return snapshot.Users(), nil
		},
	}
}

func TestCompatibilityService_ScorePair(t *testing.T) {
	t.Parallel()

	svc := NewCompatibilityService(CompatibilityServiceConfig{
		AnswerRepo: staticAnswers(model.AnswerSnapshot{
			"user:a": {"q1": 1, "q2": 1, "q3": 1},
			"user:b": {"q1": 10, "q2": 10, "q3": 10},
		}),
	})

	pair, err := svc.ScorePair(context.Background(), "user:a", "user:b")
	require.NoError(t, err)
	assert.Equal(t, 100, pair.Score)
	assert.Equal(t, 3, pair.Overlap)
}

func TestCompatibilityService_ScorePair_NoOverlap(t *testing.T) {
	t.Parallel()

	svc := NewCompatibilityService(CompatibilityServiceConfig{
		AnswerRepo: staticAnswers(model.AnswerSnapshot{
			"user:a": {"q1": 1},
		}),
	})

	_, err := svc.ScorePair(context.Background(), "user:a", "user:b")
	assert.ErrorIs(t, err, ErrInsufficientOverlap)
}
