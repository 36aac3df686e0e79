package repository

import (
	"context"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

// AnswerRepository handles survey answers. It serves both the engine's
// snapshot reads and the questionnaire's writes.
type AnswerRepository struct {
	db database.Database
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db database.Database) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Snapshot returns the active-question answers of the given users from a
// single SELECT, so no user is observed half-written.
func (r *AnswerRepository) Snapshot(ctx context.Context, userIDs []string) (model.AnswerSnapshot, error) {
	snapshot := make(model.AnswerSnapshot)
	if len(userIDs) == 0 {
		return snapshot, nil
	}

	query := `
		SELECT user, question, value FROM answer
		WHERE question.active = true
		AND type::string(user) INSIDE $user_ids
	`
	vars := map[string]interface{}{"user_ids": uniqueStrings(userIDs)}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	for _, row := range extractQueryResults(result) {
		userID := convertSurrealID(row["user"])
		questionID := convertSurrealID(row["question"])
		if userID == "" || questionID == "" {
			continue
		}
		if snapshot[userID] == nil {
			snapshot[userID] = make(model.AnswerSet)
		}
		snapshot[userID][questionID] = getInt(row, "value")
	}
	return snapshot, nil
}

// ActivePopulation returns active users with at least one answer to an active question
func (r *AnswerRepository) ActivePopulation(ctx context.Context) ([]string, error) {
	query := `
		SELECT user FROM answer
		WHERE user.active = true AND question.active = true
		GROUP BY user
	`

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	rows := extractQueryResults(result)
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := convertSurrealID(row["user"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListByUser retrieves all answers for a user
func (r *AnswerRepository) ListByUser(ctx context.Context, userID string) ([]*model.Answer, error) {
	query := `SELECT * FROM answer WHERE user = type::record($user_id) ORDER BY answered_on`
	vars := map[string]interface{}{"user_id": userID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return parseAnswers(result), nil
}

// Upsert writes every answer in one transaction. An existing answer for the
// same question is overwritten and keeps its original answered_on.
func (r *AnswerRepository) Upsert(ctx context.Context, userID string, answers []model.AnswerRequest) ([]*model.Answer, error) {
	if len(answers) == 0 {
		return nil, nil
	}

	batch := database.NewAtomicBatch()
	for _, a := range answers {
		batch.Add(`
			UPSERT answer SET
				user = type::record($user_id),
				question = type::record($question_id),
				value = $value,
				answered_on = answered_on ?? time::now(),
				updated_on = time::now()
			WHERE user = type::record($user_id) AND question = type::record($question_id)
		`, map[string]interface{}{
			"user_id":     userID,
			"question_id": a.QuestionID,
			"value":       a.Value,
		})
	}
	if err := batch.Execute(ctx, r.db); err != nil {
		return nil, err
	}

	stored, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	submitted := make(map[string]bool, len(answers))
	for _, a := range answers {
		submitted[a.QuestionID] = true
	}
	out := make([]*model.Answer, 0, len(answers))
	for _, a := range stored {
		if submitted[a.QuestionID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func parseAnswers(result []interface{}) []*model.Answer {
	rows := extractQueryResults(result)
	answers := make([]*model.Answer, 0, len(rows))
	for _, data := range rows {
		answers = append(answers, &model.Answer{
			ID:         convertSurrealID(data["id"]),
			UserID:     convertSurrealID(data["user"]),
			QuestionID: convertSurrealID(data["question"]),
			Value:      getInt(data, "value"),
			AnsweredOn: getTimeValue(data, "answered_on"),
			UpdatedOn:  getTime(data, "updated_on"),
		})
	}
	return answers
}
