package repository

import (
	"context"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

// QuestionRepository handles the question catalog
type QuestionRepository struct {
	db database.Database
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db database.Database) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// List retrieves questions in display order
func (r *QuestionRepository) List(ctx context.Context, includeInactive bool) ([]*model.Question, error) {
	query := `SELECT * FROM question WHERE active = true ORDER BY sort_order, created_on`
	if includeInactive {
		query = `SELECT * FROM question ORDER BY sort_order, created_on`
	}

	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return parseQuestions(result), nil
}

// GetByID retrieves a question by ID, or nil if missing
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*model.Question, error) {
	// Direct record access - more efficient than WHERE id =
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	questions := parseQuestions(result)
	if len(questions) == 0 {
		return nil, nil
	}
	return questions[0], nil
}

// GetMany retrieves several questions in one read, keyed by ID
func (r *QuestionRepository) GetMany(ctx context.Context, ids []string) (map[string]*model.Question, error) {
	out := make(map[string]*model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT * FROM question WHERE type::string(id) INSIDE $ids`
	vars := map[string]interface{}{"ids": uniqueStrings(ids)}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	for _, q := range parseQuestions(result) {
		out[q.ID] = q
	}
	return out, nil
}

// Count returns the number of questions, active or not
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	result, err := r.db.Query(ctx, `SELECT count() FROM question GROUP ALL`, nil)
	if err != nil {
		return 0, err
	}
	return extractCount(result), nil
}

// CreateMany inserts active questions in the given order, atomically.
func (r *QuestionRepository) CreateMany(ctx context.Context, texts []string) ([]*model.Question, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := database.NewAtomicBatch()
	for i, text := range texts {
		batch.Add(`
			CREATE question CONTENT {
				text: $text,
				active: true,
				sort_order: $sort_order,
				created_on: time::now()
			}
		`, map[string]interface{}{
			"text":       text,
			"sort_order": i + 1,
		})
	}
	if err := batch.Execute(ctx, r.db); err != nil {
		return nil, err
	}

	return r.List(ctx, true)
}

func parseQuestions(result []interface{}) []*model.Question {
	rows := extractQueryResults(result)
	questions := make([]*model.Question, 0, len(rows))
	for _, data := range rows {
		questions = append(questions, &model.Question{
			ID:        convertSurrealID(data["id"]),
			Text:      getString(data, "text"),
			Active:    getBool(data, "active"),
			SortOrder: getInt(data, "sort_order"),
			CreatedOn: getTimeValue(data, "created_on"),
		})
	}
	return questions
}
