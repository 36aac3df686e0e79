package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"
	"time"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

// SeederService generates mock users and answers for testing and development
type SeederService struct {
	db   database.Database
	rand *mrand.Rand
}

// NewSeederService creates a new seeder service
func NewSeederService(db database.Database) *SeederService {
	return &SeederService{db: db, rand: mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))}
}

// SeedPopulationRequest configures population seeding
type SeedPopulationRequest struct {
	Count int `json:"count"`
	// AnswerRate is the percentage of active questions each user answers
	AnswerRate int `json:"answer_rate,omitempty"`
	// Prefix for seeded user emails to identify them for cleanup
	Prefix string `json:"prefix,omitempty"`
}

// SeedResult contains the results of a seeding operation
type SeedResult struct {
	Created  int      `json:"created"`
	Answers  int      `json:"answers"`
	IDs      []string `json:"ids"`
	Duration int64    `json:"duration_ms"`
}

// CleanupResult contains the results of a cleanup operation
type CleanupResult struct {
	Deactivated int   `json:"deactivated"`
	Duration    int64 `json:"duration_ms"`
}

const (
	defaultSeedPrefix = "seed_"
	defaultAnswerRate = 80
	maxSeedCount      = 1000
)

// Sample data for realistic generation
var (
	firstNames = []string{
		"Emma", "Liam", "Olivia", "Noah", "Ava", "Ethan", "Sophia", "Mason",
		"Isabella", "William", "Mia", "James", "Charlotte", "Benjamin", "Amelia",
		"Lucas", "Harper", "Henry", "Evelyn", "Alexander", "Abigail", "Michael",
		"Emily", "Daniel", "Elizabeth", "Jacob", "Sofia", "Logan", "Avery", "Jackson",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson",
		"Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson",
	}
)

// SeedPopulation creates mock users who answer a random share of the active
// questions. Each user's answers cluster around a random point on the scale
// so that the population contains real disagreements to match on.
func (s *SeederService) SeedPopulation(ctx context.Context, req SeedPopulationRequest) (*SeedResult, error) {
	start := time.Now()

	if req.Count <= 0 || req.Count > maxSeedCount {
		return nil, fmt.Errorf("count must be between 1 and %d", maxSeedCount)
	}
	if req.Prefix == "" {
		req.Prefix = defaultSeedPrefix
	}
	if req.AnswerRate <= 0 || req.AnswerRate > 100 {
		req.AnswerRate = defaultAnswerRate
	}

	questions, err := s.activeQuestionIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, errors.New("no active questions: seed the catalog first")
	}

	ids := make([]string, 0, req.Count)
	answers := 0

	for i := 0; i < req.Count; i++ {
		randID := randomID()
		first := firstNames[s.rand.IntN(len(firstNames))]
		last := lastNames[s.rand.IntN(len(lastNames))]

		results, err := s.db.Query(ctx, `
			CREATE user CONTENT {
				email: $email,
				username: $username,
				role: "user",
				active: true,
				created_on: time::now()
			}
		`, map[string]interface{}{
			"email":    fmt.Sprintf("%s%s@test.local", req.Prefix, randID),
			"username": fmt.Sprintf("%s%s_%s", req.Prefix, strings.ToLower(first+last), randID[:4]),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		userID := extractID(results)
		if userID == "" {
			return nil, fmt.Errorf("failed to extract user ID")
		}
		ids = append(ids, userID)

		batch := database.NewAtomicBatch()
		lean := 1 + s.rand.IntN(model.MaxAnswerValue)
		for _, qid := range questions {
			if s.rand.IntN(100) >= req.AnswerRate {
				continue
			}
			batch.Add(`
				CREATE answer CONTENT {
					user: type::record($user_id),
					question: type::record($question_id),
					value: $value,
					answered_on: time::now()
				}
			`, map[string]interface{}{
				"user_id":     userID,
				"question_id": qid,
				"value":       s.answerNear(lean),
			})
		}
		if batch.Len() == 0 {
			continue
		}
		if err := batch.Execute(ctx, s.db); err != nil {
			return nil, fmt.Errorf("failed to create answers: %w", err)
		}
		answers += batch.Len()
	}

	return &SeedResult{
		Created:  len(ids),
		Answers:  answers,
		IDs:      ids,
		Duration: time.Since(start).Milliseconds(),
	}, nil
}

// Cleanup removes the answers of seeded users and deactivates them. Users
// are kept because ledger records may still reference them.
func (s *SeederService) Cleanup(ctx context.Context, prefix string) (*CleanupResult, error) {
	start := time.Now()

	if prefix == "" {
		prefix = defaultSeedPrefix
	}
	vars := map[string]interface{}{"prefix": prefix}

	if err := s.db.Execute(ctx, `DELETE answer WHERE string::starts_with(user.email, $prefix)`, vars); err != nil {
		return nil, fmt.Errorf("failed to delete answers: %w", err)
	}

	results, err := s.db.Query(ctx, `
		UPDATE user SET active = false
		WHERE active = true AND string::starts_with(email, $prefix)
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate users: %w", err)
	}

	return &CleanupResult{
		Deactivated: len(extractIDs(results)),
		Duration:    time.Since(start).Milliseconds(),
	}, nil
}

func (s *SeederService) activeQuestionIDs(ctx context.Context) ([]string, error) {
	results, err := s.db.Query(ctx, `SELECT id FROM question WHERE active = true`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return extractIDs(results), nil
}

// answerNear returns a value within two steps of lean, clamped to the scale
func (s *SeederService) answerNear(lean int) int {
	v := lean + s.rand.IntN(5) - 2
	return min(max(v, model.MinAnswerValue), model.MaxAnswerValue)
}

// Helper functions

func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func extractID(results []interface{}) string {
	ids := extractIDs(results)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func extractIDs(results []interface{}) []string {
	var ids []string
	if len(results) == 0 {
		return ids
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return ids
	}

	result, ok := resp["result"]
	if !ok {
		return ids
	}

	switch v := result.(type) {
	case []interface{}:
		for _, item := range v {
			if data, ok := item.(map[string]interface{}); ok {
				if id := formatID(data["id"]); id != "" {
					ids = append(ids, id)
				}
			}
		}
	case map[string]interface{}:
		if id := formatID(v["id"]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func formatID(v interface{}) string {
	if v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	if m, ok := v.(map[string]interface{}); ok {
		if tb, ok := m["tb"].(string); ok {
			if id := m["id"]; id != nil {
				return fmt.Sprintf("%s:%v", tb, id)
			}
		}
	}

	// Fallback: convert "{table id}" to "table:id"
	s := fmt.Sprintf("%v", v)
	if len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' {
		inner := s[1 : len(s)-1]
		for i, c := range inner {
			if c == ' ' {
				return inner[:i] + ":" + inner[i+1:]
			}
		}
	}
	return s
}
