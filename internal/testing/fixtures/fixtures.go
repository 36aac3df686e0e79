package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

// Factory creates test entities in the database
type Factory struct {
	db database.Database
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{db: db}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ctx returns a context with timeout
func ctx() context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	// Store cancel to prevent leak warning
	_ = cancel
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Email    string
	Username string
	Role     model.UserRole
	Active   bool
}

// Inactive creates a deactivated user
func Inactive(o *UserOpts) {
	o.Active = false
}

// CreateUser creates a user with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	id := randomID()
	o := &UserOpts{
		Email:    fmt.Sprintf("user_%s@test.local", id),
		Username: fmt.Sprintf("user_%s", id),
		Role:     model.UserRoleUser,
		Active:   true,
	}
	for _, fn := range opts {
		fn(o)
	}

	query := `
		CREATE user CONTENT {
			email: $email,
			username: $username,
			role: $role,
			active: $active,
			created_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"email":    o.Email,
		"username": o.Username,
		"role":     string(o.Role),
		"active":   o.Active,
	}

	results, err := f.db.Query(ctx(), query, vars)
	if err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}

	data := extractFirstResult(t, results)
	return &model.User{
		ID:        getString(data, "id"),
		Email:     getString(data, "email"),
		Username:  getString(data, "username"),
		Role:      model.UserRole(getString(data, "role")),
		Active:    getBool(data, "active"),
		CreatedOn: getTime(data, "created_on"),
	}
}

// CreateAdmin creates an admin user
func (f *Factory) CreateAdmin(t *testing.T) *model.User {
	return f.CreateUser(t, func(o *UserOpts) {
		o.Role = model.UserRoleAdmin
	})
}

// ============================================================================
// Questionnaire Fixtures
// ============================================================================

// CreateQuestion creates an active question
func (f *Factory) CreateQuestion(t *testing.T, text string) *model.Question {
	return f.createQuestion(t, text, true)
}

// CreateInactiveQuestion creates a retired question
func (f *Factory) CreateInactiveQuestion(t *testing.T, text string) *model.Question {
	return f.createQuestion(t, text, false)
}

func (f *Factory) createQuestion(t *testing.T, text string, active bool) *model.Question {
	t.Helper()

	query := `
		CREATE question CONTENT {
			text: $text,
			active: $active,
			sort_order: 0,
			created_on: time::now()
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{"text": text, "active": active})
	if err != nil {
		t.Fatalf("fixtures: failed to create question: %v", err)
	}

	data := extractFirstResult(t, results)
	return &model.Question{
		ID:        getString(data, "id"),
		Text:      getString(data, "text"),
		Active:    getBool(data, "active"),
		CreatedOn: getTime(data, "created_on"),
	}
}

// Answer records a user's answer to a question
func (f *Factory) Answer(t *testing.T, user *model.User, question *model.Question, value int) {
	t.Helper()

	query := `
		CREATE answer CONTENT {
			user: type::record($user_id),
			question: type::record($question_id),
			value: $value,
			answered_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"user_id":     user.ID,
		"question_id": question.ID,
		"value":       value,
	}
	if _, err := f.db.Query(ctx(), query, vars); err != nil {
		t.Fatalf("fixtures: failed to create answer: %v", err)
	}
}

// AnswerAll answers every question with the same value
func (f *Factory) AnswerAll(t *testing.T, user *model.User, questions []*model.Question, value int) {
	t.Helper()
	for _, q := range questions {
		f.Answer(t, user, q, value)
	}
}

// ============================================================================
// Data Extraction Helpers
// ============================================================================

func extractFirstResult(t *testing.T, results []interface{}) map[string]interface{} {
	t.Helper()
	if len(results) == 0 {
		t.Fatal("fixtures: no results returned")
	}

	// Handle SurrealDB response wrapper
	resp, ok := results[0].(map[string]interface{})
	if !ok {
		t.Fatalf("fixtures: unexpected result type: %T", results[0])
	}

	result, ok := resp["result"]
	if !ok {
		t.Fatal("fixtures: no result in response")
	}

	// Handle array result
	if arr, ok := result.([]interface{}); ok {
		if len(arr) == 0 {
			t.Fatal("fixtures: empty result array")
		}
		data, ok := arr[0].(map[string]interface{})
		if !ok {
			t.Fatalf("fixtures: unexpected array item type: %T", arr[0])
		}
		return data
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("fixtures: unexpected result type: %T", result)
	}
	return data
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	// Record IDs come back as structs or maps
	if v := data[key]; v != nil {
		if m, ok := v.(map[string]interface{}); ok {
			if tb, ok := m["tb"].(string); ok {
				if id := m["id"]; id != nil {
					return fmt.Sprintf("%s:%v", tb, id)
				}
			}
		}
		// Convert "{table id}" to "table:id"
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
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(string); ok {
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	}
	return time.Time{}
}
