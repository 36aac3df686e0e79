package repository

import (
	"context"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

// UserRepository reads user accounts
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID, or nil if missing
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]interface{}{"id": id}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryResults(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseUser(rows[0]), nil
}

// GetMany retrieves several users in one read, keyed by ID. Missing IDs are absent.
func (r *UserRepository) GetMany(ctx context.Context, ids []string) (map[string]*model.User, error) {
	users := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := `SELECT * FROM user WHERE type::string(id) INSIDE $ids`
	vars := map[string]interface{}{"ids": uniqueStrings(ids)}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	for _, row := range extractQueryResults(result) {
		u := parseUser(row)
		users[u.ID] = u
	}
	return users, nil
}

func parseUser(data map[string]interface{}) *model.User {
	user := &model.User{
		ID:        convertSurrealID(data["id"]),
		Email:     getString(data, "email"),
		Username:  getString(data, "username"),
		Role:      model.UserRole(getString(data, "role")),
		Active:    true,
		CreatedOn: getTimeValue(data, "created_on"),
	}
	if user.Role == "" {
		user.Role = model.UserRoleUser
	}
	if _, ok := data["active"]; ok {
		user.Active = getBool(data, "active")
	}
	return user
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
