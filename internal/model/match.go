package model

import (
	"errors"
	"strconv"
	"time"
)

// AdHocCycleID tags matches created on demand rather than by a scheduled cycle.
const AdHocCycleID = "adhoc"

// ErrPairWithinWindow is returned by a ledger append that would record a pair
// already matched, in either direction, inside the exclusion window.
var ErrPairWithinWindow = errors.New("pair already matched within the exclusion window")

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

// MatchRecord is one immutable pairing in the ledger. The user is the person
// who receives the match; the enemy is who they were matched against.
type MatchRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EnemyID   string    `json:"enemy_id"`
	Score     int       `json:"match_score"`
	Overlap   int       `json:"overlap"`
	CycleID   string    `json:"cycle_id"`
	MatchedAt time.Time `json:"matched_at"`
}

// IsAdHoc reports whether the record came from an on-demand request.
func (m *MatchRecord) IsAdHoc() bool {
	return m.CycleID == AdHocCycleID
}

// MatchView is a MatchRecord joined with the enemy's public fields.
type MatchView struct {
	MatchRecord
	EnemyUsername string `json:"enemy_username"`
	EnemyEmail    string `json:"enemy_email"`
}

// MatchResponse is the API representation of a match
type MatchResponse struct {
	ID            string    `json:"id"`
	EnemyID       string    `json:"enemy_id"`
	EnemyUsername string    `json:"enemy_username"`
	EnemyEmail    string    `json:"enemy_email"`
	MatchScore    int       `json:"match_score"`
	CycleID       string    `json:"cycle_id"`
	MatchedAt     time.Time `json:"matched_at"`
}

// ToResponse converts the view to its API shape
func (v *MatchView) ToResponse() MatchResponse {
	return MatchResponse{
		ID:            v.ID,
		EnemyID:       v.EnemyID,
		EnemyUsername: v.EnemyUsername,
		EnemyEmail:    v.EnemyEmail,
		MatchScore:    v.Score,
		CycleID:       v.CycleID,
		MatchedAt:     v.MatchedAt,
	}
}

// CycleKind distinguishes scheduled cycles from ad hoc commits
type CycleKind string

const (
	CycleKindScheduled CycleKind = "scheduled"
	CycleKindAdHoc     CycleKind = "adhoc"
)

// Cycle groups the records produced by one batch run.
type Cycle struct {
	ID           string     `json:"id"`
	Kind         CycleKind  `json:"kind"`
	Trigger      string     `json:"trigger"` // schedule, admin, cli
	StartedAt    time.Time  `json:"started_at"`
	CommittedAt  *time.Time `json:"committed_at,omitempty"`
	MatchCount   int        `json:"match_count"`
	SkippedCount int        `json:"skipped_count"`
}

// Cycle triggers
const (
	TriggerSchedule = "schedule"
	TriggerAdmin    = "admin"
	TriggerCLI      = "cli"
)

// SkipReason explains why a user received no match in a cycle
type SkipReason string

const (
	SkipNoCandidate SkipReason = "no_candidate" // nobody passed eligibility
	SkipExhausted   SkipReason = "exhausted"    // candidates existed but were all taken
)

// SkippedUser is a population member left unmatched in a cycle
type SkippedUser struct {
	UserID string     `json:"user_id"`
	Reason SkipReason `json:"reason"`
}

// CycleResult summarizes a committed cycle
type CycleResult struct {
	Cycle   Cycle          `json:"cycle"`
	Matches []*MatchRecord `json:"matches"`
	Skipped []SkippedUser  `json:"skipped"`
}

// ExclusionWindow bounds the history consulted when excluding prior enemies.
// A zero Since with All set means every past match counts.
type ExclusionWindow struct {
	Since    time.Time
	All      bool
	Disabled bool
}

// Includes reports whether a match at t falls inside the window
func (w ExclusionWindow) Includes(t time.Time) bool {
	if w.Disabled {
		return false
	}
	if w.All {
		return true
	}
	return !t.Before(w.Since)
}

// History maps user ID to the set of enemies excluded for that user.
type History map[string]map[string]bool

// Add records a prior pairing in both directions.
func (h History) Add(a, b string) {
	if h[a] == nil {
		h[a] = make(map[string]bool)
	}
	if h[b] == nil {
		h[b] = make(map[string]bool)
	}
	h[a][b] = true
	h[b][a] = true
}

// Excludes reports whether candidate is a recent enemy of user
func (h History) Excludes(user, candidate string) bool {
	return h[user][candidate]
}

func fieldIndex(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]."
}
