package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/model"
)

const (
	matchTable = "match_record"
	cycleTable = "match_cycle"
)

// LedgerRepository is the append-only store of match records and cycles.
// Records are never updated or deleted.
type LedgerRepository struct {
	db  database.Database
	now func() time.Time
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db database.Database) *LedgerRepository {
	return &LedgerRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// pairGuardMarker is the THROW message that identifies a window violation
// among other transaction failures.
const pairGuardMarker = "nemesis: pair within exclusion window"

// Append writes the cycle row (nil for on-demand matches) and every record
// in one transaction. Records without an ID get a time-ordered one.
//
// Unless the window is disabled, the transaction first checks every pair
// against the ledger and aborts with model.ErrPairWithinWindow if either
// direction was already recorded inside the window. The checks run before
// the creates, so mirrored records in the same append do not trip them.
func (r *LedgerRepository) Append(ctx context.Context, cycle *model.Cycle, records []*model.MatchRecord, window model.ExclusionWindow) error {
	batch := database.NewAtomicBatch()
	r.addPairGuards(batch, records, window)

	if cycle != nil {
		committed := r.now()
		batch.Add(`
			CREATE type::thing('match_cycle', $cycle_id) CONTENT {
				kind: $kind,
				trigger: $trigger,
				started_at: <datetime>$started_at,
				committed_at: <datetime>$committed_at,
				match_count: $match_count,
				skipped_count: $skipped_count
			}
		`, map[string]interface{}{
			"cycle_id":      cycle.ID,
			"kind":          string(cycle.Kind),
			"trigger":       cycle.Trigger,
			"started_at":    formatTime(cycle.StartedAt),
			"committed_at":  formatTime(committed),
			"match_count":   cycle.MatchCount,
			"skipped_count": cycle.SkippedCount,
		})
		defer func() { cycle.CommittedAt = &committed }()
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		key := recordKey(rec.ID, matchTable)
		if key == "" {
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate match id: %w", err)
			}
			key = id.String()
		}
		ids[i] = matchTable + ":" + key

		batch.Add(`
			CREATE type::thing('match_record', $key) CONTENT {
				user: type::record($user_id),
				enemy: type::record($enemy_id),
				score: $score,
				overlap: $overlap,
				cycle_id: $cycle_id,
				matched_at: <datetime>$matched_at
			}
		`, map[string]interface{}{
			"key":        key,
			"user_id":    rec.UserID,
			"enemy_id":   rec.EnemyID,
			"score":      rec.Score,
			"overlap":    rec.Overlap,
			"cycle_id":   rec.CycleID,
			"matched_at": formatTime(rec.MatchedAt),
		})
	}

	if batch.Len() == 0 {
		return nil
	}
	if err := batch.Execute(ctx, r.db); err != nil {
		if strings.Contains(err.Error(), pairGuardMarker) {
			return fmt.Errorf("%w: %w", model.ErrPairWithinWindow, err)
		}
		return err
	}

	for i, rec := range records {
		rec.ID = ids[i]
	}
	return nil
}

func (r *LedgerRepository) addPairGuards(batch *database.AtomicBatch, records []*model.MatchRecord, window model.ExclusionWindow) {
	if window.Disabled {
		return
	}

	query := `
		IF array::len((
			SELECT id FROM match_record
			WHERE ((user = type::record($user_id) AND enemy = type::record($enemy_id))
				OR (user = type::record($enemy_id) AND enemy = type::record($user_id)))%s
			LIMIT 1
		)) > 0 {
			THROW $marker + ": " + $user_id + " / " + $enemy_id;
		}
	`
	since := ""
	if !window.All {
		since = "\n\t\t\t\tAND matched_at >= <datetime>$since"
	}
	query = fmt.Sprintf(query, since)

	seen := make(map[[2]string]bool, len(records))
	for _, rec := range records {
		pair := [2]string{rec.UserID, rec.EnemyID}
		if pair[1] < pair[0] {
			pair[0], pair[1] = pair[1], pair[0]
		}
		if seen[pair] {
			continue
		}
		seen[pair] = true

		vars := map[string]interface{}{
			"user_id":  rec.UserID,
			"enemy_id": rec.EnemyID,
			"marker":   pairGuardMarker,
		}
		if !window.All {
			vars["since"] = formatTime(window.Since)
		}
		batch.Add(query, vars)
	}
}

// HistoryFor returns everyone the user was matched with, in either
// direction, inside the window.
func (r *LedgerRepository) HistoryFor(ctx context.Context, userID string, window model.ExclusionWindow) ([]string, error) {
	if window.Disabled {
		return nil, nil
	}

	query := `
		SELECT user, enemy FROM match_record
		WHERE (user = type::record($user_id) OR enemy = type::record($user_id))
	`
	vars := map[string]interface{}{"user_id": userID}
	if !window.All {
		query += ` AND matched_at >= <datetime>$since`
		vars["since"] = formatTime(window.Since)
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var enemies []string
	for _, row := range extractQueryResults(result) {
		other := convertSurrealID(row["enemy"])
		if other == userID {
			other = convertSurrealID(row["user"])
		}
		if other != "" && other != userID && !seen[other] {
			seen[other] = true
			enemies = append(enemies, other)
		}
	}
	return enemies, nil
}

// HistorySnapshot loads the window's pairings for a whole population in one read.
func (r *LedgerRepository) HistorySnapshot(ctx context.Context, userIDs []string, window model.ExclusionWindow) (model.History, error) {
	history := model.History{}
	if window.Disabled || len(userIDs) == 0 {
		return history, nil
	}

	query := `
		SELECT user, enemy FROM match_record
		WHERE (type::string(user) INSIDE $user_ids OR type::string(enemy) INSIDE $user_ids)
	`
	vars := map[string]interface{}{"user_ids": userIDs}
	if !window.All {
		query += ` AND matched_at >= <datetime>$since`
		vars["since"] = formatTime(window.Since)
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	population := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		population[id] = true
	}
	for _, row := range extractQueryResults(result) {
		a, b := convertSurrealID(row["user"]), convertSurrealID(row["enemy"])
		if population[a] || population[b] {
			history.Add(a, b)
		}
	}
	return history, nil
}

// MatchesFor returns the user's matches, most recent first. A pair stored
// once is reported from the caller's side, so the enemy is always the other user.
func (r *LedgerRepository) MatchesFor(ctx context.Context, userID string, limit int) ([]*model.MatchView, error) {
	query := `
		SELECT *,
			user.username AS user_username, user.email AS user_email,
			enemy.username AS enemy_username, enemy.email AS enemy_email
		FROM match_record
		WHERE user = type::record($user_id) OR enemy = type::record($user_id)
		ORDER BY matched_at DESC
		LIMIT $limit
	`
	// Mirrored pairs come back twice; over-fetch so the limit survives dedup.
	vars := map[string]interface{}{"user_id": userID, "limit": limit * 2}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	views := orientMatches(userID, extractQueryResults(result))
	if len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// LatestFor returns the user's most recent match, or nil
func (r *LedgerRepository) LatestFor(ctx context.Context, userID string) (*model.MatchView, error) {
	views, err := r.MatchesFor(ctx, userID, 1)
	if err != nil || len(views) == 0 {
		return nil, err
	}
	return views[0], nil
}

// RecentCycles returns the last scheduled cycles, newest first
func (r *LedgerRepository) RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error) {
	query := `
		SELECT * FROM match_cycle
		WHERE kind = $kind
		ORDER BY started_at DESC
		LIMIT $limit
	`
	vars := map[string]interface{}{"kind": string(model.CycleKindScheduled), "limit": limit}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryResults(result)
	cycles := make([]*model.Cycle, 0, len(rows))
	for _, row := range rows {
		cycles = append(cycles, parseCycle(row))
	}
	return cycles, nil
}

// GetCycle returns a committed cycle, or nil if missing
func (r *LedgerRepository) GetCycle(ctx context.Context, cycleID string) (*model.Cycle, error) {
	query := `SELECT * FROM type::thing('match_cycle', $cycle_id)`
	vars := map[string]interface{}{"cycle_id": recordKey(cycleID, cycleTable)}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := extractQueryResults(result)
	if len(rows) == 0 {
		return nil, nil
	}
	return parseCycle(rows[0]), nil
}

// orientMatches turns raw rows into views from userID's side. When both
// directions of a pair exist, the record owned by userID wins.
func orientMatches(userID string, rows []map[string]interface{}) []*model.MatchView {
	type pairKey struct {
		cycle string
		other string
		at    time.Time
	}

	owned := make(map[pairKey]bool)
	var views []*model.MatchView
	var reversed []*model.MatchView

	for _, row := range rows {
		rec := model.MatchRecord{
			ID:        convertSurrealID(row["id"]),
			UserID:    convertSurrealID(row["user"]),
			EnemyID:   convertSurrealID(row["enemy"]),
			Score:     getInt(row, "score"),
			Overlap:   getInt(row, "overlap"),
			CycleID:   getString(row, "cycle_id"),
			MatchedAt: getTimeValue(row, "matched_at"),
		}

		if rec.UserID == userID {
			owned[pairKey{rec.CycleID, rec.EnemyID, rec.MatchedAt}] = true
			views = append(views, &model.MatchView{
				MatchRecord:   rec,
				EnemyUsername: getString(row, "enemy_username"),
				EnemyEmail:    getString(row, "enemy_email"),
			})
			continue
		}

		rec.UserID, rec.EnemyID = rec.EnemyID, rec.UserID
		reversed = append(reversed, &model.MatchView{
			MatchRecord:   rec,
			EnemyUsername: getString(row, "user_username"),
			EnemyEmail:    getString(row, "user_email"),
		})
	}

	for _, v := range reversed {
		if !owned[pairKey{v.CycleID, v.EnemyID, v.MatchedAt}] {
			views = append(views, v)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].MatchedAt.Equal(views[j].MatchedAt) {
			return views[i].MatchedAt.After(views[j].MatchedAt)
		}
		return views[i].ID > views[j].ID
	})
	return views
}

func parseCycle(row map[string]interface{}) *model.Cycle {
	return &model.Cycle{
		ID:           recordKey(convertSurrealID(row["id"]), cycleTable),
		Kind:         model.CycleKind(getString(row, "kind")),
		Trigger:      getString(row, "trigger"),
		StartedAt:    getTimeValue(row, "started_at"),
		CommittedAt:  getTime(row, "committed_at"),
		MatchCount:   getInt(row, "match_count"),
		SkippedCount: getInt(row, "skipped_count"),
	}
}
