package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forgo/nemesis/api/internal/lock"
	"github.com/forgo/nemesis/api/internal/metrics"
	"github.com/forgo/nemesis/api/internal/model"
)

// AnswerRepository is the engine's read-only view of survey answers.
type AnswerRepository interface {
	// Snapshot returns the answers of the given users from a single read.
	Snapshot(ctx context.Context, userIDs []string) (model.AnswerSnapshot, error)
	// ActivePopulation returns active users with at least one answer.
	ActivePopulation(ctx context.Context) ([]string, error)
}

// UserRepository resolves user references for responses and notifications.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetMany(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// MatchLedger is the append-only store of match records.
type MatchLedger interface {
	// Append writes the cycle row (nil for ad hoc) and every record atomically.
	// It fails with model.ErrPairWithinWindow, committing nothing, when a
	// pair was already recorded inside the window.
	Append(ctx context.Context, cycle *model.Cycle, records []*model.MatchRecord, window model.ExclusionWindow) error
	HistoryFor(ctx context.Context, userID string, window model.ExclusionWindow) ([]string, error)
	HistorySnapshot(ctx context.Context, userIDs []string, window model.ExclusionWindow) (model.History, error)
	MatchesFor(ctx context.Context, userID string, limit int) ([]*model.MatchView, error)
	LatestFor(ctx context.Context, userID string) (*model.MatchView, error)
	RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error)
	GetCycle(ctx context.Context, cycleID string) (*model.Cycle, error)
}

// Default list size for match history
const (
	DefaultMatchLimit = 50
	MaxMatchLimit     = 200
)

// maxAppendAttempts bounds how often a selection is redone after the ledger
// rejects a pair that was committed concurrently.
const maxAppendAttempts = 3

// MatchService runs on-demand and batch enemy matching.
type MatchService struct {
	answerRepo AnswerRepository
	userRepo   UserRepository
	ledger     MatchLedger
	locker     lock.Locker
	notifier   Notifier
	selector   *MatchSelector

	cycleLockTTL time.Duration
	userLockTTL  time.Duration
	now          func() time.Time
	newCycleID   func() string

	// cycleMu keeps a second cycle in this process from reaching the
	// shared locker at all.
	cycleMu sync.Mutex
}

// MatchServiceConfig holds configuration for the match service
type MatchServiceConfig struct {
	AnswerRepo AnswerRepository
	UserRepo   UserRepository
	Ledger     MatchLedger
	Locker     lock.Locker // defaults to an in-process locker
	Notifier   Notifier    // defaults to a no-op
	Policy     model.MatchingPolicy

	CycleLockTTL time.Duration // default 1 hour
	UserLockTTL  time.Duration // default 30 seconds

	Now        func() time.Time
	NewCycleID func() string
}

// NewMatchService creates a new match service
func NewMatchService(cfg MatchServiceConfig) (*MatchService, error) {
	selector, err := NewMatchSelector(cfg.Policy)
	if err != nil {
		return nil, err
	}

	s := &MatchService{
		answerRepo:   cfg.AnswerRepo,
		userRepo:     cfg.UserRepo,
		ledger:       cfg.Ledger,
		locker:       cfg.Locker,
		notifier:     cfg.Notifier,
		selector:     selector,
		cycleLockTTL: cfg.CycleLockTTL,
		userLockTTL:  cfg.UserLockTTL,
		now:          cfg.Now,
		newCycleID:   cfg.NewCycleID,
	}

	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.cycleLockTTL == 0 {
		s.cycleLockTTL = time.Hour
	}
	if s.userLockTTL == 0 {
		s.userLockTTL = 30 * time.Second
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newCycleID == nil {
		s.newCycleID = newCycleID
	}
	return s, nil
}

// Policy returns the active matching policy
func (s *MatchService) Policy() model.MatchingPolicy {
	return s.selector.Policy()
}

// FindEnemy matches one user right now and commits the record.
// Requests for the same user are serialized; different users run in parallel
// and never wait on a batch cycle.
func (s *MatchService) FindEnemy(ctx context.Context, userID string) (*model.MatchView, error) {
	view, err := s.findEnemy(ctx, userID)
	switch {
	case err == nil:
		metrics.FindEnemyRequests.WithLabelValues(metrics.ResultSuccess).Inc()
	case errors.Is(err, ErrNoEligibleCandidate):
		metrics.FindEnemyRequests.WithLabelValues(metrics.ResultNoCandidate).Inc()
	default:
		metrics.FindEnemyRequests.WithLabelValues(metrics.ResultError).Inc()
	}
	return view, err
}

func (s *MatchService) findEnemy(ctx context.Context, userID string) (*model.MatchView, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	unlock, err := s.locker.Lock(ctx, lock.UserKey(userID), s.userLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire user lock: %w", err)
	}
	defer unlock()

	window, err := s.exclusionWindow(ctx)
	if err != nil {
		return nil, err
	}

	var record *model.MatchRecord
	for attempt := 1; ; attempt++ {
		record, err = s.selectForUser(ctx, userID, window)
		if err != nil {
			return nil, err
		}

		err = s.ledger.Append(ctx, nil, []*model.MatchRecord{record}, window)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrPairAlreadyMatched) {
			return nil, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
		}
		metrics.PairConflicts.WithLabelValues(string(model.CycleKindAdHoc)).Inc()
		if attempt == maxAppendAttempts {
			return nil, err
		}
		slog.Info("enemy was matched concurrently, selecting again",
			"user_id", userID, "enemy_id", record.EnemyID, "attempt", attempt)
	}
	metrics.MatchesCreated.WithLabelValues(string(model.CycleKindAdHoc)).Inc()

	enemy, err := s.userRepo.GetByID(ctx, record.EnemyID)
	if err != nil || enemy == nil {
		// The record is committed; an unreadable enemy only degrades the response.
		slog.Warn("matched enemy could not be loaded",
			"user_id", userID, "enemy_id", record.EnemyID, "error", err)
		enemy = &model.User{ID: record.EnemyID}
	}

	s.notify(ctx,
		[]matchNotice{{userID: user.ID, enemyID: enemy.ID, record: record}},
		map[string]*model.User{user.ID: user, enemy.ID: enemy})

	return &model.MatchView{
		MatchRecord:   *record,
		EnemyUsername: enemy.Username,
		EnemyEmail:    enemy.Email,
	}, nil
}

// selectForUser reads the population, answers and the user's history, then
// picks the best enemy.
func (s *MatchService) selectForUser(ctx context.Context, userID string, window model.ExclusionWindow) (*model.MatchRecord, error) {
	population, err := s.answerRepo.ActivePopulation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load population: %w", err)
	}
	population = appendIfMissing(population, userID)

	var (
		answers model.AnswerSnapshot
		enemies []string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		answers, err = s.answerRepo.Snapshot(gCtx, population)
		if err != nil {
			return fmt.Errorf("failed to snapshot answers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		enemies, err = s.ledger.HistoryFor(gCtx, userID, window)
		if err != nil {
			return fmt.Errorf("failed to load match history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	history := model.History{}
	for _, enemyID := range enemies {
		history.Add(userID, enemyID)
	}

	return s.selector.SelectForUser(userID, SelectionInput{
		CycleID:    model.AdHocCycleID,
		At:         s.now(),
		Population: population,
		Answers:    answers,
		History:    history,
	})
}

// RunCycle runs one population-wide matching pass.
//
// At most one cycle runs at a time; a second call while one is in flight
// returns ErrConcurrentCycleConflict at once. Answers and history are read
// once at the start, selection runs on that snapshot, and every record is
// committed in a single ledger append. If an on-demand match commits one of
// the selected pairs in the meantime, the append is rejected and selection
// runs again on fresh reads. Any failure commits nothing, so the whole cycle
// can simply be retried.
func (s *MatchService) RunCycle(ctx context.Context, trigger string) (*model.CycleResult, error) {
	started := time.Now()

	if !s.cycleMu.TryLock() {
		metrics.ObserveCycle(metrics.ResultConflict, trigger, started)
		return nil, ErrConcurrentCycleConflict
	}
	defer s.cycleMu.Unlock()

	unlock, err := s.locker.TryLock(ctx, lock.Key("cycle"), s.cycleLockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			metrics.ObserveCycle(metrics.ResultConflict, trigger, started)
			return nil, ErrConcurrentCycleConflict
		}
		metrics.ObserveCycle(metrics.ResultError, trigger, started)
		return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}

	result, err := s.runCycleLocked(ctx, trigger)
	unlock()
	if err != nil {
		metrics.ObserveCycle(metrics.ResultError, trigger, started)
		return nil, err
	}
	metrics.ObserveCycle(metrics.ResultSuccess, trigger, started)

	s.notifyCycle(ctx, result.Matches)
	return result, nil
}

func (s *MatchService) runCycleLocked(ctx context.Context, trigger string) (*model.CycleResult, error) {
	cycle := &model.Cycle{
		ID:        s.newCycleID(),
		Kind:      model.CycleKindScheduled,
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	log := slog.With("cycle_id", cycle.ID, "trigger", trigger)
	log.Info("matching cycle started")

	window, err := s.exclusionWindow(ctx)
	if err != nil {
		return nil, err
	}

	var (
		population []string
		selection  *CycleSelection
	)
	for attempt := 1; ; attempt++ {
		population, selection, err = s.selectCycle(ctx, cycle, window)
		if err != nil {
			return nil, err
		}
		cycle.MatchCount = len(selection.Records)
		cycle.SkippedCount = len(selection.Skipped)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err = s.ledger.Append(ctx, cycle, selection.Records, window)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrPairAlreadyMatched) {
			return nil, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
		}
		metrics.PairConflicts.WithLabelValues(string(model.CycleKindScheduled)).Inc()
		if attempt == maxAppendAttempts {
			return nil, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
		}
		log.Warn("a selected pair was matched on demand meanwhile, selecting again", "attempt", attempt)
	}

	metrics.CandidateEdges.Observe(float64(selection.Edges))
	for _, skipped := range selection.Skipped {
		log.Info("user skipped this cycle", "user_id", skipped.UserID, "reason", skipped.Reason)
		metrics.UsersSkipped.WithLabelValues(string(skipped.Reason)).Inc()
	}
	metrics.MatchesCreated.WithLabelValues(string(model.CycleKindScheduled)).Add(float64(len(selection.Records)))

	log.Info("matching cycle committed",
		"population", len(population),
		"matches", cycle.MatchCount,
		"skipped", cycle.SkippedCount,
		"edges", selection.Edges,
	)

	return &model.CycleResult{
		Cycle:   *cycle,
		Matches: selection.Records,
		Skipped: selection.Skipped,
	}, nil
}

// selectCycle takes the population snapshot and runs batch selection on it.
func (s *MatchService) selectCycle(ctx context.Context, cycle *model.Cycle, window model.ExclusionWindow) ([]string, *CycleSelection, error) {
	population, err := s.answerRepo.ActivePopulation(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load population: %w", err)
	}

	var (
		answers model.AnswerSnapshot
		history model.History
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		answers, err = s.answerRepo.Snapshot(gCtx, population)
		if err != nil {
			return fmt.Errorf("failed to snapshot answers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = s.ledger.HistorySnapshot(gCtx, population, window)
		if err != nil {
			return fmt.Errorf("failed to load match history: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	selection := s.selector.SelectForCycle(SelectionInput{
		CycleID:    cycle.ID,
		At:         cycle.StartedAt,
		Population: population,
		Answers:    answers,
		History:    history,
	})
	return population, selection, nil
}

// GetMatches returns a user's matches, most recent first.
func (s *MatchService) GetMatches(ctx context.Context, userID string, limit int) ([]*model.MatchView, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	if limit > MaxMatchLimit {
		limit = MaxMatchLimit
	}
	return s.ledger.MatchesFor(ctx, userID, limit)
}

// GetLatestMatch returns the user's most recent match
func (s *MatchService) GetLatestMatch(ctx context.Context, userID string) (*model.MatchView, error) {
	view, err := s.ledger.LatestFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrMatchNotFound
	}
	return view, nil
}

// RecentCycles lists the most recent committed cycles
func (s *MatchService) RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error) {
	if limit <= 0 || limit > MaxMatchLimit {
		limit = DefaultMatchLimit
	}
	return s.ledger.RecentCycles(ctx, limit)
}

// GetCycle returns one committed cycle
func (s *MatchService) GetCycle(ctx context.Context, cycleID string) (*model.Cycle, error) {
	cycle, err := s.ledger.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, ErrCycleNotFound
	}
	return cycle, nil
}

// exclusionWindow derives the history window from the policy and the ledger.
// N > 0 covers the last N scheduled cycles (all history until N exist),
// N == 0 disables exclusion, and N < 0 excludes every past enemy.
func (s *MatchService) exclusionWindow(ctx context.Context) (model.ExclusionWindow, error) {
	n := s.selector.Policy().ExclusionCycles
	switch {
	case n == 0:
		return model.ExclusionWindow{Disabled: true}, nil
	case n < 0:
		return model.ExclusionWindow{All: true}, nil
	}

	cycles, err := s.ledger.RecentCycles(ctx, n)
	if err != nil {
		return model.ExclusionWindow{}, fmt.Errorf("failed to load recent cycles: %w", err)
	}
	if len(cycles) < n {
		return model.ExclusionWindow{All: true}, nil
	}
	return model.ExclusionWindow{Since: cycles[n-1].StartedAt}, nil
}

// notifyCycle resolves every participant once and notifies in bulk. A pair
// stored as a single record still tells both users about each other.
func (s *MatchService) notifyCycle(ctx context.Context, records []*model.MatchRecord) {
	if len(records) == 0 {
		return
	}

	ids := make([]string, 0, len(records)*2)
	for _, r := range records {
		ids = append(ids, r.UserID, r.EnemyID)
	}
	users, err := s.userRepo.GetMany(ctx, ids)
	if err != nil {
		slog.Error("failed to load users for notifications", "error", err)
		metrics.Notifications.WithLabelValues(metrics.ResultError).Add(float64(len(records)))
		return
	}

	policy := s.selector.Policy()
	bothSides := policy.Mode == model.SelectionModePairs && !policy.MirrorPairs

	notices := make([]matchNotice, 0, len(records)*2)
	for _, r := range records {
		notices = append(notices, matchNotice{userID: r.UserID, enemyID: r.EnemyID, record: r})
		if bothSides {
			notices = append(notices, matchNotice{userID: r.EnemyID, enemyID: r.UserID, record: r})
		}
	}
	s.notify(ctx, notices, users)
}

// matchNotice tells userID that enemyID is their match
type matchNotice struct {
	userID  string
	enemyID string
	record  *model.MatchRecord
}

// notify sends one notification per notice. Failures are logged and
// counted; the records stay committed.
func (s *MatchService) notify(ctx context.Context, notices []matchNotice, users map[string]*model.User) {
	// Notifications outlive the request that committed the matches.
	ctx = context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, n := range notices {
		user, enemy := users[n.userID], users[n.enemyID]
		if user == nil || enemy == nil {
			slog.Warn("skipping notification for unknown user",
				"user_id", n.userID, "enemy_id", n.enemyID)
			metrics.Notifications.WithLabelValues(metrics.ResultSkipped).Inc()
			continue
		}
		g.Go(func() error {
			if err := s.notifier.MatchCreated(ctx, user, enemy, n.record); err != nil {
				slog.Warn("match notification failed",
					"user_id", user.ID, "match_id", n.record.ID, "error", err)
				metrics.Notifications.WithLabelValues(metrics.ResultError).Inc()
				return nil
			}
			metrics.Notifications.WithLabelValues(metrics.ResultSuccess).Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// newCycleID returns a time-ordered identifier for a scheduled cycle.
func newCycleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func appendIfMissing(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
