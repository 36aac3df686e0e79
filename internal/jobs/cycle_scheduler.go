package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

// CycleRunner runs and lists matching cycles
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger string) (*model.CycleResult, error)
	RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error)
}

// SchedulerConfig holds the calendar slot and polling cadence
type SchedulerConfig struct {
	Day           int // day of month, 1-28
	Hour          int // UTC
	Minute        int
	CheckInterval time.Duration // default 1 hour
	RunTimeout    time.Duration // default 30 minutes
}

// SchedulerStatus is a point-in-time view of the scheduler
type SchedulerStatus struct {
	Running     bool       `json:"running"`
	InFlight    bool       `json:"in_flight"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastCycleID string     `json:"last_cycle_id,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	NextDue     time.Time  `json:"next_due"`
}

// CycleScheduler runs a matching cycle once per month at a fixed UTC slot.
//
// The last committed scheduled cycle in the ledger is the baseline, so a
// restart neither repeats a cycle nor skips a slot it slept through, and
// several instances agree on whether the current slot has run.
type CycleScheduler struct {
	runner CycleRunner
	cfg    SchedulerConfig
	now    func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	inFlight    bool
	startedAt   time.Time
	lastRun     time.Time
	lastCycleID string
	lastErr     string
}

// NewCycleScheduler creates a new cycle scheduler
func NewCycleScheduler(runner CycleRunner, cfg SchedulerConfig) *CycleScheduler {
	if cfg.Day < 1 {
		cfg.Day = 1
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Hour
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &CycleScheduler{
		runner: runner,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *CycleScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.startedAt = s.now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	slog.Info("cycle scheduler started",
		"day", s.cfg.Day, "hour", s.cfg.Hour, "minute", s.cfg.Minute,
		"check_interval", s.cfg.CheckInterval)
}

// Stop gracefully stops the scheduler and waits for an in-flight run
func (s *CycleScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	slog.Info("cycle scheduler stopped")
}

// IsRunning returns whether the scheduler loop is running
func (s *CycleScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *CycleScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	s.checkAndRun()

	for {
		select {
		case <-ticker.C:
			s.checkAndRun()
		case <-s.stopCh:
			return
		}
	}
}

// checkAndRun runs a cycle when the latest slot has passed since the baseline
func (s *CycleScheduler) checkAndRun() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	baseline, err := s.baseline(ctx)
	if err != nil {
		slog.Error("failed to load last cycle", "error", err)
		return
	}

	now := s.now()
	slot := s.PreviousSlot(now)
	if !baseline.Before(slot) {
		return
	}

	slog.Info("matching cycle due", "slot", slot)
	if _, err := s.Trigger(ctx, model.TriggerSchedule); err != nil {
		if errors.Is(err, service.ErrConcurrentCycleConflict) {
			slog.Info("scheduled cycle skipped, another run is in flight")
			return
		}
		slog.Error("scheduled cycle failed", "error", err)
	}
}

// baseline is the later of the last local run and the last ledger cycle.
// With no cycle ever committed, the scheduler's own start time is used so
// a fresh deployment waits for the next slot.
func (s *CycleScheduler) baseline(ctx context.Context) (time.Time, error) {
	cycles, err := s.runner.RecentCycles(ctx, 1)
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cycles) > 0 && cycles[0].StartedAt.After(s.lastRun) {
		s.lastRun = cycles[0].StartedAt
		s.lastCycleID = cycles[0].ID
	}
	if s.lastRun.IsZero() {
		return s.startedAt, nil
	}
	return s.lastRun, nil
}

// Trigger runs one cycle now through the same path as the schedule.
// A run already in flight anywhere yields ErrConcurrentCycleConflict.
func (s *CycleScheduler) Trigger(ctx context.Context, trigger string) (*model.CycleResult, error) {
	s.mu.Lock()
	s.inFlight = true
	s.mu.Unlock()

	result, err := s.runner.RunCycle(ctx, trigger)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		if !errors.Is(err, service.ErrConcurrentCycleConflict) {
			s.lastErr = err.Error()
		}
		return nil, err
	}
	s.lastRun = result.Cycle.StartedAt
	s.lastCycleID = result.Cycle.ID
	s.lastErr = ""
	return result, nil
}

// Status reports the scheduler's state
func (s *CycleScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:     s.running,
		InFlight:    s.inFlight,
		LastCycleID: s.lastCycleID,
		LastError:   s.lastErr,
		NextDue:     s.NextSlot(s.now()),
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		status.LastRun = &last
	}
	return status
}

// NextSlot returns the first slot strictly after t
func (s *CycleScheduler) NextSlot(t time.Time) time.Time {
	t = t.UTC()
	slot := s.slotIn(t.Year(), t.Month())
	if slot.After(t) {
		return slot
	}
	return s.slotIn(t.Year(), t.Month()+1)
}

// PreviousSlot returns the latest slot at or before t
func (s *CycleScheduler) PreviousSlot(t time.Time) time.Time {
	t = t.UTC()
	slot := s.slotIn(t.Year(), t.Month())
	if !slot.After(t) {
		return slot
	}
	return s.slotIn(t.Year(), t.Month()-1)
}

// slotIn lets time.Date normalize month overflow in both directions
func (s *CycleScheduler) slotIn(year int, month time.Month) time.Time {
	return time.Date(year, month, s.cfg.Day, s.cfg.Hour, s.cfg.Minute, 0, 0, time.UTC)
}
