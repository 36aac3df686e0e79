package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/service"
)

type mockRunner struct {
	mu       sync.Mutex
	runs     []string
	runErr   error
	cycles   []*model.Cycle
	listErr  error
	startsAt time.Time
}

func (m *mockRunner) RunCycle(_ context.Context, trigger string) (*model.CycleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runErr != nil {
		return nil, m.runErr
	}
	m.runs = append(m.runs, trigger)
	cycle := model.Cycle{ID: "cycle-" + trigger, Kind: model.CycleKindScheduled, Trigger: trigger, StartedAt: m.startsAt}
	m.cycles = append([]*model.Cycle{&cycle}, m.cycles...)
	return &model.CycleResult{Cycle: cycle}, nil
}

func (m *mockRunner) RecentCycles(_ context.Context, limit int) ([]*model.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.cycles) > limit {
		return m.cycles[:limit], nil
	}
	return m.cycles, nil
}

func (m *mockRunner) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func monthlyAt(day, hour int) SchedulerConfig {
	return SchedulerConfig{Day: day, Hour: hour, CheckInterval: time.Hour}
}

func newTestScheduler(runner *mockRunner, cfg SchedulerConfig, now time.Time) *CycleScheduler {
	s := NewCycleScheduler(runner, cfg)
	s.now = func() time.Time { return now }
	runner.startsAt = now
	return s
}

func TestSlots(t *testing.T) {
	t.Parallel()

	s := NewCycleScheduler(&mockRunner{}, monthlyAt(1, 9))

	tests := []struct {
		name     string
		at       time.Time
		previous time.Time
		next     time.Time
	}{
		{
			name:     "mid month",
			at:       time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
			previous: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "before slot on slot day",
			at:       time.Date(2026, 10, 1, 8, 59, 0, 0, time.UTC),
			previous: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "exactly at slot",
			at:       time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			previous: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "year rollover",
			at:       time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
			previous: time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2027, 1, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "january looks back to december",
			at:       time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			previous: time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2027, 1, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "non-UTC input",
			at:       time.Date(2026, 10, 1, 5, 0, 0, 0, time.FixedZone("EDT", -4*3600)),
			previous: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
			next:     time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.previous, s.PreviousSlot(tt.at))
			assert.Equal(t, tt.next, s.NextSlot(tt.at))
		})
	}
}

func TestCheckAndRun_RunsWhenSlotPassedSinceLastCycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	runner := &mockRunner{cycles: []*model.Cycle{
		{ID: "september", StartedAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
	}}
	s := newTestScheduler(runner, monthlyAt(1, 9), now)

	s.checkAndRun()

	assert.Equal(t, []string{model.TriggerSchedule}, runner.runs)
	status := s.Status()
	assert.Equal(t, "cycle-schedule", status.LastCycleID)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, now, *status.LastRun)
}

func TestCheckAndRun_SkipsWhenSlotAlreadyRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	runner := &mockRunner{cycles: []*model.Cycle{
		{ID: "october", StartedAt: time.Date(2026, 10, 1, 9, 0, 5, 0, time.UTC)},
	}}
	s := newTestScheduler(runner, monthlyAt(1, 9), now)

	s.checkAndRun()
	s.checkAndRun()

	assert.Zero(t, runner.runCount())
	assert.Equal(t, "october", s.Status().LastCycleID)
}

func TestCheckAndRun_CatchesUpMissedSlot(t *testing.T) {
	t.Parallel()

	// Down over the October slot; the last cycle is from August.
	now := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)
	runner := &mockRunner{cycles: []*model.Cycle{
		{ID: "august", StartedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)},
	}}
	s := newTestScheduler(runner, monthlyAt(1, 9), now)

	s.checkAndRun()
	s.checkAndRun()

	assert.Equal(t, 1, runner.runCount())
}

func TestCheckAndRun_FreshDeploymentWaitsForNextSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	runner := &mockRunner{}
	s := newTestScheduler(runner, monthlyAt(1, 9), now)
	s.startedAt = now

	s.checkAndRun()
	assert.Zero(t, runner.runCount())

	later := time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return later }
	s.checkAndRun()
	assert.Equal(t, 1, runner.runCount())
}

func TestCheckAndRun_HistoryErrorSkipsRun(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{listErr: errors.New("db down")}
	s := newTestScheduler(runner, monthlyAt(1, 9), time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))

	s.checkAndRun()
	assert.Zero(t, runner.runCount())
}

func TestTrigger_ConflictLeavesStatus(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{runErr: service.ErrConcurrentCycleConflict}
	s := newTestScheduler(runner, monthlyAt(1, 9), time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))

	_, err := s.Trigger(context.Background(), model.TriggerAdmin)
	assert.ErrorIs(t, err, service.ErrConcurrentCycleConflict)

	status := s.Status()
	assert.Nil(t, status.LastRun)
	assert.Empty(t, status.LastError)
	assert.False(t, status.InFlight)
}

func TestTrigger_FailureRecordsError(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{runErr: errors.New("ledger unavailable")}
	s := newTestScheduler(runner, monthlyAt(1, 9), time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))

	_, err := s.Trigger(context.Background(), model.TriggerAdmin)
	require.Error(t, err)
	assert.Equal(t, "ledger unavailable", s.Status().LastError)

	runner.runErr = nil
	result, err := s.Trigger(context.Background(), model.TriggerAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.TriggerAdmin, result.Cycle.Trigger)
	assert.Empty(t, s.Status().LastError)
}

func TestStatus_NextDue(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&mockRunner{}, SchedulerConfig{Day: 15, Hour: 18, Minute: 30}, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 11, 15, 18, 30, 0, 0, time.UTC), s.Status().NextDue)
}

func TestStartStop_Idempotent(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{}
	s := NewCycleScheduler(runner, SchedulerConfig{Day: 1, CheckInterval: time.Hour})

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}
