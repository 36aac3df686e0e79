// Package jobs runs background work outside HTTP request handling.
//
// CycleScheduler runs the monthly matching cycle. It polls on
// CheckInterval and fires when the most recent calendar slot (Day, Hour,
// Minute in UTC) is later than the last committed scheduled cycle:
//
//	sched := jobs.NewCycleScheduler(matchService, jobs.SchedulerConfig{
//	    Day: 1, Hour: 9, CheckInterval: time.Hour,
//	})
//	sched.Start()
//	defer sched.Stop()
//
// Admin and CLI triggers call Trigger, which takes the same path through
// MatchService.RunCycle and the cycle lock.
//
// Jobs log errors but don't crash the application.
package jobs
