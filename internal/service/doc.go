// Package service implements the business logic layer for the Nemesis API.
//
// MatchService owns enemy matching. FindEnemy pairs one user on demand and
// RunCycle pairs the whole active population in one batch. Both read a
// consistent answer snapshot, score candidates with Score, filter them with
// Eligible and append the result to the ledger in a single write.
//
// # Service Pattern
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Services define the repository interfaces they need, so tests use in-memory fakes
//   - Errors are returned as sentinel errors defined in errors.go
//
// # Scoring
//
// Two users who answered the same questions score
//
//	round(100 * sum(|a-b|) / (9 * overlap))
//
// so 100 means opposite extremes everywhere and 0 means full agreement.
//
// # Example Usage
//
//	svc, err := NewMatchService(MatchServiceConfig{
//	    AnswerRepo: answerRepo,
//	    UserRepo:   userRepo,
//	    Ledger:     ledgerRepo,
//	    Locker:     lock.NewMemoryLocker(),
//	    Policy:     model.DefaultMatchingPolicy(),
//	})
//	view, err := svc.FindEnemy(ctx, userID)
//	if errors.Is(err, ErrNoEligibleCandidate) {
//	    // nobody left to disagree with
//	}
package service
