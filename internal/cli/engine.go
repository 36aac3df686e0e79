package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgo/nemesis/api/internal/config"
	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/lock"
	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/internal/repository"
	"github.com/forgo/nemesis/api/internal/service"
)

// MatchEngine is the matching surface the CLI drives
type MatchEngine interface {
	RunCycle(ctx context.Context, trigger string) (*model.CycleResult, error)
	RecentCycles(ctx context.Context, limit int) ([]*model.Cycle, error)
	FindEnemy(ctx context.Context, userID string) (*model.MatchView, error)
	GetMatches(ctx context.Context, userID string, limit int) ([]*model.MatchView, error)
}

// QuestionSeeder fills an empty question catalog
type QuestionSeeder interface {
	SeedQuestions(ctx context.Context, texts []string) (int, error)
}

// PopulationSeeder creates and removes mock users for development
type PopulationSeeder interface {
	SeedPopulation(ctx context.Context, req service.SeedPopulationRequest) (*service.SeedResult, error)
	Cleanup(ctx context.Context, prefix string) (*service.CleanupResult, error)
}

// PairScorer scores two users against each other
type PairScorer interface {
	ScorePair(ctx context.Context, userAID, userBID string) (*service.PairScore, error)
}

// Engine is everything a command may need, opened once per invocation
type Engine struct {
	Matches   MatchEngine
	Questions QuestionSeeder
	Scorer    PairScorer
	Seeder    PopulationSeeder

	// Migrate applies the .surql files in dir and returns how many ran
	Migrate func(ctx context.Context, dir string) (int, error)
	// MigrationsDir is the configured default for the migrate command
	MigrationsDir string
	Close         func() error
}

// EngineOpener builds an Engine
type EngineOpener func(ctx context.Context) (*Engine, error)

// OpenFromEnv connects to the configured database and wires the services the
// way the server does, including the shared Redis locker when configured, so
// a CLI cycle and a server cycle exclude each other.
func OpenFromEnv(ctx context.Context) (*Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db := database.NewSurrealDB(cfg.Database.ClientConfig())
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	slog.Debug("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	closers := []func() error{db.Close}
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Enabled() {
		redisLocker, err := lock.NewRedisLocker(cfg.Redis.LockConfig())
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		closers = append(closers, redisLocker.Close)
		locker = redisLocker
	}

	var notifier service.Notifier = service.LogNotifier{}
	if cfg.Notify.SMTPEnabled() {
		notifier = service.NewSMTPNotifier(service.SMTPNotifierConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUser,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.From,
			Timeout:  cfg.Notify.Timeout,
		})
	}

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	matchService, err := service.NewMatchService(service.MatchServiceConfig{
		AnswerRepo: answerRepo,
		UserRepo:   userRepo,
		Ledger:     ledgerRepo,
		Locker:     locker,
		Notifier:   notifier,
		Policy:     cfg.Matching.Policy,
	})
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	return &Engine{
		Matches: matchService,
		Questions: service.NewQuestionnaireService(service.QuestionnaireServiceConfig{
			QuestionRepo: questionRepo,
			AnswerStore:  answerRepo,
		}),
		Scorer: service.NewCompatibilityService(service.CompatibilityServiceConfig{
			AnswerRepo: answerRepo,
		}),
		Seeder: service.NewSeederService(db),
		Migrate: func(ctx context.Context, dir string) (int, error) {
			migrations, err := database.LoadMigrations(dir)
			if err != nil {
				return 0, err
			}
			if err := database.Migrate(ctx, db, migrations); err != nil {
				return 0, err
			}
			return len(migrations), nil
		},
		MigrationsDir: cfg.Database.MigrationsDir,
		Close:         closeAll,
	}, nil
}

// withEngine opens the engine for one command and always closes it
func withEngine(ctx context.Context, opts *RootOptions, fn func(*Engine) error) error {
	engine, err := opts.open(ctx)
	if err != nil {
		return err
	}
	if engine.Close != nil {
		defer func() {
			if err := engine.Close(); err != nil {
				slog.Warn("failed to close engine", "error", err)
			}
		}()
	}
	return fn(engine)
}
