package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/nemesis/api/internal/config"
	"github.com/forgo/nemesis/api/internal/database"
	"github.com/forgo/nemesis/api/internal/handler"
	"github.com/forgo/nemesis/api/internal/jobs"
	"github.com/forgo/nemesis/api/internal/lock"
	"github.com/forgo/nemesis/api/internal/metrics"
	"github.com/forgo/nemesis/api/internal/middleware"
	"github.com/forgo/nemesis/api/internal/repository"
	"github.com/forgo/nemesis/api/internal/service"
	"github.com/forgo/nemesis/api/pkg/jwt"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(cfg.Database.ClientConfig())

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	if cfg.Database.AutoMigrate {
		migrations, err := database.LoadMigrations(cfg.Database.MigrationsDir)
		if err != nil {
			slog.Error("failed to load migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := database.Migrate(ctx, db, migrations); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("migrations applied", slog.Int("count", len(migrations)))
	}

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		TTL:            cfg.JWT.TTL,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Locks stay in process unless Redis is configured
	healthChecks := map[string]handler.Pinger{"database": db}
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Enabled() {
		redisLocker, err := lock.NewRedisLocker(cfg.Redis.LockConfig())
		if err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = redisLocker.Close() }()
		locker = redisLocker
		healthChecks["redis"] = redisLocker
		slog.Info("using redis locks", slog.String("host", cfg.Redis.Host))
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

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Initialize services
	questionnaireService := service.NewQuestionnaireService(service.QuestionnaireServiceConfig{
		QuestionRepo: questionRepo,
		AnswerStore:  answerRepo,
	})

	matchService, err := service.NewMatchService(service.MatchServiceConfig{
		AnswerRepo: answerRepo,
		UserRepo:   userRepo,
		Ledger:     ledgerRepo,
		Locker:     locker,
		Notifier:   notifier,
		Policy:     cfg.Matching.Policy,
	})
	if err != nil {
		slog.Error("failed to initialize matching", slog.String("error", err.Error()))
		os.Exit(1)
	}
	policy := matchService.Policy()
	slog.Info("matching policy",
		slog.Int("min_overlap", policy.MinOverlap),
		slog.Int("exclusion_cycles", policy.ExclusionCycles),
		slog.String("mode", string(policy.Mode)),
	)

	// Background jobs
	scheduler := jobs.NewCycleScheduler(matchService, jobs.SchedulerConfig{
		Day:           cfg.Scheduler.Day,
		Hour:          cfg.Scheduler.Hour,
		Minute:        cfg.Scheduler.Minute,
		CheckInterval: cfg.Scheduler.CheckInterval,
	})
	if cfg.Scheduler.Enabled {
		scheduler.Start()
		defer scheduler.Stop()
	}

	findEnemyLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Scope:  "find-enemy",
		Rate:   cfg.RateLimit.Rate,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	})
	defer findEnemyLimiter.Stop()

	// Routes
	mux := handler.NewRouter(handler.RouterConfig{
		Validator:        jwtService,
		AdminKeyHash:     cfg.Admin.KeyHash,
		FindEnemyLimiter: findEnemyLimiter,
		Health:           handler.NewHealthHandler(healthChecks),
		Questionnaire:    handler.NewQuestionnaireHandler(questionnaireService),
		Match:            handler.NewMatchHandler(matchService),
		Admin:            handler.NewAdminHandler(scheduler, matchService),
		Metrics:          metrics.Handler(),
	})

	// Apply global middleware; Metrics stays innermost so it sees the mux pattern
	wrapped := middleware.Chain(
		mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logger,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Compress,
		middleware.Metrics,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
