package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/safety-inspector/internal/application"
	appai "github.com/bryanwahyu/safety-inspector/internal/application/ai"
	appinsp "github.com/bryanwahyu/safety-inspector/internal/application/inspections"
	"github.com/bryanwahyu/safety-inspector/internal/config"
	domai "github.com/bryanwahyu/safety-inspector/internal/domain/ai"
	"github.com/bryanwahyu/safety-inspector/internal/domain/inspections"
	"github.com/bryanwahyu/safety-inspector/internal/infra/ai/openai"
	"github.com/bryanwahyu/safety-inspector/internal/infra/ai/prompt"
	"github.com/bryanwahyu/safety-inspector/internal/infra/db/memory"
	"github.com/bryanwahyu/safety-inspector/internal/infra/db/migrations"
	mysqlp "github.com/bryanwahyu/safety-inspector/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/safety-inspector/internal/infra/db/postgres"
	"github.com/bryanwahyu/safety-inspector/internal/infra/httpserver"
	"github.com/bryanwahyu/safety-inspector/internal/infra/storage"
	"github.com/bryanwahyu/safety-inspector/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fatal(logger, "config load error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// init repo
	repo, db, err := openRepository(ctx, cfg, logger)
	if err != nil {
		fatal(logger, "database init error", err)
	}
	if db != nil {
		defer db.Close()
	}

	// init image store
	images, err := openImages(ctx, cfg)
	if err != nil {
		fatal(logger, "storage init error", err)
	}

	parser, err := inspections.NewParser(cfg.Analysis.Parser)
	if err != nil {
		fatal(logger, "parser config error", err)
	}

	// vision client; tanpa API key jalan di demo mode
	var vision domai.VisionClient
	if cfg.OpenAI.APIKey != "" {
		vision = openai.NewClient(cfg.OpenAI.APIKey, openai.Options{
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		})
	}

	defaultPrompt := cfg.Analysis.DefaultPrompt
	if defaultPrompt == "" {
		defaultPrompt = prompt.Default(prompt.CategorySafety)
	}

	clock := application.SystemClock{}
	analyzer := appai.NewService(vision, images, appai.Options{
		Parser:        parser,
		Clock:         clock,
		Timeout:       cfg.Analysis.Timeout,
		BatchDelay:    cfg.Analysis.BatchDelay,
		DefaultPrompt: defaultPrompt,
		Logger:        logger.With("component", "analyzer"),
	})

	metrics := middleware.NewMetrics()

	// init service
	svc := &appinsp.Service{
		Repo:     repo,
		Analyzer: analyzer,
		Clock:    clock,
		Logger:   logger.With("component", "orchestrator"),
		Observer: metrics,
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		go limiter.Run(ctx)
	}

	// init router
	handler := httpserver.NewRouter(svc, analyzer, httpserver.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     metrics,
		RateLimiter: limiter,
		Checkers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: repo},
		},
		Logger: logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// no WriteTimeout: analysis streams stay open for the whole run
		IdleTimeout: 60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", "addr", addr, "db", cfg.Database.Driver, "demoMode", analyzer.DemoMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

type repository interface {
	inspections.Repository
	middleware.Pinger
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository, *sql.DB, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := migrate(ctx, cfg, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return mysqlp.NewInspectionRepository(db), db, nil
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := migrate(ctx, cfg, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pgp.NewInspectionRepository(db), db, nil
	default:
		logger.Warn("using in-memory repository, data is lost on restart")
		return memory.NewInspectionRepository(), nil, nil
	}
}

func migrate(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger) error {
	if !cfg.Database.Migrate {
		return nil
	}
	return migrations.Up(ctx, db, cfg.Database.Driver, logger)
}

func openImages(ctx context.Context, cfg *config.Config) (domai.ImageLoader, error) {
	if cfg.Storage.Driver == "minio" {
		return storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
	}
	return storage.NewLocalStore(cfg.Storage.LocalRoot), nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
