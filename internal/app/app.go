package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/shortlink/internal/admin"
	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/db"
	"github.com/sundayezeilo/shortlink/internal/httpx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/links"
	"github.com/sundayezeilo/shortlink/internal/metrics"
	"github.com/sundayezeilo/shortlink/internal/server"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Metrics *metrics.Metrics
	Server  *server.Server
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"code_length", cfg.Links.CodeLength,
	)

	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("database schema applied")

	m := metrics.New()

	queries := db.New(dbPool)
	repo := links.NewRepository(queries, &links.RepositoryConfig{
		IDGenerator: idgen.NewV7(idgen.WithRetries(1)),
	})
	svc := links.NewService(repo, &links.ServiceConfig{
		CodeLength:  cfg.Links.CodeLength,
		CodeRetries: cfg.Links.CodeGenRetries,
		Recorder:    m,
	})
	handler := links.NewHandler(links.HandlerConfig{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	adminHandler, err := admin.New(admin.Config{
		Service: svc,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
		DB:      dbPool,
	})
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to set up admin ui: %w", err)
	}

	var limiter *httpx.RateLimiter
	if cfg.RateLimit.Enabled {
		// Validated by config.Load.
		proxies, _ := cfg.RateLimit.TrustedPrefixes()
		limiter = httpx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
			httpx.WithTrustedProxies(proxies...),
		)
	}

	srv := server.New(cfg, logger, server.Deps{
		Links:   handler,
		Admin:   adminHandler,
		DB:      dbPool,
		Metrics: m,
		Limiter: limiter,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"rate_limit", cfg.RateLimit.Enabled,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DBPool:  dbPool,
		Metrics: m,
		Server:  srv,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the application's resources.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// connectDatabase establishes a connection pool to PostgreSQL.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	connString, err := cfg.Database.ConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}
