package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/statflow/statflow/internal/analysis"
	"github.com/statflow/statflow/internal/engine"
	"github.com/statflow/statflow/internal/logging"
	"github.com/statflow/statflow/internal/scheduler"
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/mcp"
)

func main() {
	cfg := loadConfig()

	// Logs go to stderr; stdout is the MCP transport.
	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}),
	))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("statflow exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	registry, err := analysis.NewDefaultRegistry()
	if err != nil {
		return err
	}
	datasets := analysis.NewInMemoryProvider()

	eng, err := engine.New(engine.Config{
		PoolSize:           cfg.PoolSize,
		HistorySize:        cfg.HistorySize,
		SupervisorInterval: time.Duration(cfg.SupervisorInterval) * time.Second,
	}, st, registry, datasets, logger)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop()

	starter := scheduler.StarterFunc(func(ctx context.Context, workflowID, userID string) error {
		_, err := eng.StartExecution(ctx, workflowID, userID)
		return err
	})
	sched := scheduler.New(st, starter, logger)
	if cfg.Scheduler {
		if err := sched.RecoverMissed(ctx); err != nil {
			logger.Warn("missed-run recovery", slog.Any("error", err))
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler shutdown", slog.Any("error", err))
			}
		}()
	}

	srv := mcp.NewStatflowServer(mcp.ServerDeps{
		Engine:    eng,
		Scheduler: sched,
		Store:     st,
		Logger:    logger,
	})

	logger.Info("statflow started",
		slog.String("db_path", cfg.DBPath),
		slog.Int("pool_size", cfg.PoolSize))

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("statflow shutting down")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
