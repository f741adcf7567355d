package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aescanero/dago-node-jsonrender/internal/config"
	"github.com/aescanero/dago-node-jsonrender/internal/eval/cel"
	"github.com/aescanero/dago-node-jsonrender/internal/eval/template"
	"github.com/aescanero/dago-node-jsonrender/internal/helpers"
	"github.com/aescanero/dago-node-jsonrender/internal/partials"
	"github.com/aescanero/dago-node-jsonrender/internal/render"
	"github.com/aescanero/dago-node-jsonrender/internal/worker"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("render worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting render worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("worker_id", cfg.WorkerID),
		zap.Stringer("config", cfg),
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis connection", zap.Error(err))
		}
	}()

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	env := render.NewEnvironment()
	helpers.Register(env, template.NewEngine())
	if err := loadPartials(startCtx, cfg.Partials, env, redisClient, logger); err != nil {
		return err
	}

	executor, err := newExecutor(cfg.Render, env, logger)
	if err != nil {
		return err
	}

	w := worker.NewWorker(cfg, redisClient, executor, logger)
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	healthServer := worker.NewHealthServer(cfg.HealthPort, redisClient, env, logger)
	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("render worker running",
		zap.Int("helpers", len(env.HelperNames())),
		zap.Int("partials", len(env.PartialNames())),
	)
	sig := <-sigChan
	logger.Info("shutdown signal received", zap.Stringer("signal", sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", zap.Error(err))
	}
	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop worker", zap.Error(err))
	}

	logger.Info("worker stopped gracefully")
	return nil
}

// loadPartials registers partials from the configured directory and then from
// Redis, so Redis entries win on name clashes
func loadPartials(ctx context.Context, cfg config.Partials, env *render.Environment, client *redis.Client, logger *zap.Logger) error {
	if cfg.Dir != "" {
		n, err := partials.LoadDir(os.DirFS(cfg.Dir), env)
		if err != nil {
			return fmt.Errorf("failed to load partials from %s: %w", cfg.Dir, err)
		}
		logger.Info("loaded partials from directory", zap.String("dir", cfg.Dir), zap.Int("count", n))
	}

	if cfg.RedisKey != "" {
		store := partials.NewRedisStore(client, cfg.RedisKey, logger)
		if _, err := store.Load(ctx, env); err != nil {
			return fmt.Errorf("failed to load partials from redis: %w", err)
		}
	}

	return nil
}

func newExecutor(cfg config.Render, env *render.Environment, logger *zap.Logger) (*render.Executor, error) {
	engine, err := cel.NewEngine(
		cel.WithBuilderName(cfg.BuilderName),
		cel.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create template engine: %w", err)
	}

	return render.NewExecutor(env, engine,
		render.WithMaxDepth(cfg.MaxDepth),
		render.WithLogger(logger),
	), nil
}

// initLogger builds a JSON production logger at the given level
func initLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stdout"}

	return cfg.Build()
}
