package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightdelivered/statement-extractor/internal/admission"
	"github.com/insightdelivered/statement-extractor/internal/api"
	"github.com/insightdelivered/statement-extractor/internal/config"
	"github.com/insightdelivered/statement-extractor/internal/logging"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/validator"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init admission store: %w", err)
	}
	defer closeStore()

	logger := slog.Default()
	opts := []admission.Option{
		admission.WithBlacklistTTL(cfg.Admission.BlacklistTTL),
		admission.WithLogger(logger),
	}
	parseCtrl, err := admission.NewController(store, cfg.Admission.ParsePolicy(), opts...)
	if err != nil {
		return err
	}
	apiCtrl, err := admission.NewController(store, cfg.Admission.APIPolicy(), opts...)
	if err != nil {
		return err
	}

	srv := api.New(api.Options{
		Version: cfg.Version,
		TempDir: cfg.Upload.TempDir,
		Validator: validator.New(validator.Limits{
			MaxBytes: cfg.Upload.MaxBytes,
			MaxPages: cfg.Upload.MaxPages,
		}),
		Engine:         parser.New(logger),
		ParseAdmission: parseCtrl,
		APIAdmission:   apiCtrl,
		Origins:        cfg.CORS.Origins,
		ProxyHeader:    cfg.Server.ProxyHeader,
		TrustedProxies: cfg.Server.TrustedProxies,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		Logger:         logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr())
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	if err := srv.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func initStore(ctx context.Context, cfg *config.Config) (admission.Store, func(), error) {
	switch cfg.Admission.Store {
	case config.StoreRedis:
		store, err := admission.NewRedisStore(ctx, admission.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("admission state in redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Error("failed to close redis store", "error", err)
			}
		}, nil
	case config.StoreMemory:
		slog.Info("admission state in memory", "shards", cfg.Admission.Shards)
		return admission.NewMemoryStore(cfg.Admission.Shards), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported admission store: %s", cfg.Admission.Store)
	}
}
