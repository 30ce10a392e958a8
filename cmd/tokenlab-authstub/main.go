package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	logger := bootstrap.InitLogger(bootstrap.LoggerOptions{Level: slog.LevelInfo})
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.InitLogger(bootstrap.LoggerOptionsFor(&cfg))

	if err = validateStubConfig(&cfg); err != nil {
		return err
	}
	logStartupInfo(ctx, logger, &cfg)

	stub, err := bootstrap.NewStubServer(ctx, bootstrap.StubOptions{Config: &cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stub.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close auth stub failed", "error", cerr)
		}
	}()

	return stub.ListenAndServe(ctx, cfg.Stub.Addr)
}

func validateStubConfig(cfg *config.AppConfig) error {
	if cfg.Stub.JWTSecret == "" {
		return errors.New("STUB_JWT_SECRET is required")
	}
	return nil
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting auth stub",
		"addr", cfg.Stub.Addr,
		"user_store", cfg.Stub.UserStore,
		"token_ttl", cfg.Stub.TokenTTL.String(),
		"dev", cfg.IsDev,
	)
}
