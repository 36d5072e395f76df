// Package cli holds the process startup steps of the qcdash binary.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"qcdash/internal/config"
	qclog "qcdash/internal/log"
)

// Setup loads .env files (".env" when none are given), reads the
// configuration and builds the root logger at the configured level. The
// logger is returned even when validation fails so the caller can report it.
func Setup(envFiles ...string) (*config.Config, *qclog.Logger, error) {
	envErr := config.LoadDotEnv(envFiles...)

	cfg := config.Load()
	logger := qclog.New(qclog.Config{Level: cfg.SlogLevel(), Component: qclog.ComponentApp})
	qclog.SetDefault(logger)

	if envErr != nil {
		logger.Warn("Ignoring unreadable env file", qclog.FieldError, envErr)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, logger, err
	}
	return cfg, logger, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, or when
// parent is done.
func SignalContext(parent context.Context, logger *qclog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
