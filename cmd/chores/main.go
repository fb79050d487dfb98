package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mielski/chores/internal/allowance"
	"github.com/mielski/chores/internal/cli"
	apphttp "github.com/mielski/chores/internal/http"
	"github.com/mielski/chores/internal/services"
	"github.com/mielski/chores/internal/state"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backend := cli.InitBackend(logger, cfg)
	defer backend.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	states := state.New(backend)
	ledger := allowance.New(backend, states, cfg.DefaultSettings(), cfg.Currency)

	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	service := services.NewChoreService(states, ledger, publisher, cfg.UndoDepth)

	srv := apphttp.NewServer(":"+cfg.Port, service)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting chores server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"users", cfg.Users)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
