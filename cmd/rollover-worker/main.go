package main

import (
	"time"

	"github.com/mielski/chores/internal/allowance"
	"github.com/mielski/chores/internal/cli"
	"github.com/mielski/chores/internal/services"
	"github.com/mielski/chores/internal/state"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting rollover-worker")

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
	processor := services.NewRolloverProcessor(service, cfg.Users)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Weekly rollover configured",
		"interval", cfg.RolloverInterval,
		"users", cfg.Users)

	ticker := time.NewTicker(cfg.RolloverInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Running weekly rollover...")
				count, err := processor.ProcessAll(ctx, now)
				if err != nil {
					logger.Error("Rollover failed", "error", err)
				} else {
					logger.Info("Rollover complete",
						"users_processed", count,
						"next_run", now.Add(cfg.RolloverInterval).Format("2006-01-02 15:04:05"))
				}
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
