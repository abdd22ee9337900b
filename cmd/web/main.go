package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicf7/bridge"
	server "civicf7/cmd/web/backend"
	"civicf7/config"

	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	core, err := bridge.NewCore(ctx, cfg.CoreArgs(logger))
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize backends")
	}

	if err := core.Lifecycle.Activate(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Activation Error")
	}

	app := server.NewServer(cfg, core, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("Shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down cleanly")
		}
	}()

	if err := app.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start app")
	}
}
