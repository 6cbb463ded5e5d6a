package main

import (
	"context"
	"errors"
	"log"
	"os"

	"go.uber.org/zap"

	"edupulse/internal/app"
	"edupulse/internal/config"
	"edupulse/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("admin init failed", zap.Error(err))
	}

	cli := commandLine{app: a, out: os.Stdout}
	err = cli.run(context.Background(), os.Args)
	a.Close()
	_ = logger.Sync()
	if err != nil {
		if !errors.Is(err, errHelp) {
			logger.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
