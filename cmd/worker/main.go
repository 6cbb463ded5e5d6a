package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"edupulse/internal/app"
	"edupulse/internal/config"
	"edupulse/internal/logging"
)

// Worker processes queued photo jobs and runs the scheduled attendance jobs.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("worker init failed", zap.Error(err))
	}
	defer a.Close()

	c, err := schedule(ctx, a, cfg)
	if err != nil {
		logger.Fatal("invalid schedule", zap.Error(err))
	}
	c.Start()

	if cfg.QueueBackend == "redis" {
		if err := a.ConsumeJobs(ctx); err != nil {
			logger.Error("job consumer stopped", zap.Error(err))
		}
	} else {
		logger.Info("queue backend is in-memory, photo jobs run inside the api process")
		<-ctx.Done()
	}

	logger.Info("shutdown signal received")
	<-c.Stop().Done()
	logger.Info("worker stopped")
}

func schedule(ctx context.Context, a *app.App, cfg config.App) (*cron.Cron, error) {
	cronLog := cron.VerbosePrintfLogger(zap.NewStdLog(a.Log.Named("cron")))
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))

	if _, err := c.AddFunc(cfg.ReminderSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := a.Notify.RemindMissing(runCtx); err != nil {
			a.Log.Error("attendance reminders failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc(cfg.PercentageSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if _, err := a.Notify.RefreshPercentages(runCtx); err != nil {
			a.Log.Error("attendance percentage refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return c, nil
}
