package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
	"github.com/hackgods/clinic-scheduling/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("reminder-worker", "prod").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("reminder-worker", cfg.Env)
	logger.Info("reminder-worker starting up", "env", cfg.Env, "interval", cfg.WorkerInterval)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	locker, rdb := app.Locker(rootCtx, cfg, logger)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
	}

	publisher, closePublisher := app.Publisher(cfg, logger)
	defer closePublisher()

	dispatcher := reminder.NewDispatcher(reminder.Deps{
		Bookings:  booking.NewPgRepository(pgPool, billing.NewPgRepository()),
		Settings:  settings.NewPgStore(pgPool),
		Sender:    app.Sender(cfg, logger),
		Locker:    locker,
		Publisher: publisher,
		Logger:    logger,
	}, reminder.Options{
		Location:      cfg.Location(),
		ClinicName:    cfg.ClinicName,
		ClinicAddress: cfg.ClinicAddress,
	})

	runOnce(rootCtx, dispatcher, cfg.LockTTL, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, dispatcher, cfg.LockTTL, logger)
		}
	}
}

func runOnce(ctx context.Context, d *reminder.Dispatcher, timeout time.Duration, logger *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := d.Run(runCtx, reminder.RunOptions{})
	if err != nil {
		logger.Error("reminder run error", "error", err)
		return
	}
	if res.Skipped != "" {
		logger.Debug("reminder run skipped", "reason", res.Skipped, "date", res.Date)
		return
	}
	logger.Info("reminder run complete", "duration", time.Since(start), "sent", res.Sent, "failed", res.Failed)
}
