package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/billing"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/reminder"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/settings"
	"github.com/hackgods/clinic-scheduling/internal/triage"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("api-server", "prod").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("api-server", cfg.Env)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

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

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		logger.Error("migration error", "error", err)
		os.Exit(1)
	}

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

	sender := app.Sender(cfg, logger)
	notifier := notify.NewAsync(sender, cfg.NotifyTimeout, logger)
	loc := cfg.Location()

	settingsStore := settings.NewPgStore(pgPool)
	scheduleRepo := schedule.NewPgRepository(pgPool)
	scheduleSvc := schedule.NewService(scheduleRepo, loc, logger)

	bookingRepo := booking.NewPgRepository(pgPool, billing.NewPgRepository())
	bookingSvc := booking.NewService(booking.Deps{
		Store:     bookingRepo,
		Rules:     scheduleRepo,
		Blocks:    scheduleSvc,
		Settings:  settingsStore,
		Notifier:  notifier,
		Publisher: publisher,
		Logger:    logger,
	}, booking.Options{
		Location:      loc,
		NoShowRank:    cfg.NoShowRank,
		ClinicName:    cfg.ClinicName,
		ClinicAddress: cfg.ClinicAddress,
	})

	triageSvc := triage.NewService(triage.NewPgRepository(pgPool), bookingSvc, logger)

	dispatcher := reminder.NewDispatcher(reminder.Deps{
		Bookings:  bookingRepo,
		Settings:  settingsStore,
		Sender:    sender,
		Locker:    locker,
		Publisher: publisher,
		Logger:    logger,
	}, reminder.Options{
		Location:      loc,
		ClinicName:    cfg.ClinicName,
		ClinicAddress: cfg.ClinicAddress,
	})

	router := api.NewRouter(api.RouterConfig{
		Bookings:  bookingSvc,
		Schedule:  scheduleSvc,
		Capacity:  schedule.NewValidator(scheduleRepo, bookingRepo),
		Triage:    triageSvc,
		Settings:  settingsStore,
		Reminders: dispatcher,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", "error", err)
	}
}
