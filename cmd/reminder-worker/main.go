package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/ehr-scheduling/internal/appointment"
	"github.com/medtrack/ehr-scheduling/internal/config"
	"github.com/medtrack/ehr-scheduling/internal/db"
)

// The reminder worker periodically scans for active appointments inside the
// upcoming window and emits a reminder record per visit. Delivery (SMS,
// email) is a downstream concern; here the reminder is a structured log line
// that a shipper can pick up.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("window", cfg.UpcomingWindow),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	repo := appointment.NewPgRepository(pgPool)

	// Run once at startup
	runOnce(rootCtx, repo, logger, cfg.UpcomingWindow)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, logger, cfg.UpcomingWindow)
		}
	}
}

func runOnce(ctx context.Context, repo appointment.Repository, logger *zap.Logger, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	now := time.Now()
	from := now.Format("2006-01-02")
	to := now.Add(window).Format("2006-01-02")

	start := time.Now()
	items, err := repo.List(runCtx, appointment.ListFilter{FromDate: from, ToDate: to})
	if err != nil {
		logger.Error("reminder scan error", zap.Error(err))
		return
	}

	reminded := 0
	for _, a := range items {
		if a.Status.Terminal() {
			continue
		}
		logger.Info("appointment reminder",
			zap.String("id", a.ID.String()),
			zap.String("patient", a.PatientName),
			zap.String("doctor", a.Doctor),
			zap.String("date", a.Date),
			zap.String("time", a.Time),
			zap.String("status", string(a.Status)),
		)
		reminded++
	}

	logger.Info("reminder run complete",
		zap.Int("reminders", reminded),
		zap.Duration("took", time.Since(start)),
	)
}
