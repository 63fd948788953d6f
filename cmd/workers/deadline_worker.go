package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/internal/config"
	"carbon-registry/registry-backend/internal/verification"
)

// Deadline worker: runs the expired-deadline sweep on a cron schedule.
// The scheduler itself exposes a plain callable; all timing lives here.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	verificationRepo := verification.NewRepository(db)
	auditor := audit.NewRecorder(db, logger)
	consensusEngine := verification.NewConsensusEngine(verificationRepo, auditor, logger)
	deadlineScheduler := verification.NewDeadlineScheduler(verificationRepo, consensusEngine, auditor, cfg.Verification, logger)

	c := cron.New()
	_, err = c.AddFunc(cfg.Verification.SweepSchedule, func() {
		result, err := deadlineScheduler.ProcessExpiredDeadlines(context.Background())
		if err != nil {
			logger.Error("deadline sweep failed", zap.Error(err))
			return
		}
		logger.Info("deadline sweep completed",
			zap.Int("requests_processed", result.RequestsProcessed),
			zap.Int("validators_abstained", result.ValidatorsAbstained),
			zap.Int("failures", result.Failures))
	})
	if err != nil {
		logger.Fatal("invalid sweep schedule", zap.Error(err))
	}

	c.Start()
	logger.Info("deadline worker started", zap.String("schedule", cfg.Verification.SweepSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("deadline worker stopped")
}
