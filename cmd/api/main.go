package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"carbon-registry/registry-backend/internal/audit"
	"carbon-registry/registry-backend/internal/auth"
	"carbon-registry/registry-backend/internal/config"
	"carbon-registry/registry-backend/internal/credits"
	"carbon-registry/registry-backend/internal/projects"
	"carbon-registry/registry-backend/internal/users"
	"carbon-registry/registry-backend/internal/verification"
	"carbon-registry/registry-backend/pkg/pdf"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseDSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&users.User{},
		&projects.Project{},
		&credits.CreditEntry{},
		&credits.CreditTransaction{},
		&verification.VerificationRequest{},
		&verification.ValidatorAssignment{},
		&verification.ValidatorVote{},
		&audit.Event{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Everything is constructed once here and passed down explicitly;
	// no package holds hidden shared state.
	userRepo := users.NewRepository(db)
	projectRepo := projects.NewRepository(db)
	creditRepo := credits.NewRepository(db)
	verificationRepo := verification.NewRepository(db)
	auditor := audit.NewRecorder(db, logger)

	creditService := credits.NewService(creditRepo, projectRepo, userRepo, logger)
	assignmentEngine := verification.NewAssignmentEngine(verificationRepo, userRepo, projectRepo, auditor, cfg.Verification, logger)
	consensusEngine := verification.NewConsensusEngine(verificationRepo, auditor, logger)
	deadlineScheduler := verification.NewDeadlineScheduler(verificationRepo, consensusEngine, auditor, cfg.Verification, logger)

	creditHandler := credits.NewHandler(creditService, projectRepo, pdf.NewCertificateGenerator())
	verificationHandler := verification.NewHandler(assignmentEngine, consensusEngine, deadlineScheduler, auditor)

	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API alive!"})
	})

	authMiddleware := auth.NewMiddleware(cfg.Auth.JWTSecret)
	v1 := r.Group("/api/v1", authMiddleware.RequireAuth())
	credits.RegisterRoutes(v1, creditHandler)
	verification.RegisterRoutes(v1, verificationHandler)

	logger.Info("server starting", zap.String("addr", cfg.Server.GetServerAddr()))
	if err := r.Run(cfg.Server.GetServerAddr()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
