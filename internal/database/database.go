package database

import (
	"fmt"

	"github.com/cph-cachet/carp-portal/internal/config"
	logging "github.com/cph-cachet/carp-portal/internal/logging"
	"github.com/cph-cachet/carp-portal/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the audit database and migrates it. DB stays nil when either fails.
func Init(conf config.DatabaseConfig, level string, log *zap.Logger) error {
	gormLogger := logging.NewGormZapLogger(log)
	if level == "debug" {
		gormLogger.LogLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(conf.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("Database connection established successfully.",
		zap.String("host", conf.Host),
		zap.String("dbname", conf.DBName))
	if err := runMigrations(db, log); err != nil {
		return err
	}
	DB = db
	return nil
}

func runMigrations(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&models.SubmissionAudit{}); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	auditIndex := `CREATE INDEX IF NOT EXISTS idx_submission_audits_deployment_created ON submission_audits (deployment_id, created_at DESC);`
	if err := db.Exec(auditIndex).Error; err != nil {
		return fmt.Errorf("failed to create index on submission audits: %w", err)
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}
