package datastore

import (
	"log/slog"
	"time"

	"github.com/tmarcon/nestcard-go/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. Migration batch queries can take close to a second.
const DefaultSlowQueryThreshold = 1 * time.Second

var (
	serviceLogger   *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	serviceLevelVar.Set(slog.LevelInfo)
	serviceLogger, _ = logging.ForService("datastore", serviceLevelVar)
}

// GetLogger returns the datastore service logger.
func GetLogger() *slog.Logger {
	return serviceLogger
}

// createGormLogger configures the GORM logger. Query logging stays at Warn
// unless debug is enabled.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.Default.LogMode(level)
}

// allModels lists every table the pipeline owns, in migration order.
func allModels() []any {
	return []any{
		&RawTranscription{},
		&Species{},
		&SpeciesCandidate{},
		&User{},
		&Commune{},
		&FormerCommune{},
		&Card{},
		&Location{},
		&Nest{},
		&Visit{},
		&Summary{},
		&FailureCause{},
		&Remark{},
		&PendingImport{},
	}
}

// performAutoMigration migrates all tables and logs the outcome.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := GetLogger().With("db_type", dbType)

	if debug {
		migrationLogger.Debug("Starting database migration", "connection", connectionInfo)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		migrationLogger.Error("Database migration failed", "error", err)
		return err
	}

	migrationLogger.Debug("Database migration completed",
		"duration", time.Since(migrationStart),
		"tables", len(allModels()))
	return nil
}
