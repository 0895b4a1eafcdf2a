package database

import (
	"os"
	"path/filepath"

	"github.com/Diploma-Survivors/sfinx-backend-sub003/internal/database/models"
	"go.uber.org/zap"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Init(dsn string) (*gorm.DB, error) {
	if _, err := os.Stat(dsn); os.IsNotExist(err) {
		zap.S().Infof("database file not found at '%s', creating directory for it.", dsn)
		dbDir := filepath.Dir(dsn)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto migrate schema
	err = db.AutoMigrate(
		&models.Contest{},
		&models.ContestProblem{},
		&models.ContestParticipant{},
		&models.UserStatistics{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
