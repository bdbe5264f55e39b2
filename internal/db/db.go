package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flatfinder/flatfinder/internal/config"
)

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{
		&Profile{},
		&Swipe{},
		&Group{},
		&GroupMember{},
		&Message{},
		&Property{},
		&SupportTicket{},
		&DeviceToken{},
	}
}

// NewDB initializes the database connection using DSN from config.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Needed so unique-key violations surface as gorm.ErrDuplicatedKey
		// (the pair-dedupe in group creation relies on it).
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// AutoMigrate ensures schema is in sync with models.
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
