package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenOptions configures the database connection.
type OpenOptions struct {
	DSN      string
	LogLevel logger.LogLevel
}

// Open establishes a gorm connection to Postgres using the pgx driver
// underneath, failing closed if the DSN cannot be parsed or the server is
// unreachable.
func Open(opts OpenOptions) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("storage: empty DSN")
	}
	lvl := opts.LogLevel
	if lvl == 0 {
		lvl = logger.Warn
	}
	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(lvl),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table this package owns. Safe to run
// on every boot; gorm only adds missing columns/indexes, it never drops
// data.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Organization{},
		&BusinessProfile{},
		&User{},
		&Role{},
		&APIKey{},
		&Customer{},
		&Product{},
		&OrderItem{},
		&Order{},
	)
}
