package connection

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/config"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	*gorm.DB
	driver string
	dsn    string
}

// Driver reports the SQL dialect behind the connection.
func (db *Database) Driver() string {
	return db.driver
}

// Ping verifies the underlying pool is reachable
func (db *Database) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Reconnect attempts to reconnect to the database if the connection is lost
func (db *Database) Reconnect() error {
	newDB, err := gorm.Open(dialector(db.driver, db.dsn), gormConfig(logger.Warn))
	if err != nil {
		return fmt.Errorf("failed to reconnect to database: %w", err)
	}

	db.DB = newDB

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	configurePool(sqlDB, db.driver, config.DatabaseConfig{})
	return nil
}

func dialector(driver, dsn string) gorm.Dialector {
	if driver == "sqlite" {
		return sqlite.Open(dsn)
	}
	return postgres.Open(dsn)
}

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC() // Standardize time
		},
	}
}

func configurePool(sqlDB *sql.DB, driver string, cfg config.DatabaseConfig) {
	// SQLite allows a single writer
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return
	}

	maxIdleConns := 10
	maxOpenConns := 100
	lifetime := time.Hour
	if cfg.MaxIdleConns > 0 {
		maxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		maxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		lifetime = cfg.ConnMaxLifetime
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(lifetime)
}

// NewDatabase opens the configured database. debug raises gorm's log level to Info.
func NewDatabase(cfg *config.Config, debug bool) (*Database, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}

	if cfg.Database.Driver == "sqlite" {
		return open("sqlite", cfg.Database.Path, cfg.Database, level)
	}

	dsn := cfg.Database.DSN()

	// First try to establish a basic SQL connection to verify connectivity
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql.DB: %w", err)
	}
	defer sqlDB.Close()

	sqlDB.SetConnMaxLifetime(10 * time.Second)
	if err := sqlDB.Ping(); err != nil {
		if sqlErr, ok := err.(*pq.Error); ok {
			return nil, fmt.Errorf("postgres error: code=%s, message=%s, detail=%s", sqlErr.Code, sqlErr.Message, sqlErr.Detail)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return open("postgres", dsn, cfg.Database, level)
}

// NewSQLiteDatabase opens a SQLite database, typically "file::memory:" in tests.
func NewSQLiteDatabase(dsn string) (*Database, error) {
	return open("sqlite", dsn, config.DatabaseConfig{}, logger.Silent)
}

func open(driver, dsn string, cfg config.DatabaseConfig, level logger.LogLevel) (*Database, error) {
	db, err := gorm.Open(dialector(driver, dsn), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	configurePool(sqlDB, driver, cfg)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping connection pool: %w", err)
	}

	return &Database{DB: db, driver: driver, dsn: dsn}, nil
}
