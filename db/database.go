package db

import (
	"fmt"
	"log"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Options selects the backing database. A non-empty TursoURL wins over Path.
type Options struct {
	Path        string
	TursoURL    string
	TursoToken  string
	Environment string
}

// Initialize sets up the database connection. Local files run in WAL mode.
func Initialize(opts Options) error {
	logLevel := logger.Info
	if opts.Environment == "production" {
		logLevel = logger.Warn
	}

	conn, err := Open(opts, logger.Default.LogMode(logLevel))
	if err != nil {
		return err
	}
	DB = conn

	if opts.TursoURL != "" {
		log.Println("Database connection established (libsql remote)")
	} else {
		log.Println("Database connection established (WAL mode enabled)")
	}
	return nil
}

// Open builds a gorm handle without touching the package-level DB
func Open(opts Options, gormLogger logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if opts.TursoURL != "" {
		dsn := opts.TursoURL
		if opts.TursoToken != "" {
			dsn += "?authToken=" + opts.TursoToken
		}
		dialector = sqlite.New(sqlite.Config{DriverName: "libsql", DSN: dsn})
	} else {
		dialector = sqlite.Open(opts.Path + "?_journal_mode=WAL&_busy_timeout=5000")
	}

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
