package db

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"eviction_intake_go/config"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the ledger database. With TURSO_DATABASE_URL set the
// ledger lives on Turso through libsql, otherwise in a local sqlite file
// with WAL mode for concurrency.
func Initialize(cfg *config.Config) error {
	var err error

	// Determine log level based on environment
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	if cfg.TursoDatabaseURL != "" {
		DB, err = openTurso(cfg.TursoDatabaseURL, cfg.TursoAuthToken, gormCfg)
		if err != nil {
			return err
		}
		log.Println("Database connection established (Turso)")
		return nil
	}

	// Enable WAL mode for better concurrency support
	dsn := cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000"

	DB, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established (WAL mode enabled)")
	return nil
}

// tursoDSN appends the auth token to the database URL
func tursoDSN(url, authToken string) string {
	if authToken == "" {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "authToken=" + authToken
}

func openTurso(url, authToken string, gormCfg *gorm.Config) (*gorm.DB, error) {
	conn, err := sql.Open("libsql", tursoDSN(url, authToken))
	if err != nil {
		return nil, fmt.Errorf("failed to open turso connection: %w", err)
	}

	gdb, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "libsql", Conn: conn}), gormCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to turso: %w", err)
	}
	return gdb, nil
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(models...)
	if err != nil {
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
