package database

import (
	"fmt"
	"log"
	"time"

	"PrintRelay/app/config"
	"PrintRelay/app/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// buildDSN builds the PostgreSQL connection string.
// Priority: DATABASE_URL > individual fields
func buildDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		log.Printf("Using DATABASE_URL for database connection")
		return cfg.URL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)

	log.Printf("Built database connection from config: host=%s port=%d dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	return dsn
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Initialize opens the configured database, runs migrations and keeps the
// connection for GetDB
func Initialize(cfg config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// Open connects to PostgreSQL when a server is configured, otherwise to the
// local SQLite file, and migrates the schema
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		conn *gorm.DB
		err  error
	)

	if cfg.UsesPostgres() {
		conn, err = openPostgres(buildDSN(cfg))
	} else {
		conn, err = OpenSQLite(cfg.Path)
	}
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return conn, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	gcfg := gormConfig()
	gcfg.PrepareStmt = true

	conn, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return conn, nil
}

// RunMigrations runs database migrations
func RunMigrations(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.PrintJob{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	createIndexes(conn)
	return nil
}

// createIndexes creates indexes used by history and reconciliation queries
func createIndexes(conn *gorm.DB) {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_print_jobs_store_created ON print_jobs(store_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_print_jobs_status_remote ON print_jobs(status, remote_job_id)",
	}
	for _, stmt := range statements {
		if err := conn.Exec(stmt).Error; err != nil {
			log.Printf("Warning: failed to create index: %v", err)
		}
	}
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
