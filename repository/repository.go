package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgreSQL error codes
const (
	PgErrForeignKeyViolation = "23503"
	PgErrUniqueViolation     = "23505"
	PgErrCheckViolation      = "23514"
)

// PoolOptions sizes the connection pool shared by every service
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Repository is the relational store gateway. One instance wraps the
// connection pool and is handed to every service; each method acquires a
// connection for the duration of its own transaction only.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger

	// pickCarrier returns an index in [0, n)
	pickCarrier func(n int) int
}

// NewRepository creates a new repository instance
func NewRepository(logger zerolog.Logger) *Repository {
	return &Repository{
		logger:      logger,
		pickCarrier: rand.IntN,
	}
}

// ConnectDB establishes the PostgreSQL connection, retrying up to attempts
// times, then runs migrations and optionally seeds default data
func (r *Repository) ConnectDB(dsn string, attempts int, pool PoolOptions, seed bool) error {
	var lastErr error
	for i := range attempts {
		r.logger.Info().Int("attempt", i+1).Msg("Database connection attempt")
		if err := r.Open(postgres.Open(dsn), pool); err != nil {
			lastErr = err
			r.logger.Error().Err(err).Int("attempt", i+1).Msg("Connection attempt failed")
			time.Sleep(2 * time.Second)
			continue
		}
		r.logger.Info().Msg("✓ Connected to database")

		if seed {
			if err := r.Seed(context.Background()); err != nil {
				return err
			}
		}
		return nil
	}
	return shoperr.Newf(shoperr.ConnectionFailure, "Database unreachable",
		"failed to connect after %d attempts: %v", attempts, lastErr)
}

// Open connects through dialector, sizes the pool and migrates the schema
func (r *Repository) Open(dialector gorm.Dialector, pool PoolOptions) error {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(r.logger),
		TranslateError: true,
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return err
	}

	// the pool is only kept once the schema is in place
	if err := r.migrate(db); err != nil {
		sqlDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	r.db = db
	return nil
}

// Migrate performs database schema migrations
func (r *Repository) Migrate() error {
	return r.migrate(r.db)
}

func (r *Repository) migrate(db *gorm.DB) error {
	r.logger.Info().Msg("Running database migrations...")

	migrator := db.Migrator()

	// Order matters due to foreign keys
	tables := []interface{}{
		&models.Account{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	}

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := migrator.CreateTable(table); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
	}

	r.logger.Info().Msg("✓ Database migrations completed")
	return nil
}

// Seed registers default carriers so that checkouts can be assigned one
func (r *Repository) Seed(ctx context.Context) error {
	var carrierCount int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("role = ?", models.RoleCarrier).Count(&carrierCount).Error; err != nil {
		return translate(err, "Failed to inspect carriers")
	}
	if carrierCount > 0 {
		r.logger.Info().Msg("Seed data already exists, skipping...")
		return nil
	}

	r.logger.Info().Msg("Seeding database with default carriers...")
	carriers := []models.Account{
		{DisplayName: "FastShip Express", Role: models.RoleCarrier},
		{DisplayName: "Global Logistics", Role: models.RoleCarrier},
		{DisplayName: "Quick Delivery Co", Role: models.RoleCarrier},
	}
	for _, carrier := range carriers {
		if err := r.db.WithContext(ctx).Create(&carrier).Error; err != nil {
			return translate(err, "Failed to seed carrier")
		}
	}

	r.logger.Info().Msg("✓ Database seeding completed")
	return nil
}

// Ping checks that the database answers
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return shoperr.New(shoperr.ConnectionFailure, "Database unavailable", "not connected")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return translate(err, "Database unavailable")
	}
	return translate(sqlDB.PingContext(ctx), "Database unavailable")
}

// Close releases the connection pool
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate classifies a store error. Errors that are already classified
// pass through unchanged.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}

	var classified *shoperr.Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shoperr.New(shoperr.Timeout, "Store operation timed out", err.Error())
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return shoperr.New(shoperr.ConnectionFailure, "Database unreachable", err.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation, PgErrForeignKeyViolation, PgErrCheckViolation:
			return shoperr.New(shoperr.ConstraintViolation, message, pgErr.Message)
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return shoperr.New(shoperr.ConstraintViolation, message, err.Error())
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shoperr.New(shoperr.NotFound, message, err.Error())
	}

	return shoperr.New(shoperr.DatabaseError, message, err.Error())
}
