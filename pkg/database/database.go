package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agrostock/agrostock-backend/pkg/config"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const healthTimeout = time.Second

// DB is the shared Postgres handle used by every repository
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// New opens the pool described by cfg and verifies it with a ping
func New(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.WithComponent("database").Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("postgres pool ready")

	return Wrap(conn, log), nil
}

// Wrap adopts an existing sqlx handle, e.g. one backed by sqlmock
func Wrap(conn *sqlx.DB, log *logger.Logger) *DB {
	if log == nil {
		log = logger.Nop()
	}
	return &DB{DB: conn, logger: log.WithComponent("database")}
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Health pings the database and reports pool usage for the health endpoint
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := db.Stats()
	status := map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(stats.OpenConnections),
		"in_use":           strconv.Itoa(stats.InUse),
		"idle":             strconv.Itoa(stats.Idle),
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// Transaction runs fn inside one transaction. fn's error rolls it back and is
// returned unchanged so callers can still match on AppError kinds.
func (db *DB) Transaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "db.transaction")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		span.SetAttributes(attribute.Bool("db.rolled_back", true))
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrate applies an idempotent schema script
func (db *DB) Migrate(ctx context.Context, schema string) error {
	ctx, span := telemetry.StartSpan(ctx, "db.migrate")
	defer span.End()

	start := time.Now()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema apply failed")
		return fmt.Errorf("apply schema: %w", err)
	}
	db.logger.Info().Dur("took", time.Since(start)).Msg("schema applied")
	return nil
}
