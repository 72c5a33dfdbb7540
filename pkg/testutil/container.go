//go:build integration

package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultPostgresImage = "postgres:15-alpine"
	testDatabase         = "agrostock_test"
	testCredential       = "test"
)

// PostgresContainer is a throwaway Postgres for integration tests
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// postgresImage lets CI pin the server version with AGRO_TEST_POSTGRES_IMAGE
func postgresImage() string {
	if img := os.Getenv("AGRO_TEST_POSTGRES_IMAGE"); img != "" {
		return img
	}
	return defaultPostgresImage
}

// StartPostgres boots a container and waits until it accepts connections.
// Postgres logs the ready line twice: once for the init server, once for the real one.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(postgresImage()),
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testCredential),
		postgres.WithPassword(testCredential),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}
	return &PostgresContainer{PostgresContainer: c, DSN: dsn}, nil
}

// Connect opens a sqlx pool against the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect test postgres: %w", err)
	}
	return db, nil
}
