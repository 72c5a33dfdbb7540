// Package testutil provides testing utilities for agrostock backend services.
// It includes sqlmock helpers, mock publishers and ledger fixtures. The
// testcontainers-backed PostgreSQL suite is built with the integration tag.
package testutil
