package repository

import _ "embed"

// Schema creates the alerting tables. Every statement is idempotent.
//
//go:embed schema.sql
var Schema string
