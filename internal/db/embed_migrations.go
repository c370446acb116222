// Package db holds the embedded SQL migrations and the runner that applies them.
package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
