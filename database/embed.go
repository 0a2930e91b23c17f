package database

import "embed"

// EmbeddedMigrations ships the schema inside the binary.
// Use Open, or fs.Sub(EmbeddedMigrations, "migrations") with New.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
