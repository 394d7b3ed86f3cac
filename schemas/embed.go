// Package schemas provides the embedded cache table migrations.
package schemas

import "embed"

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

// Migrations contains all SQL migration files, named for golang-migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
