// Package migrations embeds the goose SQL migrations for the PostgreSQL
// store.
package migrations

import "embed"

// Migrations holds the SQL migration files applied by goose.
//
//go:embed *.sql
var Migrations embed.FS
