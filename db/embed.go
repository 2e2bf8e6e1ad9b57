// Package db embeds the goose migrations for the bookstore schema.
package db

import "embed"

// Migrations holds the SQL files applied by goose at startup.
//
//go:embed migrations/*.sql
var Migrations embed.FS
