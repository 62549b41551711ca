// Package migrations embeds the SQL applied by cmd/migrate.
package migrations

import "embed"

//go:embed postgres/*.up.sql
var Postgres embed.FS
