// Package migrations embeds the notification schema for each supported driver.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
