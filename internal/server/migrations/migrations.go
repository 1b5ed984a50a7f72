// Package migrations embeds the goose SQL migrations for every supported
// backend variant. Each variant lives in its own directory of the FS.
package migrations

import "embed"

// Directories inside Migrations, one per backend variant.
const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
	MySQLDir    = "mysql"
)

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var Migrations embed.FS
