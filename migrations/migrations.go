// Package migrations embeds the SQL migrations of the local member schema.
package migrations

import "embed"

// Dir is the directory of FS holding the goose migrations.
const Dir = "sql"

//go:embed sql/*.sql
var FS embed.FS
