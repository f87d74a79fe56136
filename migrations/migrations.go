// Package migrations embeds the schema migrations for each supported driver.
package migrations

import "embed"

// Embedded migration files bundled at compile time, applied in filename order.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
