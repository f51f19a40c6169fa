// Package migrations embeds the PostgreSQL roster schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
