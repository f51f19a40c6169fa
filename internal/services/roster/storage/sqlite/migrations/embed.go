// Package migrations embeds the SQLite roster schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
