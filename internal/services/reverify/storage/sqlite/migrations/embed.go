package migrations

import "embed"

// FS contains embedded SQLite migrations for reverification storage.
//
//go:embed *.sql
var FS embed.FS
