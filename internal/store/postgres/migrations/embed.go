package migrations

import "embed"

// FS contains embedded Postgres migrations for ledger storage.
//
//go:embed *.sql
var FS embed.FS
