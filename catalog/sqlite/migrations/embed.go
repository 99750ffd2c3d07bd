// Package migrations embeds the catalog schema migrations.
package migrations

import "embed"

// FS holds the *.up.sql files, applied in name order.
//
//go:embed *.sql
var FS embed.FS
