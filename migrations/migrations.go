// Package migrations embeds the SQL schema applied by `homemart migrate`.
package migrations

import "embed"

// FS holds the migration files in apply order.
//
//go:embed *.sql
var FS embed.FS
