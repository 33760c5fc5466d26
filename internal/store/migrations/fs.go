// Package migrations embeds the SQL migration files for crm.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
