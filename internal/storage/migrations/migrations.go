// Package migrations embeds the SQL schema for stream telemetry.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
