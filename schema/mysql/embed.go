// Package mysql embeds the MySQL schema of the SLA engine.
package mysql

import _ "embed"

//go:embed schema.sql
var Schema string
