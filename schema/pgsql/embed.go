// Package pgsql embeds the PostgreSQL schema of the SLA engine.
package pgsql

import _ "embed"

//go:embed schema.sql
var Schema string
