package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMysqlConfig(t *testing.T) {
	c := &Config{
		Type:     "mysql",
		Host:     "db.example.com",
		Port:     3307,
		Database: "slaengine",
		User:     "app",
		Password: "secret",
	}

	config := mysqlConfig(c)

	require.Equal(t, "db.example.com:3307", config.Addr)
	require.Equal(t, "slaengine", config.DBName)
	require.Equal(t, "ANSI_QUOTES", config.Params["sql_mode"])

	// Matched rows instead of changed rows, so that repeating an update with
	// identical values still reports the row as found.
	require.True(t, config.ClientFoundRows)
	require.Contains(t, config.FormatDSN(), "clientFoundRows=true")
}

func TestMysqlConfigDefaultPort(t *testing.T) {
	c := &Config{Type: "mysql", Host: "localhost", Database: "slaengine", User: "app"}

	require.Equal(t, "localhost:3306", mysqlConfig(c).Addr)
}

func TestNewDbFromConfigUnknownType(t *testing.T) {
	_, err := NewDbFromConfig(&Config{Type: "mssql"}, nil)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "mssql"))
}
