package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
mode: dev
server:
  addr: ":9090"
database:
  host: 127.0.0.1
  port: 3306
  user: lendme
  password: secret
  dbname: lendme
auth:
  jwt_secret: s3cret
loan:
  period_days: 14
  extension_days: 7
  extend_window_days: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "lendme", cfg.DB.DBName)
	assert.Equal(t, 14, cfg.Loan.PeriodDays)
	// unset token TTL falls back to the default
	assert.Equal(t, 24*7, cfg.Auth.TokenTTLHrs)
}

func TestLoadConfig_LoanDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: release
database:
  host: db
  port: 3306
  user: u
  password: p
  dbname: lendme
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Loan.PeriodDays)
	assert.Equal(t, 7, cfg.Loan.ExtensionDays)
	assert.Equal(t, 3, cfg.Loan.ExtendWindowDays)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
