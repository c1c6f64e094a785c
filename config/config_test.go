package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./payroll.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Payroll.Concurrency)
	assert.False(t, cfg.Payroll.RequireSalaryProfile)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.toml", `
[app]
env = "production"

[http]
port = "9090"
read_timeout = "5s"

[payroll]
concurrency = 2
require_salary_profile = true

[metrics]
enabled = false
`)
	t.Setenv("PAYROLL_HTTP_PORT", "7070")

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTP.Port, "environment wins over the file")
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 2, cfg.Payroll.Concurrency)
	assert.True(t, cfg.Payroll.RequireSalaryProfile)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "json", cfg.Log.Format, "production defaults to json logs")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "PAYROLL_DATABASE_PATH=/tmp/from-dotenv.db\n")
	// t.Setenv registers cleanup so the variable godotenv sets is removed.
	t.Setenv("PAYROLL_DATABASE_PATH", "")
	os.Unsetenv("PAYROLL_DATABASE_PATH")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-dotenv.db", cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"negative concurrency", "[payroll]\nconcurrency = -1\n"},
		{"unknown log format", "[log]\nformat = \"xml\"\n"},
		{"relative metrics path", "[metrics]\npath = \"metrics\"\n"},
		{"broken toml", "[payroll\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.toml", tt.toml)
			_, err := config.Load(dir)
			assert.Error(t, err)
		})
	}
}
