package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 4, cfg.Workflow.RenderConcurrency)
	assert.Equal(t, 50, cfg.Discovery.MaxProspects)
	assert.Equal(t, 24*time.Hour, cfg.Metadata.CacheTTL)
	assert.Equal(t, time.Minute, cfg.Security.RateLimiting.DefaultWindow)
	assert.False(t, cfg.Email.Gmail.Enabled)
	assert.Equal(t, "outreach.events", cfg.AMQP.Exchange)
	assert.Empty(t, cfg.Tracking.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := "server:\n  port: 9000\nworkflow:\n  render_concurrency: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("OUTREACH_SERVER_PORT", "9100")
	t.Setenv("OUTREACH_TRACKING_BASE_URL", "https://mail.acme.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Workflow.RenderConcurrency)
	assert.Equal(t, "https://mail.acme.example", cfg.Tracking.BaseURL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OUTREACH_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("OUTREACH_LOG_LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDatabaseConfig_URL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, Name: "outreach", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/outreach?sslmode=disable", c.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=outreach sslmode=disable", c.DSN())
}
