package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2*time.Minute, cfg.Drafts.ConflictCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Registration.ItemTxTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("CONFLICT_CACHE_TTL", "45s")
	t.Setenv("ALLOWED_ORIGINS", "https://coop.example, https://admin.coop.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.Drafts.ConflictCacheTTL)
	assert.Equal(t, []string{"https://coop.example", "https://admin.coop.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_NAME=coop_test\nREGISTRATION_TX_TIMEOUT=3s\n"), 0o600))
	chdir(t, dir)

	t.Cleanup(func() {
		os.Unsetenv("DB_NAME")
		os.Unsetenv("REGISTRATION_TX_TIMEOUT")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "coop_test", cfg.Database.Name)
	assert.Equal(t, 3*time.Second, cfg.Registration.ItemTxTimeout)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
