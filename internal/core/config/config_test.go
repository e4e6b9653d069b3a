package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadYAMLAndDefaults(t *testing.T) {
	p := writeYAML(t, `
app:
  http:
    port: 9090
jwt:
  secret: "0123456789abcdef-secret"
db:
  driver: postgres
  dsn: "postgres://takas@localhost/takas"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 15, cfg.JWT.AccessTokenTTLMin)
	assert.Equal(t, "takas-go", cfg.JWT.Issuer)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoadEnvOverride(t *testing.T) {
	p := writeYAML(t, "jwt:\n  secret: \"0123456789abcdef-secret\"\n")
	t.Setenv("APP_DB_ADMIN_DSN", "postgres://service@localhost/takas")
	t.Setenv("APP_REDIS_ADDR", "redis:6379")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.True(t, cfg.AdminEnabled())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "0123456789abcdef-secret")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
}

func TestLoadRejectsWeakSecret(t *testing.T) {
	p := writeYAML(t, "jwt:\n  secret: short\n")
	_, err := Load(p)
	assert.Error(t, err)
}
