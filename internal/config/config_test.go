package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty temp dir so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "ocak.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 24, cfg.Auth.TokenTTLHours)
	assert.Equal(t, "https://maps.googleapis.com/maps/api/directions/json", cfg.Directions.BaseURL)
	assert.Equal(t, 8, cfg.Directions.TimeoutSecs)
	assert.InDelta(t, 10, cfg.Directions.RPS, 0.001)
	assert.Equal(t, 3, cfg.Directions.RetryAttempts)
	assert.Equal(t, 5, cfg.Directions.CircuitThreshold)
	assert.Equal(t, 30, cfg.Directions.CircuitResetSecs)
	assert.Equal(t, int64(20<<20), cfg.Import.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.Cache.ProvinceTTL())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 300, cfg.Monitoring.SnapshotIntervalSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /var/lib/ocak/ocak.db
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://harita.example.org
directions:
  api_key: yaml-key
  rps: 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/ocak/ocak.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://harita.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "yaml-key", cfg.Directions.APIKey)
	assert.InDelta(t, 2.5, cfg.Directions.RPS, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Directions.RetryAttempts)
	assert.Equal(t, 60, cfg.Cache.ProvinceTTLMinutes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("OCAK_STORE_DRIVER", "postgres")
	t.Setenv("OCAK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("OCAK_SERVER_PORT", "3000")
	t.Setenv("OCAK_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("OCAK_DIRECTIONS_API_KEY", "env-key")
	t.Setenv("OCAK_IMPORT_MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-key", cfg.Directions.APIKey)
	assert.Equal(t, int64(1024), cfg.Import.MaxUploadBytes)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFile_ExplicitPath(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 1111\n"), 0644))
	other := filepath.Join(dir, "conf", "ocak-prod.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0755))
	require.NoError(t, os.WriteFile(other, []byte("server:\n  port: 2222\nstore:\n  driver: sqlite\n"), 0644))

	cfg, err := LoadFile(other)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Directions.TimeoutSecs)
}

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	dir := chdirTemp(t)

	_, err := LoadFile(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validServe returns a Config that passes serve validation.
func validServe() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/ocak"
	cfg.Server.Port = 8080
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.TokenTTLHours = 24
	cfg.Import.MaxUploadBytes = 1 << 20
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validServe().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
	assert.Contains(t, err.Error(), "import.max_upload_bytes must be > 0")
}

func TestValidateStore_SQLite(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "ocak.db"
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.SQLitePath = ""
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path is required")
}

func TestValidateStore_UnknownDriver(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "mysql"`)
}

func TestValidateRoute(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("route")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directions.api_key is required")

	cfg.Directions.APIKey = "key"
	assert.NoError(t, cfg.Validate("route"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validServe().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
