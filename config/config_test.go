package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points Load at a .env that doesn't exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

// unsetForTest removes key for the duration of the test.
func unsetForTest(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", noEnvFile(t))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "worktime.yaml", `
port: 9090
db: /var/lib/worktime.db
log_format: console
integrity_interval: 15m
cors_origins: ["https://rrhh.example.co"]
`)

	cfg, err := Load(path, noEnvFile(t))

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/worktime.db", cfg.DBPath)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Minute, cfg.IntegrityInterval)
	assert.Equal(t, []string{"https://rrhh.example.co"}, cfg.CORSOrigins)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "worktime.yaml", "port: 9090\n")
	t.Setenv("WORKTIME_PORT", "7070")
	t.Setenv("WORKTIME_DB", ":memory:")
	t.Setenv("WORKTIME_INTEGRITY_INTERVAL", "0s")
	t.Setenv("WORKTIME_CORS_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load(path, noEnvFile(t))

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Zero(t, cfg.IntegrityInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_DotEnvDoesNotOverrideExported(t *testing.T) {
	// GIVEN: A .env setting both the level and the db path
	// AND: WORKTIME_LOG_LEVEL already exported
	// THEN: The exported value wins, the db path comes from .env

	unsetForTest(t, "WORKTIME_DB")
	t.Setenv("WORKTIME_LOG_LEVEL", "warn")
	env := writeFile(t, ".env", "WORKTIME_LOG_LEVEL=debug\nWORKTIME_DB=from-dotenv.db\n")

	cfg, err := Load("", env)

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port not a number", "WORKTIME_PORT", "http"},
		{"port out of range", "WORKTIME_PORT", "70000"},
		{"bad interval", "WORKTIME_INTEGRITY_INTERVAL", "hourly"},
		{"negative interval", "WORKTIME_INTEGRITY_INTERVAL", "-1m"},
		{"zero concurrency", "WORKTIME_BACKFILL_CONCURRENCY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("", noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	assert.Error(t, err)
}

func TestLegal_DefaultRules(t *testing.T) {
	rules, err := Default().Legal()

	require.NoError(t, err)
	assert.Equal(t, "America/Bogota", rules.TimeZone)
	assert.Equal(t, 480, rules.DailyOrdinaryMinutes)
}

func TestLegal_TimeZoneOverride(t *testing.T) {
	cfg := Default()
	cfg.TimeZone = "UTC"

	rules, err := cfg.Legal()

	require.NoError(t, err)
	assert.Equal(t, "UTC", rules.Location().String())

	cfg.TimeZone = "Mars/Olympus"
	_, err = cfg.Legal()
	assert.Error(t, err)
}

func TestLegal_FromFile(t *testing.T) {
	cfg := Default()
	cfg.LegalConfig = writeFile(t, "rules.yaml", "name: custom\ndaily_ordinary_minutes: 420\n")

	rules, err := cfg.Legal()

	require.NoError(t, err)
	assert.Equal(t, "custom", rules.Name)
	assert.Equal(t, 420, rules.DailyOrdinaryMinutes)
}
