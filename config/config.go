/*
config.go - Process configuration

PURPOSE:
  Collects every setting the server and the CLI need in one struct.

PRECEDENCE (later wins):
  1. Defaults
  2. YAML file (optional, --config)
  3. .env file (optional; never overrides variables already exported)
  4. WORKTIME_* environment variables

ENVIRONMENT:
  WORKTIME_PORT                 HTTP port
  WORKTIME_DB                   SQLite path (":memory:" for throwaway runs)
  WORKTIME_LOG_LEVEL            debug | info | warn | error
  WORKTIME_LOG_FORMAT           json | console
  WORKTIME_TIMEZONE             IANA zone used to split days and windows
  WORKTIME_LEGAL_CONFIG         YAML/JSON rule table replacing the default
  WORKTIME_INTEGRITY_INTERVAL   Scheduler period, e.g. "1h" (0 disables)
  WORKTIME_BACKFILL_CONCURRENCY Users replayed in parallel
  WORKTIME_CORS_ORIGINS         Comma-separated allowed origins

SEE ALSO:
  - legal/factory.go: Rule table file format
  - cmd/server/main.go: Flags layered on top
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/warp/worktime-engine/legal"
)

const envPrefix = "WORKTIME_"

type Config struct {
	Port      int    `yaml:"port"`
	DBPath    string `yaml:"db"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	TimeZone    string `yaml:"timezone"`
	LegalConfig string `yaml:"legal_config"`

	IntegrityInterval   time.Duration `yaml:"integrity_interval"`
	BackfillConcurrency int           `yaml:"backfill_concurrency"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:                8080,
		DBPath:              "worktime.db",
		LogLevel:            "info",
		LogFormat:           "json",
		IntegrityInterval:   time.Hour,
		BackfillConcurrency: 4,
		CORSOrigins:         []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load layers path (may be empty) and the environment over Default.
// envFiles defaults to ".env"; missing files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Port = n
	}
	if v, ok := lookup("DB"); ok {
		c.DBPath = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookup("TIMEZONE"); ok {
		c.TimeZone = v
	}
	if v, ok := lookup("LEGAL_CONFIG"); ok {
		c.LegalConfig = v
	}
	if v, ok := lookup("INTEGRITY_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sINTEGRITY_INTERVAL: %w", envPrefix, err)
		}
		c.IntegrityInterval = d
	}
	if v, ok := lookup("BACKFILL_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBACKFILL_CONCURRENCY: %w", envPrefix, err)
		}
		c.BackfillConcurrency = n
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.IntegrityInterval < 0 {
		return fmt.Errorf("integrity interval %s is negative", c.IntegrityInterval)
	}
	if c.BackfillConcurrency <= 0 {
		return fmt.Errorf("backfill concurrency must be positive, got %d", c.BackfillConcurrency)
	}
	return nil
}

// Legal loads the rule table: LegalConfig when set, otherwise the
// Colombian default, moved to TimeZone when one is given.
func (c Config) Legal() (*legal.Config, error) {
	rules := legal.Colombia2025()
	if c.LegalConfig != "" {
		loaded, err := legal.LoadFile(c.LegalConfig)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	if c.TimeZone != "" && c.TimeZone != rules.TimeZone {
		return rules.WithTimeZone(c.TimeZone)
	}
	return rules, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
