package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "hivemind.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HIVEMIND_PORT")
	setString(&cfg.Server.CORSOrigin, "HIVEMIND_CORS_ORIGIN")
	setBool(&cfg.Postgres.Enabled, "HIVEMIND_JOURNAL_ENABLED")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "HIVEMIND_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "HIVEMIND_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "HIVEMIND_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "HIVEMIND_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "HIVEMIND_PG_HEALTH_CHECK")
	setBool(&cfg.NATS.Enabled, "HIVEMIND_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "HIVEMIND_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HIVEMIND_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "HIVEMIND_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "HIVEMIND_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "HIVEMIND_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "HIVEMIND_RATE_RPS")
	setInt(&cfg.Rate.Burst, "HIVEMIND_RATE_BURST")
	setString(&cfg.Auth.TokenHash, "HIVEMIND_AUTH_TOKEN_HASH")
	setInt(&cfg.Auth.BcryptCost, "HIVEMIND_AUTH_BCRYPT_COST")
	setInt64(&cfg.Cache.L1MaxSizeMB, "HIVEMIND_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.SummaryTTL, "HIVEMIND_CACHE_SUMMARY_TTL")
	setBool(&cfg.Telemetry.Enabled, "HIVEMIND_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFloat64(&cfg.Telemetry.SampleRate, "HIVEMIND_TELEMETRY_SAMPLE_RATE")

	// Coordinator
	setInt(&cfg.Coordinator.MaxConcurrentTasks, "HIVEMIND_MAX_CONCURRENT_TASKS")
	setDuration(&cfg.Coordinator.ScheduleInterval, "HIVEMIND_SCHEDULE_INTERVAL")
	setDuration(&cfg.Coordinator.ProgressInterval, "HIVEMIND_PROGRESS_INTERVAL")
	setDuration(&cfg.Coordinator.ConflictInterval, "HIVEMIND_CONFLICT_INTERVAL")
	setFloat64(&cfg.Coordinator.LoadCutoff, "HIVEMIND_LOAD_CUTOFF")
	setDuration(&cfg.Coordinator.RecencyWindow, "HIVEMIND_RECENCY_WINDOW")
	setInt(&cfg.Coordinator.ContextLogBound, "HIVEMIND_CONTEXT_LOG_BOUND")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.Enabled && cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when the journal is enabled")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Coordinator.MaxConcurrentTasks < 1 {
		return errors.New("coordinator.max_concurrent_tasks must be >= 1")
	}
	if cfg.Coordinator.LoadCutoff <= 0 || cfg.Coordinator.LoadCutoff > 1 {
		return errors.New("coordinator.load_cutoff must be in (0,1]")
	}
	if cfg.Coordinator.ContextLogBound < 1 {
		return errors.New("coordinator.context_log_bound must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
