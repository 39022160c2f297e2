package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. PIPEKIT_STATE_BACKEND.
const envPrefix = "PIPEKIT"

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path instead of searching.
func WithConfigFile(path string) LoaderOption {
	return func(lo *loaderOptions) { lo.configFile = path }
}

// WithEnvFile sets an explicit .env file path instead of searching.
func WithEnvFile(path string) LoaderOption {
	return func(lo *loaderOptions) { lo.envFile = path }
}

// Load populates cfg from a YAML config file and environment variables,
// then applies defaults and validates. Precedence, lowest to highest:
// YAML file, .env file, process environment.
func Load(cfg *Config, opts ...LoaderOption) error {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.envFile == "" {
		lo.envFile = findFirst(".env", "config/.env")
	}
	if lo.envFile != "" {
		if err := godotenv.Load(lo.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", lo.envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if lo.configFile == "" {
		lo.configFile = findFirst("config.yml", "config.yaml", "config/config.yml", "config/config.yaml")
	}
	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", lo.configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg.Validate()
}

// bindEnvKeys registers the known config keys so AutomaticEnv sees them
// even when they are absent from the YAML file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"name", "environment", "debug", "pipeline", "max_parallel",
		"logging.level", "logging.format", "logging.output",
		"logging.no_color", "logging.timestamp", "logging.caller",
		"state.policy", "state.backend", "state.path",
		"state.redis.addr", "state.redis.password", "state.redis.db", "state.redis.key_prefix",
		"state.postgres.dsn", "state.postgres.table",
		"schedule.interval", "schedule.cron", "schedule.immediate",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

func findFirst(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
