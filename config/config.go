package config

import (
	"context"
	"fmt"

	"github.com/kbukum/pipekit/logger"
	"github.com/kbukum/pipekit/pipeline"
	"github.com/kbukum/pipekit/scheduler"
	"github.com/kbukum/pipekit/store"
)

// State backend names accepted by StateConfig.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StateConfig selects the state store backend and the commit policy
// applied to stage outputs.
type StateConfig struct {
	Policy   string               `yaml:"policy" mapstructure:"policy"`
	Backend  string               `yaml:"backend" mapstructure:"backend"`
	Path     string               `yaml:"path" mapstructure:"path"`
	Redis    store.RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Postgres store.PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// ApplyDefaults applies default values to state configuration.
func (c *StateConfig) ApplyDefaults() {
	if c.Policy == "" {
		c.Policy = string(pipeline.CommitEachStage)
	}
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Backend == BackendFile && c.Path == "" {
		c.Path = ".pipekit/state"
	}
	if c.Backend == BackendRedis {
		c.Redis.ApplyDefaults()
	}
	if c.Backend == BackendPostgres {
		c.Postgres.ApplyDefaults()
	}
}

// Validate validates state configuration.
func (c *StateConfig) Validate() error {
	switch pipeline.CommitPolicy(c.Policy) {
	case pipeline.CommitEachStage, pipeline.CommitOnSuccess:
	default:
		return fmt.Errorf("state.policy must be one of [%s, %s] (got: %s)",
			pipeline.CommitEachStage, pipeline.CommitOnSuccess, c.Policy)
	}
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Path == "" {
			return fmt.Errorf("state.path is required for the file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("state.redis.addr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("state.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend must be one of [%s, %s, %s, %s] (got: %s)",
			BackendMemory, BackendFile, BackendRedis, BackendPostgres, c.Backend)
	}
	return nil
}

// CommitPolicy returns the configured policy as the engine type.
func (c *StateConfig) CommitPolicy() pipeline.CommitPolicy {
	return pipeline.CommitPolicy(c.Policy)
}

// OpenStore constructs the configured store backend. Call Validate first.
func (c *StateConfig) OpenStore(ctx context.Context) (store.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return store.NewMemory(), nil
	case BackendFile:
		return store.NewFile(c.Path)
	case BackendRedis:
		return store.NewRedis(c.Redis), nil
	case BackendPostgres:
		return store.NewPostgres(ctx, c.Postgres)
	}
	return nil, fmt.Errorf("state.backend %q is not supported", c.Backend)
}

// Config is the orchestrator configuration. It is loaded from YAML plus
// environment overrides via Load.
type Config struct {
	Name        string               `yaml:"name" mapstructure:"name"`
	Environment string               `yaml:"environment" mapstructure:"environment"`
	Debug       bool                 `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config        `yaml:"logging" mapstructure:"logging"`
	Pipeline    string               `yaml:"pipeline" mapstructure:"pipeline"`
	MaxParallel int                  `yaml:"max_parallel" mapstructure:"max_parallel"`
	State       StateConfig          `yaml:"state" mapstructure:"state"`
	Schedule    scheduler.RuleConfig `yaml:"schedule" mapstructure:"schedule"`
}

// ApplyDefaults applies default values to the configuration.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
	if c.Debug && c.Logging.Level == "info" {
		c.Logging.Level = "debug"
	}
	c.State.ApplyDefaults()
}

// Validate validates the configuration. Schedule is only checked when one
// of its trigger fields is set, since runs can also be started directly.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("config.max_parallel must not be negative (got: %d)", c.MaxParallel)
	}
	if err := c.State.Validate(); err != nil {
		return err
	}
	if c.Schedule.Interval != 0 || c.Schedule.Cron != "" {
		if _, err := scheduler.NewRule(c.Schedule); err != nil {
			return err
		}
	}
	return nil
}
