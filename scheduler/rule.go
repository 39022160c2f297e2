package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ConfigError reports an invalid schedule configuration. It always surfaces
// at construction time, before any timer exists.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scheduler: %s", e.Reason)
}

// RuleConfig describes when a job fires. Exactly one of Interval or Cron
// must be set.
type RuleConfig struct {
	// Interval fires every fixed duration. The first fire happens after one
	// full interval elapses from start, unless Immediate is set.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Cron fires per a cron recurrence expression (five fields:
	// minute hour day-of-month month day-of-week, or a descriptor such as
	// "@hourly").
	Cron string `yaml:"cron" mapstructure:"cron"`
	// Immediate adds one fire at start, ahead of the recurrence.
	Immediate bool `yaml:"immediate" mapstructure:"immediate"`
}

// Rule is a validated schedule recurrence. Both variants normalize to a cron
// schedule, so the job's timer loop only ever deals with "next fire after t".
type Rule struct {
	cfg      RuleConfig
	schedule cron.Schedule
}

// NewRule validates a RuleConfig. Supplying both an interval and a cron
// expression, or neither, is a ConfigError; so is a malformed expression or
// a non-positive interval.
func NewRule(cfg RuleConfig) (*Rule, error) {
	switch {
	case cfg.Interval != 0 && cfg.Cron != "":
		return nil, &ConfigError{Reason: "rule declares both an interval and a cron expression; exactly one is allowed"}
	case cfg.Interval == 0 && cfg.Cron == "":
		return nil, &ConfigError{Reason: "rule declares neither an interval nor a cron expression"}
	case cfg.Interval < 0:
		return nil, &ConfigError{Reason: fmt.Sprintf("interval must be positive (got %s)", cfg.Interval)}
	}

	if cfg.Cron != "" {
		schedule, err := cron.ParseStandard(cfg.Cron)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("invalid cron expression %q: %v", cfg.Cron, err)}
		}
		return &Rule{cfg: cfg, schedule: schedule}, nil
	}
	return &Rule{cfg: cfg, schedule: fixedDelay{delay: cfg.Interval}}, nil
}

// fixedDelay fires one full duration after t, at the duration's own
// resolution. cron.Every rounds to whole seconds and cannot represent
// sub-second intervals.
type fixedDelay struct {
	delay time.Duration
}

func (s fixedDelay) Next(t time.Time) time.Time {
	return t.Add(s.delay)
}

// Next returns the first fire time after t.
func (r *Rule) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

// Immediate reports whether the rule fires once at start.
func (r *Rule) Immediate() bool { return r.cfg.Immediate }

// String describes the rule for logging.
func (r *Rule) String() string {
	if r.cfg.Cron != "" {
		return "cron " + r.cfg.Cron
	}
	return "every " + r.cfg.Interval.String()
}
