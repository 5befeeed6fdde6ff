/*
Package config loads server and engine configuration.

PURPOSE:
  One YAML file carries every tunable: HTTP port, database path, matcher
  tolerances, baseline window, anomaly thresholds, and the scheduler
  interval. Flags override the file, the file overrides defaults.

FILE FORMAT (YAML):
  port: 8080
  db_path: irrigation.db
  matcher:
    time_tolerance_minutes: 30
    future_buffer_minutes: 10
  baseline:
    window_days: 30
    min_samples: 7
  anomalies:
    usage_z_score: 2.0
    duration_z_score: 1.5
    efficiency_delta: 0.3
  scheduler:
    enabled: true
    check_interval_minutes: 60

SEE ALSO:
  - cmd/server/main.go: Flag handling and startup
  - engine/reconcile.go: The engine Config this feeds
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdantworks/irrigation-engine/engine"
)

// Config is the full server configuration.
type Config struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`

	Matcher   MatcherConfig   `yaml:"matcher"`
	Baseline  BaselineConfig  `yaml:"baseline"`
	Anomalies AnomalyConfig   `yaml:"anomalies"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type MatcherConfig struct {
	TimeToleranceMinutes int `yaml:"time_tolerance_minutes"`
	FutureBufferMinutes  int `yaml:"future_buffer_minutes"`
}

type BaselineConfig struct {
	WindowDays int `yaml:"window_days"`
	MinSamples int `yaml:"min_samples"`
}

type AnomalyConfig struct {
	UsageZScore     float64 `yaml:"usage_z_score"`
	DurationZScore  float64 `yaml:"duration_z_score"`
	EfficiencyDelta float64 `yaml:"efficiency_delta"`
}

type SchedulerConfig struct {
	Enabled              bool `yaml:"enabled"`
	CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
}

// Default returns the production defaults, mirroring the engine's own.
func Default() Config {
	eng := engine.DefaultConfig()
	return Config{
		Port:   8080,
		DBPath: "irrigation.db",
		Matcher: MatcherConfig{
			TimeToleranceMinutes: eng.Matcher.TimeToleranceMinutes,
			FutureBufferMinutes:  eng.Matcher.FutureBufferMinutes,
		},
		Baseline: BaselineConfig{
			WindowDays: eng.Baseline.WindowDays,
			MinSamples: eng.Baseline.MinSamples,
		},
		Anomalies: AnomalyConfig{
			UsageZScore:     eng.Anomalies.UsageZScore,
			DurationZScore:  eng.Anomalies.DurationZScore,
			EfficiencyDelta: eng.Anomalies.EfficiencyDelta,
		},
		Scheduler: SchedulerConfig{
			Enabled:              true,
			CheckIntervalMinutes: 60,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine would silently clamp.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Matcher.TimeToleranceMinutes <= 0 {
		return fmt.Errorf("matcher.time_tolerance_minutes must be positive")
	}
	if c.Baseline.WindowDays <= 0 {
		return fmt.Errorf("baseline.window_days must be positive")
	}
	if c.Baseline.MinSamples < 2 {
		return fmt.Errorf("baseline.min_samples must be at least 2 for a defined std dev")
	}
	if c.Anomalies.UsageZScore <= 0 || c.Anomalies.DurationZScore <= 0 {
		return fmt.Errorf("anomaly z-score thresholds must be positive")
	}
	if c.Scheduler.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.check_interval_minutes must be positive")
	}
	return nil
}

// EngineConfig converts the loaded values into the engine's Config.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		Matcher: engine.MatcherConfig{
			TimeToleranceMinutes: c.Matcher.TimeToleranceMinutes,
			FutureBufferMinutes:  c.Matcher.FutureBufferMinutes,
		},
		Baseline: engine.BaselineConfig{
			WindowDays: c.Baseline.WindowDays,
			MinSamples: c.Baseline.MinSamples,
		},
		Anomalies: engine.AnomalyThresholds{
			UsageZScore:     c.Anomalies.UsageZScore,
			DurationZScore:  c.Anomalies.DurationZScore,
			EfficiencyDelta: c.Anomalies.EfficiencyDelta,
		},
	}
}

// CheckInterval returns the scheduler sweep interval as a duration.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.Scheduler.CheckIntervalMinutes) * time.Minute
}
