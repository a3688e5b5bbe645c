// Package config loads Mealtime's process configuration and meal settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fentz26/mealtime/internal/models"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a
// double underscore: MEALTIME_MEALS__BREAKFAST__TIME=07:30.
const EnvPrefix = "MEALTIME_"

// ErrConfigExists is returned by WriteDefault when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

type Config struct {
	DBPath    string                `koanf:"db_path" yaml:"db_path"`
	Listen    string                `koanf:"listen" yaml:"listen"`
	Sweep     SweepConfig           `koanf:"sweep" yaml:"sweep"`
	Notify    NotifyConfig          `koanf:"notify" yaml:"notify"`
	Reminders RemindersConfig       `koanf:"reminders" yaml:"reminders"`
	Meals     map[string]MealConfig `koanf:"meals" yaml:"meals"`
}

type SweepConfig struct {
	Interval int `koanf:"interval" yaml:"interval"` // seconds
}

type NotifyConfig struct {
	Console bool `koanf:"console" yaml:"console"`
	Desktop bool `koanf:"desktop" yaml:"desktop"`
}

type RemindersConfig struct {
	EscalationDelay int `koanf:"escalation_delay" yaml:"escalation_delay"` // minutes
	MaxMissedMeals  int `koanf:"max_missed_meals" yaml:"max_missed_meals"`
	SnoozeMinutes   int `koanf:"snooze_minutes" yaml:"snooze_minutes"`
	DefaultPrepLead int `koanf:"default_prep_lead" yaml:"default_prep_lead"` // minutes
}

// MealConfig is one entry under meals. The key is the meal kind:
// breakfast, lunch, dinner or snack:<label>.
type MealConfig struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled"`
	Time     string `koanf:"time" yaml:"time"`
	PrepLead *int   `koanf:"prep_lead" yaml:"prep_lead,omitempty"` // minutes; unset uses reminders.default_prep_lead
}

// Load layers defaults, the YAML file at configPath (when it exists) and
// MEALTIME_ environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.DBPath = expandPath(cfg.DBPath)
	return &cfg, nil
}

// envKey maps MEALTIME_SWEEP__INTERVAL to sweep.interval.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	s, err := c.Settings()
	if err != nil {
		return err
	}
	for kind, m := range s.Meals {
		if !m.Enabled {
			continue
		}
		if _, err := models.ParseTimeOfDay(m.Time); err != nil {
			return fmt.Errorf("meals.%s: %w", kind, err)
		}
	}
	return s.Config.Validate()
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.Interval) * time.Second
}

// Settings converts the meals and reminders sections into engine settings.
func (c *Config) Settings() (models.Settings, error) {
	meals := make(models.MealSettings, len(c.Meals))
	leads := make(map[models.MealKind]int)

	names := make([]string, 0, len(c.Meals))
	for name := range c.Meals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, err := models.ParseMealKind(name)
		if err != nil {
			return models.Settings{}, fmt.Errorf("meals: %w", err)
		}
		m := c.Meals[name]
		meals[kind] = models.MealSetting{Enabled: m.Enabled, Time: m.Time}
		if m.PrepLead != nil {
			leads[kind] = *m.PrepLead
		}
	}

	return models.Settings{
		Meals: meals,
		Config: models.Config{
			PrepLeadMinutes:        leads,
			DefaultPrepLeadMinutes: c.Reminders.DefaultPrepLead,
			EscalationDelayMinutes: c.Reminders.EscalationDelay,
			MaxMissedMeals:         c.Reminders.MaxMissedMeals,
			SnoozeMinutes:          c.Reminders.SnoozeMinutes,
		},
	}, nil
}

// Source serves meal settings to the engine, re-reading the config file on
// every call so edits are picked up by the next apply.
type Source struct {
	path string
}

// NewSource creates a Source for the config file at path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

func (s *Source) load() (models.Settings, error) {
	cfg, err := Load(s.path)
	if err != nil {
		return models.Settings{}, err
	}
	return cfg.Settings()
}

func (s *Source) GetMealSettings() (models.MealSettings, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	return st.Meals, nil
}

func (s *Source) GetConfig() (models.Config, error) {
	st, err := s.load()
	if err != nil {
		return models.Config{}, err
	}
	return st.Config, nil
}

// WriteDefault writes the default configuration as YAML to path. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	path = expandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := yamlv3.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	header := "# Mealtime configuration. Times are local HH:MM, durations in minutes\n# unless noted. Add snacks as meals.\"snack:afternoon\".\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
