package models

import (
	"errors"
	"fmt"
	"time"
)

// MealSetting is the user's choice for one meal.
type MealSetting struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"` // "HH:MM", local time of day
}

// MealSettings maps each configured meal to its setting.
type MealSettings map[MealKind]MealSetting

// TimeOfDay is an hour/minute pair parsed from "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24h "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the instant of this time of day on the calendar day of ref,
// in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, ref.Location())
}

// Config is the engine's reminder policy.
type Config struct {
	// PrepLeadMinutes is how long before each meal the prep reminder fires.
	PrepLeadMinutes map[MealKind]int `json:"reminderIntervals"`
	// DefaultPrepLeadMinutes applies to meals missing from PrepLeadMinutes.
	DefaultPrepLeadMinutes int `json:"defaultReminderInterval"`
	// EscalationDelayMinutes is how long an action reminder may stay
	// unacknowledged before it escalates.
	EscalationDelayMinutes int `json:"escalationDelay"`
	// MaxMissedMeals is the missed-meal count that raises the critical alert.
	MaxMissedMeals int `json:"maxMissedMeals"`
	// SnoozeMinutes is used when a snooze arrives without a duration.
	SnoozeMinutes int `json:"snoozeMinutes"`
}

// DefaultConfig returns the default reminder policy.
func DefaultConfig() Config {
	return Config{
		PrepLeadMinutes: map[MealKind]int{
			Breakfast: 30,
			Lunch:     30,
			Dinner:    30,
		},
		DefaultPrepLeadMinutes: 15,
		EscalationDelayMinutes: 15,
		MaxMissedMeals:         2,
		SnoozeMinutes:          15,
	}
}

// PrepLead returns the prep lead time for a meal.
func (c Config) PrepLead(kind MealKind) time.Duration {
	if m, ok := c.PrepLeadMinutes[kind]; ok {
		return time.Duration(m) * time.Minute
	}
	return time.Duration(c.DefaultPrepLeadMinutes) * time.Minute
}

// EscalationDelay returns the escalation delay as a duration.
func (c Config) EscalationDelay() time.Duration {
	return time.Duration(c.EscalationDelayMinutes) * time.Minute
}

// Validate checks the policy for values the engine cannot honour.
func (c Config) Validate() error {
	var errs []error
	for kind, m := range c.PrepLeadMinutes {
		if !kind.Valid() {
			errs = append(errs, fmt.Errorf("prep lead for unknown meal %q", kind))
		}
		if m < 0 {
			errs = append(errs, fmt.Errorf("prep lead for %s must not be negative", kind))
		}
	}
	if c.DefaultPrepLeadMinutes < 0 {
		errs = append(errs, errors.New("default prep lead must not be negative"))
	}
	if c.EscalationDelayMinutes <= 0 {
		errs = append(errs, errors.New("escalation delay must be positive"))
	}
	if c.MaxMissedMeals <= 0 {
		errs = append(errs, errors.New("max missed meals must be positive"))
	}
	if c.SnoozeMinutes <= 0 {
		errs = append(errs, errors.New("snooze minutes must be positive"))
	}
	return errors.Join(errs...)
}

// Settings is everything Apply needs: which meals, when, and the policy.
type Settings struct {
	Meals  MealSettings
	Config Config
}
