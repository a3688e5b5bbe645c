// Package scheduler arms meal reminders, escalates the ones nobody answered
// and keeps the engine state persisted across restarts.
package scheduler

import "time"

// Options defines the engine's runtime parameters. Reminder policy
// (lead times, escalation delay, thresholds) lives in models.Config.
type Options struct {
	// SweepInterval is how often the backstop sweep runs.
	SweepInterval time.Duration
	// StateKey is the key the state snapshot is stored under.
	StateKey string
	// HistoryRetention drops history older than this on load.
	HistoryRetention time.Duration
	// EatenGraceWindow is how close to the scheduled time an "eaten"
	// acknowledgment must land to take one miss off the counter.
	EatenGraceWindow time.Duration
	// EscalatedExpiry retires escalated reminders nobody acknowledged.
	EscalatedExpiry time.Duration
}

// DefaultOptions returns the default engine options.
func DefaultOptions() *Options {
	return &Options{
		SweepInterval:    time.Minute,
		StateKey:         "mealtime.reminder_state",
		HistoryRetention: 7 * 24 * time.Hour,
		EatenGraceWindow: 2 * time.Hour,
		EscalatedExpiry:  24 * time.Hour,
	}
}

func (o *Options) withDefaults() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}
	out := *o
	if out.SweepInterval <= 0 {
		out.SweepInterval = def.SweepInterval
	}
	if out.StateKey == "" {
		out.StateKey = def.StateKey
	}
	if out.HistoryRetention <= 0 {
		out.HistoryRetention = def.HistoryRetention
	}
	if out.EatenGraceWindow <= 0 {
		out.EatenGraceWindow = def.EatenGraceWindow
	}
	if out.EscalatedExpiry <= 0 {
		out.EscalatedExpiry = def.EscalatedExpiry
	}
	return &out
}
