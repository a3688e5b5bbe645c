// Package controlplane provides the HTTP API and service layer for Mealtime.
package controlplane

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fentz26/mealtime/internal/calendar"
	"github.com/fentz26/mealtime/internal/models"
	"github.com/fentz26/mealtime/internal/scheduler"
)

// Engine is the part of the reminder engine the API drives.
type Engine interface {
	ActiveReminders() []models.Reminder
	History() []models.Reminder
	MissedMeals() int
	Acknowledge(id string, action models.AckAction, snoozeMinutes int) error
	ApplyFromSource() (scheduler.ApplyResult, error)
	CancelAll()
}

// Store is the persistence the API reads directly.
type Store interface {
	Ping(ctx context.Context) error
	ListTransitions(reminderID string, limit int) ([]models.Transition, error)
}

// Service provides the control plane business logic.
type Service struct {
	engine Engine
	store  Store
}

// NewService creates a new control plane service.
func NewService(e Engine, s Store) *Service {
	return &Service{
		engine: e,
		store:  s,
	}
}

// Status summarises the engine for dashboards.
type Status struct {
	MissedMeals int              `json:"missed_meals"`
	Active      int              `json:"active"`
	Next        *models.Reminder `json:"next,omitempty"`
}

// Status returns the missed counter and the next scheduled reminder.
func (s *Service) Status() Status {
	active := s.engine.ActiveReminders()
	st := Status{
		MissedMeals: s.engine.MissedMeals(),
		Active:      len(active),
	}
	for i := range active {
		if active[i].Status == models.StatusScheduled {
			st.Next = &active[i]
			break
		}
	}
	return st
}

// ListReminders returns active reminders, optionally filtered by status.
func (s *Service) ListReminders(status string) []models.Reminder {
	all := s.engine.ActiveReminders()
	if status == "" {
		return all
	}
	out := make([]models.Reminder, 0, len(all))
	for _, r := range all {
		if string(r.Status) == status {
			out = append(out, r)
		}
	}
	return out
}

// History returns the most recent history entries, newest first.
func (s *Service) History(limit int) []models.Reminder {
	all := s.engine.History()
	out := make([]models.Reminder, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Acknowledge forwards a user answer to the engine. A malformed action is
// ignored like an unknown id; ok reports whether the action was understood.
func (s *Service) Acknowledge(id, action string, snoozeMinutes int) (ok bool, err error) {
	if id == "" {
		return false, fmt.Errorf("%w: reminder id required", ErrInvalidRequest)
	}
	a, ok := models.ParseAckAction(action)
	if !ok {
		return false, nil
	}
	if err := s.engine.Acknowledge(id, a, snoozeMinutes); err != nil {
		return false, err
	}
	return true, nil
}

// Calendar writes upcoming meals as an iCalendar feed.
func (s *Service) Calendar(w io.Writer) error {
	return calendar.Encode(w, s.engine.ActiveReminders(), time.Now())
}

// Apply re-reads the settings and re-arms reminders.
func (s *Service) Apply() (scheduler.ApplyResult, error) {
	return s.engine.ApplyFromSource()
}

// Cancel disarms every active reminder.
func (s *Service) Cancel() {
	s.engine.CancelAll()
}

// Log returns audit transitions, newest first.
func (s *Service) Log(reminderID string, limit int) ([]models.Transition, error) {
	return s.store.ListTransitions(reminderID, limit)
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
