// Package models defines the core domain types for Mealtime.
package models

import (
	"fmt"
	"strings"
	"time"
)

// MealKind identifies a meal. Snacks carry a free-text label ("snack:afternoon").
type MealKind string

const (
	Breakfast MealKind = "breakfast"
	Lunch     MealKind = "lunch"
	Dinner    MealKind = "dinner"

	snackPrefix = "snack:"
)

// Snack returns the MealKind for a named snack.
func Snack(label string) MealKind {
	return MealKind(snackPrefix + strings.TrimSpace(label))
}

// ParseMealKind validates s and returns it as a MealKind.
func ParseMealKind(s string) (MealKind, error) {
	k := MealKind(strings.ToLower(strings.TrimSpace(s)))
	if k.IsSnack() {
		// keep the label's original casing
		k = Snack(strings.TrimSpace(s)[len(snackPrefix):])
	}
	if !k.Valid() {
		return "", fmt.Errorf("unknown meal kind %q", s)
	}
	return k, nil
}

// IsSnack reports whether k is a labelled snack.
func (k MealKind) IsSnack() bool {
	return strings.HasPrefix(strings.ToLower(string(k)), snackPrefix)
}

// Label returns the snack label, or the meal name for the fixed meals.
func (k MealKind) Label() string {
	if k.IsSnack() {
		return string(k)[len(snackPrefix):]
	}
	return string(k)
}

// Valid reports whether k is one of the closed set of meal kinds.
func (k MealKind) Valid() bool {
	switch k {
	case Breakfast, Lunch, Dinner:
		return true
	}
	return k.IsSnack() && k.Label() != ""
}

// DisplayName is the human form used in notification copy.
func (k MealKind) DisplayName() string {
	label := k.Label()
	if label == "" {
		return ""
	}
	name := strings.ToUpper(label[:1]) + label[1:]
	if k.IsSnack() {
		return name + " snack"
	}
	return name
}

// ReminderPhase is which of the two reminders of a meal instance fired.
type ReminderPhase string

const (
	PhasePrep   ReminderPhase = "prep"
	PhaseAction ReminderPhase = "action"
)

// ReminderStatus represents the current state of a reminder.
type ReminderStatus string

const (
	StatusScheduled    ReminderStatus = "scheduled"
	StatusSent         ReminderStatus = "sent"
	StatusCompleted    ReminderStatus = "completed"
	StatusSnoozed      ReminderStatus = "snoozed"
	StatusSkipped      ReminderStatus = "skipped"
	StatusMissed       ReminderStatus = "missed"
	StatusEscalated    ReminderStatus = "escalated"
	StatusAcknowledged ReminderStatus = "acknowledged"
)

var transitions = map[ReminderStatus][]ReminderStatus{
	StatusScheduled: {StatusSent},
	StatusSent:      {StatusCompleted, StatusSkipped, StatusSnoozed, StatusMissed},
	StatusMissed:    {StatusEscalated},
	StatusEscalated: {StatusCompleted, StatusAcknowledged},
}

// CanTransition reports whether the reminder state machine allows s → to.
func (s ReminderStatus) CanTransition(to ReminderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s ReminderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// AckAction is what the user did with a shown reminder.
type AckAction string

const (
	AckEaten       AckAction = "eaten"
	AckSnooze      AckAction = "snooze"
	AckSkip        AckAction = "skip"
	AckAcknowledge AckAction = "acknowledge"
)

// ParseAckAction validates s as an AckAction.
func ParseAckAction(s string) (AckAction, bool) {
	switch a := AckAction(strings.ToLower(strings.TrimSpace(s))); a {
	case AckEaten, AckSnooze, AckSkip, AckAcknowledge:
		return a, true
	}
	return "", false
}

// Reminder is one armed or fired reminder for a meal instance.
type Reminder struct {
	ID            string         `json:"id"`
	Meal          MealKind       `json:"mealType"`
	Phase         ReminderPhase  `json:"reminderType"`
	ScheduledTime time.Time      `json:"scheduledTime"`
	Day           string         `json:"day"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Status        ReminderStatus `json:"status"`
	SnoozeCount   int            `json:"snoozeCount"`
	SentAt        *time.Time     `json:"sentAt,omitempty"`
	EscalatedAt   *time.Time     `json:"escalatedAt,omitempty"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	SkippedAt     *time.Time     `json:"skippedAt,omitempty"`
	// CancelledAt is set when a fired reminder is withdrawn without an
	// answer. It is never restored on restart.
	CancelledAt   *time.Time     `json:"cancelledAt,omitempty"`
}

// Transition is an audit record of a reminder state change.
type Transition struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	ReminderID string    `json:"reminder_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
