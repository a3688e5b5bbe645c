package scheduler

import (
	"fmt"
	"time"

	"github.com/fentz26/mealtime/internal/models"
)

// Acknowledge applies the user's answer to an active reminder. Unknown
// ids, terminal reminders and actions the state machine does not allow
// are accepted as no-ops so duplicate or late events are harmless.
// snoozeMinutes <= 0 falls back to the configured snooze length.
func (e *Engine) Acknowledge(id string, action models.AckAction, snoozeMinutes int) error {
	e.mu.Lock()
	defer e.unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	ent, ok := e.active[id]
	if !ok || ent.rem.Status.Terminal() {
		return nil
	}

	now := e.clock.Now()
	r := &ent.rem
	details := string(action)
	var next *models.Reminder

	switch action {
	case models.AckEaten:
		if !r.Status.CanTransition(models.StatusCompleted) {
			return nil
		}
		r.Status = models.StatusCompleted
		r.CompletedAt = &now
		if within(now, r.ScheduledTime, e.opts.EatenGraceWindow) && e.missed > 0 {
			e.missed--
			details = fmt.Sprintf("eaten, missed=%d", e.missed)
			e.checkThresholdLocked()
		}

	case models.AckSkip:
		if !r.Status.CanTransition(models.StatusSkipped) {
			return nil
		}
		r.Status = models.StatusSkipped
		r.SkippedAt = &now
		e.missed++
		details = fmt.Sprintf("skip, missed=%d", e.missed)
		e.checkThresholdLocked()

	case models.AckSnooze:
		if !r.Status.CanTransition(models.StatusSnoozed) {
			return nil
		}
		if snoozeMinutes <= 0 {
			snoozeMinutes = e.config.SnoozeMinutes
		}
		r.Status = models.StatusSnoozed
		at := now.Add(time.Duration(snoozeMinutes) * time.Minute)
		n := newReminder(r.Meal, r.Phase, at, at, r.Day, r.SnoozeCount+1)
		next = &n
		details = fmt.Sprintf("snooze %dm, next=%s", snoozeMinutes, next.ID)

	case models.AckAcknowledge:
		if !r.Status.CanTransition(models.StatusAcknowledged) {
			return nil
		}
		r.Status = models.StatusAcknowledged

	default:
		return nil
	}

	ent.stopTimers()
	delete(e.active, id)
	e.upsertHistoryLocked(*r)
	e.record("reminder.acknowledged", map[string]interface{}{"id": id, "action": action}, string(r.Status), id, details)
	if next != nil {
		if _, seen := e.histIdx[next.ID]; !seen {
			e.armLocked(*next, now)
		}
	}
	e.saveLocked()
	return nil
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
