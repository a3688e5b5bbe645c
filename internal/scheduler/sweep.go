package scheduler

import (
	"log"

	"github.com/fentz26/mealtime/internal/models"
)

// Sweep is the backstop for timers that were lost or never armed, e.g.
// after a restart or a suspended host. It fires reminders that came due,
// escalates overdue action reminders, retires stale escalations and rolls
// the two-day schedule forward. It returns the number of reminders it changed.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.unlock()

	if e.stopped {
		return 0
	}

	now := e.clock.Now()
	delay := e.config.EscalationDelay()
	changed := 0

	for _, ent := range e.activeSortedLocked() {
		r := ent.rem
		switch {
		case r.Status == models.StatusScheduled && !r.ScheduledTime.After(now):
			e.fireLocked(ent)
			changed++
		case r.Phase == models.PhaseAction && r.Status == models.StatusSent && r.EscalatedAt == nil:
			firedAt := r.ScheduledTime
			if r.SentAt != nil {
				firedAt = *r.SentAt
			}
			if now.Sub(firedAt) < delay {
				continue
			}
			if ent.escalation != nil {
				ent.escalation.Stop()
				ent.escalation = nil
			}
			if e.escalateLocked(ent, "sweep") {
				changed++
			}
		case r.Status == models.StatusEscalated && now.Sub(r.ScheduledTime) >= e.opts.EscalatedExpiry:
			e.dropLocked(ent, "escalation expired")
			changed++
		}
	}

	changed += e.replanLocked(now)

	if changed > 0 {
		log.Printf("[scheduler] Sweep changed %d reminders", changed)
		e.saveLocked()
	}
	return changed
}
