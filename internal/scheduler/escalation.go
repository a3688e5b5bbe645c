package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/fentz26/mealtime/internal/models"
	"github.com/fentz26/mealtime/internal/notify"
)

const criticalAlertTag = "critical-alert"

// ArmEscalation starts the escalation timer for a sent action reminder.
// It returns false when the reminder is not active, not an action
// reminder or not waiting for an answer.
func (e *Engine) ArmEscalation(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false
	}
	ent, ok := e.active[id]
	if !ok || ent.rem.Phase != models.PhaseAction || ent.rem.Status != models.StatusSent {
		return false
	}
	e.armEscalationLocked(ent, e.config.EscalationDelay())
	return true
}

// armEscalationLocked (re)starts ent's escalation timer.
func (e *Engine) armEscalationLocked(ent *entry, d time.Duration) {
	if ent.escalation != nil {
		ent.escalation.Stop()
	}
	ent.escalation = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.unlock()
		if e.stopped || e.active[ent.rem.ID] != ent {
			return
		}
		ent.escalation = nil
		if e.escalateLocked(ent, "timer") {
			e.saveLocked()
		}
	})
}

// escalateLocked moves an unanswered action reminder through missed to
// escalated, bumps the missed-meal counter and shows the escalation.
// It is a no-op unless the reminder is still in sent.
func (e *Engine) escalateLocked(ent *entry, via string) bool {
	if ent.rem.Phase != models.PhaseAction || ent.rem.Status != models.StatusSent {
		return false
	}

	now := e.clock.Now()
	ent.rem.Status = models.StatusMissed
	e.record("reminder.missed", ent.rem, string(ent.rem.Status), ent.rem.ID, via)
	ent.rem.Status = models.StatusEscalated
	ent.rem.EscalatedAt = &now
	e.missed++

	e.notifyLocked(
		fmt.Sprintf("Missed %s", ent.rem.Meal.Label()),
		fmt.Sprintf("You haven't confirmed %s yet. Eating regularly matters while on GLP-1 medication. Please eat something soon.", ent.rem.Meal.Label()),
		notify.Options{
			Tag:                ent.rem.ID,
			RequireInteraction: true,
			Severity:           notify.SeverityHigh,
		},
	)
	e.upsertHistoryLocked(ent.rem)
	e.record("reminder.escalated", ent.rem, string(ent.rem.Status), ent.rem.ID, fmt.Sprintf("via %s, missed=%d", via, e.missed))
	log.Printf("[scheduler] Escalated %s reminder %s (missed meals: %d)", ent.rem.Meal, ent.rem.ID, e.missed)

	e.checkThresholdLocked()
	return true
}

// checkThresholdLocked shows the critical alert once each time the
// missed-meal counter reaches the threshold. Dropping below the threshold
// re-arms the alert.
func (e *Engine) checkThresholdLocked() {
	if e.missed < e.config.MaxMissedMeals {
		e.critical = false
		return
	}
	if e.critical {
		return
	}
	e.critical = true

	e.notifyLocked(
		"Several meals missed",
		fmt.Sprintf("You've missed %d meals. Skipping meals on GLP-1 medication can be risky. Consider contacting your healthcare provider.", e.missed),
		notify.Options{
			Tag:                criticalAlertTag,
			RequireInteraction: true,
			Severity:           notify.SeverityCritical,
		},
	)
	e.record("alert.critical", map[string]int{"missed": e.missed, "threshold": e.config.MaxMissedMeals}, "raised", "", "")
	log.Printf("[scheduler] Critical alert raised: %d missed meals", e.missed)
}
