package scheduler

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/fentz26/mealtime/internal/models"
	"github.com/fentz26/mealtime/internal/notify"
)

// ApplyResult reports what Apply armed.
type ApplyResult struct {
	// Armed is the number of future occurrences with a live timer.
	Armed int
	// Warning is set when reminders were armed but cannot be shown,
	// e.g. ErrPermissionUnavailable. It is not a failure.
	Warning error
}

// daysAhead is how many calendar days (today included) are kept armed.
const daysAhead = 2

// Apply arms prep and action reminders for every enabled meal today and
// tomorrow. Occurrences whose instant is not in the future are skipped.
// Timers made stale by the new settings are cancelled first. Re-applying
// the same settings is idempotent.
func (e *Engine) Apply(settings models.Settings) (ApplyResult, error) {
	plan, err := planMeals(settings)
	if err != nil {
		return ApplyResult{}, err
	}

	perm := e.sink.PermissionState()
	if perm == notify.PermissionDefault {
		perm = e.sink.RequestPermission()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ApplyResult{}, ErrEngineStopped
	}

	e.config = settings.Config
	meals := make(models.MealSettings, len(settings.Meals))
	for k, v := range settings.Meals {
		meals[k] = v
	}
	e.applied = &meals

	armed, _ := e.scheduleLocked(plan, e.clock.Now())
	e.record("settings.applied", settings, "success", "", fmt.Sprintf("%d armed", armed))
	e.saveLocked()

	res := ApplyResult{Armed: armed}
	if perm != notify.PermissionGranted {
		res.Warning = fmt.Errorf("%w: permission is %s, reminders will be silent", ErrPermissionUnavailable, perm)
	}
	return res, nil
}

// planMeals validates settings and returns the time of day of each enabled meal.
func planMeals(settings models.Settings) (map[models.MealKind]models.TimeOfDay, error) {
	var errs []error
	if err := settings.Config.Validate(); err != nil {
		errs = append(errs, err)
	}

	plan := make(map[models.MealKind]models.TimeOfDay)
	for kind, ms := range settings.Meals {
		if !kind.Valid() {
			errs = append(errs, fmt.Errorf("unknown meal kind %q", kind))
			continue
		}
		if !ms.Enabled {
			continue
		}
		tod, err := models.ParseTimeOfDay(ms.Time)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		plan[kind] = tod
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return plan, nil
}

// occurrences returns every reminder the plan wants armed at now.
func (e *Engine) occurrences(plan map[models.MealKind]models.TimeOfDay, now time.Time) []models.Reminder {
	var out []models.Reminder
	for kind, tod := range plan {
		for off := 0; off < daysAhead; off++ {
			mealAt := tod.On(now.AddDate(0, 0, off))
			day := mealAt.Format(dayLayout)

			// A zero lead would put prep at the same instant as action.
			if lead := e.config.PrepLead(kind); lead > 0 {
				if prepAt := mealAt.Add(-lead); prepAt.After(now) {
					out = append(out, newReminder(kind, models.PhasePrep, prepAt, mealAt, day, 0))
				}
			}
			if mealAt.After(now) {
				out = append(out, newReminder(kind, models.PhaseAction, mealAt, mealAt, day, 0))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// scheduleLocked reconciles the active set with the plan. It returns the
// number of desired occurrences armed after the call and how many of
// them were newly armed.
func (e *Engine) scheduleLocked(plan map[models.MealKind]models.TimeOfDay, now time.Time) (armed, added int) {
	desired := e.occurrences(plan, now)
	want := make(map[string]bool, len(desired))
	for _, r := range desired {
		want[r.ID] = true
	}

	for _, ent := range e.activeSortedLocked() {
		if want[ent.rem.ID] {
			continue
		}
		_, enabled := plan[ent.rem.Meal]
		switch ent.rem.Status {
		case models.StatusScheduled:
			// User snoozes survive a reschedule of a still-enabled meal.
			if enabled && ent.rem.SnoozeCount > 0 {
				continue
			}
			// Due but not yet fired: its timer or the sweep still delivers it.
			if !ent.rem.ScheduledTime.After(now) && e.stillPlanned(plan, ent.rem) {
				continue
			}
			e.dropLocked(ent, "settings changed")
		default:
			if !enabled {
				e.dropLocked(ent, "meal disabled")
			}
		}
	}

	for _, r := range desired {
		if ent, ok := e.active[r.ID]; ok {
			if ent.rem.Status == models.StatusScheduled {
				armed++
			}
			continue
		}
		// Already fired once: never fire it again, even if the clock moved back.
		if _, seen := e.histIdx[r.ID]; seen {
			continue
		}
		e.clearSlotLocked(r)
		e.armLocked(r, now)
		armed++
		added++
	}
	return armed, added
}

// stillPlanned reports whether plan would arm r for its day, i.e. its meal
// is enabled at the same time of day with the same prep lead.
func (e *Engine) stillPlanned(plan map[models.MealKind]models.TimeOfDay, r models.Reminder) bool {
	tod, ok := plan[r.Meal]
	if !ok || r.SnoozeCount > 0 {
		return false
	}
	day, err := time.ParseInLocation(dayLayout, r.Day, r.ScheduledTime.Location())
	if err != nil {
		return false
	}
	at := tod.On(day)
	if r.Phase == models.PhasePrep {
		lead := e.config.PrepLead(r.Meal)
		if lead <= 0 {
			return false
		}
		at = at.Add(-lead)
	}
	return reminderID(r.Meal, r.Phase, at, 0) == r.ID
}

// clearSlotLocked removes any other active reminder occupying r's
// (meal, phase, day) slot.
func (e *Engine) clearSlotLocked(r models.Reminder) {
	key := slotKey(r)
	for id, ent := range e.active {
		if id != r.ID && slotKey(ent.rem) == key {
			e.dropLocked(ent, "replaced")
		}
	}
}

// dropLocked cancels an active reminder's timers and removes it from the
// active set. A fired reminder's history snapshot is closed so a restart
// does not pick it up again.
func (e *Engine) dropLocked(ent *entry, reason string) {
	ent.stopTimers()
	delete(e.active, ent.rem.ID)
	if _, fired := e.histIdx[ent.rem.ID]; fired {
		now := e.clock.Now()
		ent.rem.CancelledAt = &now
		e.upsertHistoryLocked(ent.rem)
	}
	e.record("reminder.cancelled", ent.rem, string(ent.rem.Status), ent.rem.ID, reason)
}

// armLocked adds r to the active set and starts its fire timer.
func (e *Engine) armLocked(r models.Reminder, now time.Time) {
	ent := &entry{rem: r}
	ent.timer = e.clock.AfterFunc(r.ScheduledTime.Sub(now), func() { e.fire(ent) })
	e.active[r.ID] = ent
	e.record("reminder.armed", r, string(r.Status), r.ID, r.ScheduledTime.Format(time.RFC3339))
}

// fire delivers a reminder whose timer elapsed.
func (e *Engine) fire(ent *entry) {
	e.mu.Lock()
	defer e.unlock()

	// The entry may have been cancelled, replaced or fired by the sweep
	// after the timer started.
	if e.stopped || e.active[ent.rem.ID] != ent || ent.rem.Status != models.StatusScheduled {
		return
	}
	e.fireLocked(ent)
	e.saveLocked()
}

// fireLocked moves a scheduled reminder to sent and shows it. Action
// reminders start waiting for an answer; prep reminders leave the active set.
func (e *Engine) fireLocked(ent *entry) {
	now := e.clock.Now()
	if ent.timer != nil {
		ent.timer.Stop()
		ent.timer = nil
	}
	ent.rem.Status = models.StatusSent
	ent.rem.SentAt = &now

	e.notifyLocked(ent.rem.Title, ent.rem.Body, notify.Options{
		Tag:      ent.rem.ID,
		Severity: notify.SeverityNormal,
	})
	e.upsertHistoryLocked(ent.rem)
	e.record("reminder.sent", ent.rem, string(ent.rem.Status), ent.rem.ID, string(ent.rem.Phase))

	if ent.rem.Phase == models.PhasePrep {
		// Prep reminders expect no answer.
		delete(e.active, ent.rem.ID)
	} else {
		e.armEscalationLocked(ent, e.config.EscalationDelay())
	}
}

// newReminder builds a scheduled reminder with phase-appropriate copy.
func newReminder(kind models.MealKind, phase models.ReminderPhase, at, mealAt time.Time, day string, snoozeCount int) models.Reminder {
	r := models.Reminder{
		ID:            reminderID(kind, phase, at, snoozeCount),
		Meal:          kind,
		Phase:         phase,
		ScheduledTime: at,
		Day:           day,
		Status:        models.StatusScheduled,
		SnoozeCount:   snoozeCount,
	}
	name := kind.DisplayName()
	switch {
	case snoozeCount > 0:
		r.Title = fmt.Sprintf("%s reminder", name)
		r.Body = fmt.Sprintf("You snoozed %s. It's time to eat now.", kind.Label())
	case phase == models.PhasePrep:
		r.Title = fmt.Sprintf("Get ready for %s", kind.Label())
		r.Body = fmt.Sprintf("%s is at %s. Start preparing so you don't skip it.", name, mealAt.Format("15:04"))
	default:
		r.Title = fmt.Sprintf("Time for %s", kind.Label())
		r.Body = fmt.Sprintf("It's %s, your scheduled %s time. Mark it eaten, snooze or skip.", mealAt.Format("15:04"), kind.Label())
	}
	return r
}

// replanLocked re-runs the last applied settings so the two-day window
// rolls forward as days pass. It reports how many reminders were added.
func (e *Engine) replanLocked(now time.Time) int {
	if e.applied == nil {
		return 0
	}
	plan, err := planMeals(models.Settings{Meals: *e.applied, Config: e.config})
	if err != nil {
		log.Printf("[scheduler] Error: replan: %v", err)
		return 0
	}
	_, added := e.scheduleLocked(plan, now)
	return added
}
