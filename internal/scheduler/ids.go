package scheduler

import (
	"fmt"
	"time"

	"github.com/fentz26/mealtime/internal/models"
	"github.com/google/uuid"
)

var reminderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://mealtime.local/reminders"))

// reminderID derives a stable id from the reminder's defining triple.
// Snoozed copies add their snooze count so they never collide with the original.
func reminderID(meal models.MealKind, phase models.ReminderPhase, at time.Time, snoozeCount int) string {
	key := fmt.Sprintf("%s|%s|%s", meal, phase, at.UTC().Format(time.RFC3339))
	if snoozeCount > 0 {
		key += fmt.Sprintf("|snooze=%d", snoozeCount)
	}
	return uuid.NewSHA1(reminderNamespace, []byte(key)).String()
}

// slotKey identifies the (meal, phase, calendar day) slot that may hold
// at most one active reminder.
func slotKey(r models.Reminder) string {
	return fmt.Sprintf("%s|%s|%s", r.Meal, r.Phase, r.Day)
}
