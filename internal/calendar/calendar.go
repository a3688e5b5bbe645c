// Package calendar exports upcoming reminders as an iCalendar feed so they
// can be subscribed to from a calendar app.
package calendar

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/fentz26/mealtime/internal/models"
)

// ProductID identifies the feed producer.
const ProductID = "-//Mealtime//Meal Reminders//EN"

// eventLength is the nominal duration of a meal event.
const eventLength = 30 * time.Minute

// Encode writes reminders as VEVENTs to w. Only action reminders that are
// still scheduled or snoozed are included; prep reminders become a VALARM
// on their meal's event.
func Encode(w io.Writer, reminders []models.Reminder, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	prep := make(map[string]time.Time)
	for _, r := range reminders {
		if r.Phase == models.PhasePrep {
			prep[slot(r)] = r.ScheduledTime
		}
	}

	for _, r := range reminders {
		if r.Phase != models.PhaseAction {
			continue
		}
		if r.Status != models.StatusScheduled && r.Status != models.StatusSnoozed {
			continue
		}
		cal.Children = append(cal.Children, event(r, now, prep[slot(r)]).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func event(r models.Reminder, now, prepAt time.Time) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, r.ID+"@mealtime")
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, r.ScheduledTime.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, r.ScheduledTime.Add(eventLength).UTC())

	summary := r.Meal.DisplayName()
	if r.SnoozeCount > 0 {
		summary += " (snoozed)"
	}
	ev.Props.SetText(ical.PropSummary, summary)
	if r.Body != "" {
		ev.Props.SetText(ical.PropDescription, r.Body)
	}
	ev.Props.SetText(ical.PropCategories, "meal")

	if !prepAt.IsZero() && prepAt.Before(r.ScheduledTime) {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, "Get ready for "+r.Meal.Label())
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetValueType(ical.ValueDuration)
		trigger.Value = formatDuration(-r.ScheduledTime.Sub(prepAt))
		alarm.Props.Set(trigger)
		ev.Children = append(ev.Children, alarm)
	}
	return ev
}

// slot pairs a prep reminder with the action reminder of the same meal
// instance.
func slot(r models.Reminder) string {
	return string(r.Meal) + "|" + r.Day
}

// formatDuration renders d as an RFC 5545 duration in whole minutes.
func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	return fmt.Sprintf("%sPT%dM", sign, int(d/time.Minute))
}
