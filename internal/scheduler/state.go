package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/fentz26/mealtime/internal/clock"
	"github.com/fentz26/mealtime/internal/models"
)

// schemaVersion is the version written into every state snapshot.
// Version 0 is the unversioned legacy blob.
const schemaVersion = 1

// entry is an active reminder plus its live timer handles.
// Timer handles are never persisted.
type entry struct {
	rem        models.Reminder
	timer      clock.Timer // fire timer, set while scheduled
	escalation clock.Timer // escalation check, set while sent
}

func (ent *entry) stopTimers() {
	if ent.timer != nil {
		ent.timer.Stop()
		ent.timer = nil
	}
	if ent.escalation != nil {
		ent.escalation.Stop()
		ent.escalation = nil
	}
}

// persistedState is the JSON blob stored in the key-value store.
type persistedState struct {
	SchemaVersion       int               `json:"schemaVersion"`
	History             []models.Reminder `json:"reminderHistory"`
	MissedMeals         int               `json:"missedMeals"`
	CriticalAlertRaised bool              `json:"criticalAlertRaised"`
	Config              models.Config     `json:"config"`
	LastUpdated         time.Time         `json:"lastUpdated"`
}

func encodeState(st persistedState) ([]byte, error) {
	st.SchemaVersion = schemaVersion
	return json.Marshal(st)
}

// decodeState parses a snapshot, migrating older schema versions.
func decodeState(data []byte) (persistedState, error) {
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return persistedState{}, fmt.Errorf("decode state: %w", err)
	}
	switch {
	case st.SchemaVersion > schemaVersion:
		return persistedState{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, st.SchemaVersion)
	case st.SchemaVersion == 0:
		migrateLegacy(&st)
	}
	if st.MissedMeals < 0 {
		st.MissedMeals = 0
	}
	return st, nil
}

// migrateLegacy upgrades an unversioned blob: history entries have no day
// key and the config may only carry the original three fields.
func migrateLegacy(st *persistedState) {
	for i := range st.History {
		r := &st.History[i]
		if r.Day == "" {
			r.Day = r.ScheduledTime.Format(dayLayout)
		}
	}
	def := models.DefaultConfig()
	if st.Config.PrepLeadMinutes == nil {
		st.Config.PrepLeadMinutes = def.PrepLeadMinutes
	}
	if st.Config.DefaultPrepLeadMinutes == 0 {
		st.Config.DefaultPrepLeadMinutes = def.DefaultPrepLeadMinutes
	}
	if st.Config.SnoozeMinutes == 0 {
		st.Config.SnoozeMinutes = def.SnoozeMinutes
	}
	st.SchemaVersion = schemaVersion
}

const dayLayout = "2006-01-02"

// upsertHistoryLocked stores a snapshot of r, replacing an earlier snapshot
// of the same reminder in place.
func (e *Engine) upsertHistoryLocked(r models.Reminder) {
	if i, ok := e.histIdx[r.ID]; ok {
		e.history[i] = r
		return
	}
	e.histIdx[r.ID] = len(e.history)
	e.history = append(e.history, r)
}

// loadLocked replaces the in-memory state with the persisted snapshot.
// A missing or unreadable snapshot leaves the engine empty.
func (e *Engine) loadLocked() {
	data, ok, err := e.kv.Get(e.opts.StateKey)
	if err != nil {
		log.Printf("[scheduler] %v: load state: %v (starting empty)", ErrPersistence, err)
		return
	}
	if !ok {
		return
	}

	st, err := decodeState(data)
	if err != nil {
		log.Printf("[scheduler] %v: %v (starting empty)", ErrPersistence, err)
		return
	}

	now := e.clock.Now()
	if st.LastUpdated.After(now) {
		log.Printf("[scheduler] Clock regression detected: state last updated %s, now %s",
			st.LastUpdated.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	cutoff := now.Add(-e.opts.HistoryRetention)
	pruned := 0
	for _, r := range st.History {
		if r.ScheduledTime.Before(cutoff) {
			pruned++
			continue
		}
		e.upsertHistoryLocked(r)
	}
	if pruned > 0 {
		log.Printf("[scheduler] Pruned %d history entries older than %s", pruned, e.opts.HistoryRetention)
	}

	e.missed = st.MissedMeals
	e.critical = st.CriticalAlertRaised
	if err := st.Config.Validate(); err == nil {
		e.config = st.Config
	}
}

// restoreLocked re-activates fired action reminders that were still waiting
// for an answer when the process stopped.
func (e *Engine) restoreLocked() {
	now := e.clock.Now()
	for _, r := range e.history {
		if r.Phase != models.PhaseAction || r.CancelledAt != nil {
			continue
		}
		if _, ok := e.active[r.ID]; ok {
			continue
		}

		switch r.Status {
		case models.StatusSent:
			ent := &entry{rem: r}
			e.active[r.ID] = ent
			firedAt := r.ScheduledTime
			if r.SentAt != nil {
				firedAt = *r.SentAt
			}
			// Overdue checks are left to the sweep.
			if remaining := firedAt.Add(e.config.EscalationDelay()).Sub(now); remaining > 0 {
				e.armEscalationLocked(ent, remaining)
			}
		case models.StatusEscalated:
			if now.Sub(r.ScheduledTime) < e.opts.EscalatedExpiry {
				e.active[r.ID] = &entry{rem: r}
			}
		}
	}
}

// saveLocked writes a full snapshot. Failures are logged and never
// propagated; the in-memory state stays authoritative.
func (e *Engine) saveLocked() {
	data, err := encodeState(persistedState{
		History:             e.history,
		MissedMeals:         e.missed,
		CriticalAlertRaised: e.critical,
		Config:              e.config,
		LastUpdated:         e.clock.Now(),
	})
	if err != nil {
		log.Printf("[scheduler] %v: encode state: %v", ErrPersistence, err)
		return
	}
	if err := e.kv.Put(e.opts.StateKey, data); err != nil {
		log.Printf("[scheduler] %v: save state: %v", ErrPersistence, err)
	}
}

// activeSortedLocked returns active entries ordered by scheduled time, then id.
func (e *Engine) activeSortedLocked() []*entry {
	out := make([]*entry, 0, len(e.active))
	for _, ent := range e.active {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].rem, out[j].rem
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime)
		}
		return a.ID < b.ID
	})
	return out
}
