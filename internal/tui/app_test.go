package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/models"
)

type ackCall struct {
	id     string
	action string
	snooze int
}

type fakeDaemon struct {
	mu        sync.Mutex
	reminders []models.Reminder
	history   []models.Reminder
	acks      []ackCall
	applies   int
	healthy   bool
}

func (f *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		healthy := f.healthy
		f.mu.Unlock()
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(controlplane.HealthResponse{OK: healthy})
	})
	mux.HandleFunc("/reminders", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.reminders)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := controlplane.Status{MissedMeals: 1, Active: len(f.reminders)}
		if len(f.reminders) > 0 {
			st.Next = &f.reminders[0]
		}
		json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.history)
	})
	mux.HandleFunc("/reminders/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/reminders/"), "/ack")
		var req struct {
			Action        string `json:"action"`
			SnoozeMinutes int    `json:"snooze_minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.acks = append(f.acks, ackCall{id, req.Action, req.SnoozeMinutes})
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "acknowledged"})
	})
	mux.HandleFunc("/apply", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.applies++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(ApplyResult{Armed: 6, Warning: "notification permission unavailable"})
	})
	mux.HandleFunc("/log", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Transition{{
			ID:         "t1",
			Action:     "reminder.sent",
			Outcome:    "ok",
			ReminderID: r.URL.Query().Get("reminder_id"),
			Timestamp:  time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		}})
	})
	return mux
}

func (f *fakeDaemon) ackCalls() []ackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ackCall(nil), f.acks...)
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, *httptest.Server) {
	t.Helper()
	at := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	f := &fakeDaemon{
		healthy: true,
		reminders: []models.Reminder{
			{ID: "r-breakfast", Meal: models.Breakfast, Phase: models.PhaseAction, ScheduledTime: at, Status: models.StatusSent},
			{ID: "r-lunch", Meal: models.Lunch, Phase: models.PhasePrep, ScheduledTime: at.Add(4 * time.Hour), Status: models.StatusScheduled},
		},
		history: []models.Reminder{
			{ID: "r-old", Meal: models.Dinner, Phase: models.PhaseAction, ScheduledTime: at.Add(-13 * time.Hour), Status: models.StatusCompleted},
		},
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(a *App, k tea.KeyType) tea.Cmd {
	_, cmd := a.Update(tea.KeyMsg{Type: k})
	return cmd
}

func loadedApp(t *testing.T, srv *httptest.Server) *App {
	t.Helper()
	a := New(srv.URL)
	a.Update(a.fetchReminders()())
	if len(a.reminders) != 2 {
		t.Fatalf("Expected 2 reminders, got %d", len(a.reminders))
	}
	return a
}

func TestClient(t *testing.T) {
	f, srv := newFakeDaemon(t)
	c := NewClient(srv.URL + "/")

	reminders, err := c.ListReminders("sent")
	if err != nil {
		t.Fatalf("ListReminders failed: %v", err)
	}
	if len(reminders) != 2 || reminders[0].Meal != models.Breakfast {
		t.Errorf("Unexpected reminders: %+v", reminders)
	}

	st, err := c.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.MissedMeals != 1 || st.Next == nil || st.Next.ID != "r-breakfast" {
		t.Errorf("Unexpected status: %+v", st)
	}

	verdict, err := c.Ack("r-breakfast", models.AckSnooze, 20)
	if err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	if verdict != "acknowledged" {
		t.Errorf("Expected acknowledged, got %q", verdict)
	}
	if acks := f.ackCalls(); len(acks) != 1 || acks[0] != (ackCall{"r-breakfast", "snooze", 20}) {
		t.Errorf("Unexpected ack calls: %+v", acks)
	}

	res, err := c.Apply()
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if res.Armed != 6 || res.Warning == "" {
		t.Errorf("Unexpected apply result: %+v", res)
	}

	if !c.Healthy() {
		t.Error("Expected daemon to be healthy")
	}
	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()
	if c.Healthy() {
		t.Error("Expected unhealthy daemon to report false")
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine stopped", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Apply()
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected 503 API error, got %v", err)
	}
}

func TestAppLoadsReminders(t *testing.T) {
	_, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	a.Update(a.checkDaemon()())

	if !a.daemonOnline {
		t.Error("Expected daemon to be online")
	}
	view := a.View()
	for _, want := range []string{"Breakfast", "Lunch", "[1 missed]", "Reminders: 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestAppNavigation(t *testing.T) {
	_, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)

	press(a, tea.KeyDown)
	press(a, tea.KeyDown)
	if a.selectedIdx != 1 {
		t.Errorf("Expected selection clamped at 1, got %d", a.selectedIdx)
	}
	press(a, tea.KeyUp)
	if a.selectedIdx != 0 {
		t.Errorf("Expected selection 0, got %d", a.selectedIdx)
	}
}

func TestAppEatenCommand(t *testing.T) {
	f, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)

	typeText(a, "eaten")
	cmd := press(a, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	msg := cmd()
	res, ok := msg.(commandResultMsg)
	if !ok {
		t.Fatalf("Expected commandResultMsg, got %T", msg)
	}
	if !strings.Contains(res.message, "Breakfast") {
		t.Errorf("Unexpected message: %s", res.message)
	}
	if acks := f.ackCalls(); len(acks) != 1 || acks[0] != (ackCall{"r-breakfast", "eaten", 0}) {
		t.Errorf("Unexpected ack calls: %+v", acks)
	}
	if a.input.Value() != "" {
		t.Errorf("Expected input cleared, got %q", a.input.Value())
	}

	a.Update(res)
	if a.message != res.message {
		t.Errorf("Expected message to be shown, got %q", a.message)
	}
}

func TestAppSnoozeWithTarget(t *testing.T) {
	f, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)

	msg := a.executeCommand("snooze @r-lunch 25")()
	if _, ok := msg.(commandResultMsg); !ok {
		t.Fatalf("Expected commandResultMsg, got %#v", msg)
	}
	if acks := f.ackCalls(); len(acks) != 1 || acks[0] != (ackCall{"r-lunch", "snooze", 25}) {
		t.Errorf("Unexpected ack calls: %+v", acks)
	}

	msg = a.executeCommand("snooze soon")()
	if _, ok := msg.(errMsg); !ok {
		t.Errorf("Expected errMsg for bad minutes, got %#v", msg)
	}
}

func TestAppCommandErrors(t *testing.T) {
	_, srv := newFakeDaemon(t)
	a := New(srv.URL)

	tests := []struct {
		input string
		want  string
	}{
		{"skip", "no reminder selected"},
		{"devour", "unknown command"},
	}
	for _, tt := range tests {
		msg := a.executeCommand(tt.input)()
		e, ok := msg.(errMsg)
		if !ok {
			t.Fatalf("Expected errMsg for %q, got %#v", tt.input, msg)
		}
		a.Update(e)
		if !strings.Contains(a.message, tt.want) {
			t.Errorf("Expected message to mention %q, got %q", tt.want, a.message)
		}
	}
}

func TestAppApplyCommand(t *testing.T) {
	f, srv := newFakeDaemon(t)
	a := New(srv.URL)

	msg := a.executeCommand("/apply")()
	res, ok := msg.(commandResultMsg)
	if !ok {
		t.Fatalf("Expected commandResultMsg, got %#v", msg)
	}
	if !strings.Contains(res.message, "Armed 6") || !strings.Contains(res.message, "permission") {
		t.Errorf("Unexpected message: %s", res.message)
	}
	f.mu.Lock()
	applies := f.applies
	f.mu.Unlock()
	if applies != 1 {
		t.Errorf("Expected 1 apply, got %d", applies)
	}
}

func TestAppSuggestions(t *testing.T) {
	_, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)

	typeText(a, "/sno")
	if !a.suggestions.IsVisible() {
		t.Fatal("Expected suggestions to be visible")
	}
	if got := a.suggestions.Selected(); got == nil || got.Text != "snooze" {
		t.Fatalf("Expected snooze suggestion, got %+v", got)
	}
	press(a, tea.KeyTab)
	if a.input.Value() != "snooze " {
		t.Errorf("Expected accepted suggestion, got %q", a.input.Value())
	}
	if a.mode != "reminders" {
		t.Errorf("Expected tab to accept rather than switch mode, got %s", a.mode)
	}

	a.input.SetValue("")
	typeText(a, "@lunch")
	if got := a.suggestions.Selected(); got == nil || got.Text != "r-lunch" {
		t.Errorf("Expected r-lunch reference, got %+v", got)
	}
}

func TestAppHistoryAndLog(t *testing.T) {
	_, srv := newFakeDaemon(t)
	a := loadedApp(t, srv)

	cmd := press(a, tea.KeyTab)
	if a.mode != "history" {
		t.Fatalf("Expected history mode, got %s", a.mode)
	}
	a.Update(cmd())
	if a.history.Len() != 1 {
		t.Fatalf("Expected 1 history entry, got %d", a.history.Len())
	}
	if r := a.history.Selected(); r == nil || r.ID != "r-old" {
		t.Errorf("Expected r-old selected, got %+v", r)
	}

	press(a, tea.KeyEsc)
	if a.mode != "reminders" {
		t.Fatalf("Expected reminders mode, got %s", a.mode)
	}

	cmd = press(a, tea.KeyEnter)
	if a.mode != "log" {
		t.Fatalf("Expected log mode, got %s", a.mode)
	}
	msg, ok := cmd().(logLoadedMsg)
	if !ok {
		t.Fatal("Expected logLoadedMsg")
	}
	if msg.reminder.ID != "r-breakfast" || len(msg.transitions) != 1 {
		t.Errorf("Unexpected log: %+v", msg)
	}
	a.Update(msg)
	if !strings.Contains(a.viewport.View(), "reminder.sent") {
		t.Error("Expected log view to show the transition")
	}
}
