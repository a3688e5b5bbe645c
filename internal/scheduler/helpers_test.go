package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/mealtime/internal/clock"
	"github.com/fentz26/mealtime/internal/models"
	"github.com/fentz26/mealtime/internal/notify"
)

// note is one notification delivered to a mockSink.
type note struct {
	title string
	body  string
	opts  notify.Options
}

// mockSink records notifications for testing.
type mockSink struct {
	mu        sync.Mutex
	perm      notify.Permission
	requested notify.Permission
	requests  int
	shown     []note
}

func (m *mockSink) PermissionState() notify.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perm
}

func (m *mockSink) RequestPermission() notify.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.requested != "" {
		m.perm = m.requested
	}
	return m.perm
}

func (m *mockSink) Show(ctx context.Context, title, body string, opts notify.Options) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, note{title: title, body: body, opts: opts})
	return true, nil
}

func (m *mockSink) all() []note {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]note, len(m.shown))
	copy(out, m.shown)
	return out
}

func (m *mockSink) countTag(tag string) int {
	n := 0
	for _, s := range m.all() {
		if s.opts.Tag == tag {
			n++
		}
	}
	return n
}

// memKV is an in-memory KV.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	putErr error
	getErr error
	puts   int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// staticSource is a SettingsSource returning fixed settings.
type staticSource struct {
	meals models.MealSettings
	cfg   models.Config
	err   error
}

func (s *staticSource) GetMealSettings() (models.MealSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.meals, nil
}

func (s *staticSource) GetConfig() (models.Config, error) {
	return s.cfg, nil
}

// recordingAuditor collects audit actions.
type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (a *recordingAuditor) Record(action string, inputs interface{}, outcome, reminderID, details string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return a.err
}

func (a *recordingAuditor) count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, got := range a.actions {
		if got == action {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")

// start is 07:00 UTC on a Monday.
var start = time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)

type harness struct {
	clk    *clock.Fake
	sink   *mockSink
	kv     *memKV
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clk:  clock.NewFake(start),
		sink: &mockSink{perm: notify.PermissionGranted},
		kv:   newMemKV(),
	}
	h.engine = New(h.clk, h.sink, h.kv, nil, nil)
	return h
}

// reopen builds a second engine over the same store and clock, as a
// restarted process would.
func (h *harness) reopen(t *testing.T, src SettingsSource) (*Engine, *mockSink) {
	t.Helper()
	sink := &mockSink{perm: notify.PermissionGranted}
	e := New(h.clk, sink, h.kv, src, nil)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return e, sink
}

func breakfastAt(hhmm string) models.Settings {
	return models.Settings{
		Meals:  models.MealSettings{models.Breakfast: {Enabled: true, Time: hhmm}},
		Config: models.DefaultConfig(),
	}
}

// noPrep returns a config with no prep reminders.
func noPrep() models.Config {
	cfg := models.DefaultConfig()
	cfg.PrepLeadMinutes = map[models.MealKind]int{}
	cfg.DefaultPrepLeadMinutes = 0
	return cfg
}

func mustApply(t *testing.T, e *Engine, s models.Settings) ApplyResult {
	t.Helper()
	res, err := e.Apply(s)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	return res
}

// findActive returns the active reminder with the given meal, phase and time.
func findActive(t *testing.T, e *Engine, meal models.MealKind, phase models.ReminderPhase, at time.Time) models.Reminder {
	t.Helper()
	for _, r := range e.ActiveReminders() {
		if r.Meal == meal && r.Phase == phase && r.ScheduledTime.Equal(at) {
			return r
		}
	}
	t.Fatalf("No active %s %s reminder at %s", meal, phase, at.Format(time.RFC3339))
	return models.Reminder{}
}

func findHistory(e *Engine, id string) (models.Reminder, bool) {
	for _, r := range e.History() {
		if r.ID == id {
			return r, true
		}
	}
	return models.Reminder{}, false
}

// inflightClock never runs callbacks on its own. runDue runs the due ones,
// as late timer goroutines would. Stop never prevents a callback, as if it
// had already started.
type inflightClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*inflightTimer
}

type inflightTimer struct {
	at time.Time
	fn func()
}

func (t *inflightTimer) Stop() bool { return false }

func (c *inflightClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *inflightClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &inflightTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *inflightClock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// runDue runs every callback due at the current time, once.
func (c *inflightClock) runDue() {
	c.mu.Lock()
	var due []*inflightTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		if t.at.After(c.now) {
			rest = append(rest, t)
		} else {
			due = append(due, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// blockingSink holds every Show until release is closed.
type blockingSink struct {
	mockSink
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		mockSink: mockSink{perm: notify.PermissionGranted},
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (b *blockingSink) Show(ctx context.Context, title, body string, opts notify.Options) (bool, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return b.mockSink.Show(ctx, title, body, opts)
}
