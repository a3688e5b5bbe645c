package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fentz26/mealtime/internal/clock"
	"github.com/fentz26/mealtime/internal/models"
	"github.com/fentz26/mealtime/internal/notify"
)

// KV is the durable key-value store the engine snapshots its state into.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// SettingsSource supplies meal times and reminder policy.
type SettingsSource interface {
	GetMealSettings() (models.MealSettings, error)
	GetConfig() (models.Config, error)
}

// Auditor records state transitions.
type Auditor interface {
	Record(action string, inputs interface{}, outcome, reminderID, details string) error
}

// Engine owns every reminder: it arms timers, delivers notifications,
// escalates unanswered meals and persists its state after each change.
type Engine struct {
	clock    clock.Clock
	sink     notify.Sink
	kv       KV
	settings SettingsSource
	auditor  Auditor
	opts     *Options

	// mu serializes every read-decide-mutate sequence on reminder state.
	mu       sync.Mutex
	active   map[string]*entry
	history  []models.Reminder
	histIdx  map[string]int
	missed   int
	critical bool
	config   models.Config
	applied  *models.MealSettings
	stopped  bool
	outbox   []outgoing // shown by unlock

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new engine. settings may be nil when the caller drives
// Apply directly.
func New(clk clock.Clock, sink notify.Sink, kv KV, settings SettingsSource, opts *Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		clock:    clk,
		sink:     sink,
		kv:       kv,
		settings: settings,
		opts:     opts.withDefaults(),
		active:   make(map[string]*entry),
		histIdx:  make(map[string]int),
		config:   models.DefaultConfig(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetAuditor wires a transition recorder into the engine.
func (e *Engine) SetAuditor(a Auditor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.auditor = a
}

// Initialize loads the persisted state, prunes old history, restores
// reminders still waiting for an answer and re-arms future occurrences
// from the settings source.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.loadLocked()
	e.restoreLocked()
	e.saveLocked()
	e.mu.Unlock()

	if e.settings != nil {
		res, err := e.ApplyFromSource()
		if err != nil {
			return err
		}
		if res.Warning != nil {
			log.Printf("[scheduler] Warning: %v", res.Warning)
		}
		log.Printf("[scheduler] Initialized with %d armed reminders", res.Armed)
	}

	// Catch up on escalations that came due while the process was down.
	e.Sweep()
	return nil
}

// ApplyFromSource reads the settings source and applies it.
func (e *Engine) ApplyFromSource() (ApplyResult, error) {
	if e.settings == nil {
		return ApplyResult{}, fmt.Errorf("%w: no settings source configured", ErrInvalidSettings)
	}
	meals, err := e.settings.GetMealSettings()
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read meal settings: %w", err)
	}
	cfg, err := e.settings.GetConfig()
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read reminder config: %w", err)
	}
	return e.Apply(models.Settings{Meals: meals, Config: cfg})
}

// CancelAll cancels every live timer and clears the active set. History is kept.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.activeSortedLocked() {
		e.dropLocked(ent, "cancel all")
	}
	e.applied = nil
	e.saveLocked()
}

// ActiveReminders returns a snapshot of the active reminders, soonest first.
func (e *Engine) ActiveReminders() []models.Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	ents := e.activeSortedLocked()
	out := make([]models.Reminder, len(ents))
	for i, ent := range ents {
		out[i] = ent.rem
	}
	return out
}

// History returns a snapshot of the reminder history in first-seen order.
func (e *Engine) History() []models.Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Reminder, len(e.history))
	copy(out, e.history)
	return out
}

// MissedMeals returns the missed-meal counter.
func (e *Engine) MissedMeals() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.missed
}

// Config returns the reminder policy currently in force.
func (e *Engine) Config() models.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// Start begins the sweep loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.sweepLoop()
	log.Printf("[scheduler] Sweep started. Interval: %s", e.opts.SweepInterval)
}

// Stop halts the sweep loop and disarms every timer. Reminder state is
// left as-is so a later process can pick it up from the store.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	for _, ent := range e.active {
		ent.stopTimers()
	}
	log.Println("[scheduler] Stopped")
}

// sweepLoop runs the backstop sweep on a fixed interval.
func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// outgoing is a notification decided under e.mu and shown after it is released.
type outgoing struct {
	title string
	body  string
	opts  notify.Options
}

// notifyLocked queues a notification. Callers release the lock with unlock,
// which shows it; a slow sink never holds up other engine calls.
func (e *Engine) notifyLocked(title, body string, opts notify.Options) {
	e.outbox = append(e.outbox, outgoing{title: title, body: body, opts: opts})
}

// unlock releases e.mu and then shows the notifications queued while it
// was held, in order.
func (e *Engine) unlock() {
	queued := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	for _, n := range queued {
		e.show(n.title, n.body, n.opts)
	}
}

// show delivers a notification if the sink has permission. A sink without
// permission makes this a silent no-op.
func (e *Engine) show(title, body string, opts notify.Options) {
	if perm := e.sink.PermissionState(); perm != notify.PermissionGranted {
		log.Printf("[scheduler] Notification suppressed (permission %s): %s", perm, title)
		return
	}
	delivered, err := e.sink.Show(e.ctx, title, body, opts)
	if err != nil {
		log.Printf("[scheduler] Error: notification %q failed: %v", title, err)
		return
	}
	if !delivered {
		log.Printf("[scheduler] Notification %q was not delivered", title)
	}
}

// record writes an audit entry when an auditor is wired. Audit failures
// are logged only.
func (e *Engine) record(action string, inputs interface{}, outcome, reminderID, details string) {
	if e.auditor == nil {
		return
	}
	if err := e.auditor.Record(action, inputs, outcome, reminderID, details); err != nil {
		log.Printf("[scheduler] Error: audit %s: %v", action, err)
	}
}
