// Package tui provides the interactive terminal dashboard for Mealtime.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/models"
)

// RefreshInterval is how often the dashboard polls the daemon.
const RefreshInterval = 5 * time.Second

var errNoSelection = errors.New("no reminder selected")

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *Client
	reminders    []models.Reminder
	status       *controlplane.Status
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	history      *HistoryModel
	suggestions  *Suggestions
	width        int
	height       int
	mode         string // "reminders", "history", "log"
	message      string
	loading      bool
	daemonOnline bool
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: eaten | snooze [min] | skip | ack | apply | history | log  (/ for help)"
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 80

	client := NewClient(apiAddr)
	return &App{
		client:      client,
		input:       ti,
		viewport:    viewport.New(80, 20),
		history:     NewHistoryModel(client),
		suggestions: NewSuggestions(),
		mode:        "reminders",
		loading:     true,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchReminders(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode != "reminders" {
				a.mode = "reminders"
				return a, a.fetchReminders()
			}

		case "up":
			switch {
			case a.suggestions.IsVisible():
				a.suggestions.Prev()
			case a.mode == "reminders" && a.selectedIdx > 0:
				a.selectedIdx--
			case a.mode == "history":
				cmds = append(cmds, a.history.Update(msg))
			case a.mode == "log":
				a.viewport.LineUp(1)
			}
			return a, tea.Batch(cmds...)

		case "down":
			switch {
			case a.suggestions.IsVisible():
				a.suggestions.Next()
			case a.mode == "reminders" && a.selectedIdx < len(a.reminders)-1:
				a.selectedIdx++
			case a.mode == "history":
				cmds = append(cmds, a.history.Update(msg))
			case a.mode == "log":
				a.viewport.LineDown(1)
			}
			return a, tea.Batch(cmds...)

		case "tab":
			if a.acceptSuggestion() {
				return a, nil
			}
			if a.mode == "reminders" {
				a.mode = "history"
				return a, a.history.Refresh()
			}
			a.mode = "reminders"
			return a, a.fetchReminders()

		case "enter":
			if a.acceptSuggestion() {
				return a, nil
			}
			if cmd := strings.TrimSpace(a.input.Value()); cmd != "" {
				a.input.SetValue("")
				a.suggestions.Update("")
				return a, a.executeCommand(cmd)
			}
			if a.mode == "reminders" && len(a.reminders) > 0 {
				return a, a.openLog(a.reminders[a.selectedIdx])
			}
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10
		a.history.SetSize(msg.Width, msg.Height-10)

	case remindersLoadedMsg:
		a.loading = false
		a.reminders = msg.reminders
		a.status = msg.status
		if a.selectedIdx >= len(a.reminders) {
			a.selectedIdx = len(a.reminders) - 1
		}
		if a.selectedIdx < 0 {
			a.selectedIdx = 0
		}

	case historyLoadedMsg:
		cmds = append(cmds, a.history.Update(msg))

	case logLoadedMsg:
		a.viewport.SetContent(renderLog(msg.reminder, msg.transitions))
		a.viewport.GotoTop()

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		// Schedule the next tick alongside the refresh.
		return a, tea.Batch(a.fetchReminders(), a.checkDaemon(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		if a.mode == "history" {
			return a, a.history.Refresh()
		}
		return a, a.fetchReminders()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	a.suggestions.Update(a.input.Value())
	if strings.HasPrefix(a.input.Value(), "@") {
		ids := make([]string, len(a.reminders))
		labels := make([]string, len(a.reminders))
		for i, r := range a.reminders {
			ids[i] = r.ID
			labels[i] = fmt.Sprintf("%s %s (%s)", r.Meal.DisplayName(), r.Phase, r.Status)
		}
		a.suggestions.SetReminders(ids, labels)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) acceptSuggestion() bool {
	if !a.suggestions.IsVisible() {
		return false
	}
	if selected := a.suggestions.Selected(); selected != nil {
		if selected.Type == "reminder" {
			a.input.SetValue("@" + selected.Text + " ")
		} else {
			a.input.SetValue(selected.Text + " ")
		}
		a.input.CursorEnd()
		a.suggestions.Update("")
	}
	return true
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("🍽 MEALTIME")
	header += "  " + daemonStatus
	if a.status != nil {
		missedStyle := lipgloss.NewStyle().Foreground(successColor)
		if a.status.MissedMeals > 0 {
			missedStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
		}
		header += "  " + missedStyle.Render(fmt.Sprintf("[%d missed]", a.status.MissedMeals))
		if next := a.status.Next; next != nil {
			header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(
				fmt.Sprintf("next: %s %s", next.Meal.DisplayName(), next.ScheduledTime.Local().Format("Mon 15:04")))
		}
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", a.width) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "reminders":
		b.WriteString(a.renderReminderList(contentHeight))
	case "history":
		b.WriteString(a.history.View())
	case "log":
		b.WriteString(a.viewport.View())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case "reminders":
		status = fmt.Sprintf(" Reminders: %d | ↑↓:nav | Enter:log | Tab:history | Ctrl+C:quit", len(a.reminders))
	case "history":
		status = fmt.Sprintf(" History: %d | ↑↓:nav | Tab/Esc:back", a.history.Len())
	default:
		status = " ↑↓:scroll | Esc:back | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderReminderList(height int) string {
	if a.loading {
		return "\n  Loading reminders...\n"
	}
	if len(a.reminders) == 0 {
		return "\n  No active reminders. Type: apply to arm today's meals.\n"
	}

	var lines []string
	for i, r := range a.reminders {
		when := r.ScheduledTime.Local().Format("Mon 15:04")
		name := fmt.Sprintf("%-16s %-6s %s", r.Meal.DisplayName(), r.Phase, when)
		if r.SnoozeCount > 0 {
			name += fmt.Sprintf("  (snoozed ×%d)", r.SnoozeCount)
		}
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %-12s %s", string(r.Status), name)))
		} else {
			lines = append(lines, itemStyle.Render(fmt.Sprintf("  %s %s", formatStatus(r.Status), name)))
		}
	}

	// Keep the selection in view.
	if len(lines) > height {
		start := 0
		if a.selectedIdx >= height {
			start = a.selectedIdx - height + 1
		}
		lines = lines[start : start+height]
	}

	return strings.Join(lines, "\n")
}

func renderLog(r models.Reminder, trs []models.Transition) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", r.Meal.DisplayName(), r.Phase)) + "\n")
	b.WriteString(labelStyle.Render("ID:        ") + r.ID + "\n")
	b.WriteString(labelStyle.Render("Status:    ") + formatStatus(r.Status) + "\n")
	b.WriteString(labelStyle.Render("Scheduled: ") + r.ScheduledTime.Local().Format(time.RFC1123) + "\n")
	if r.Title != "" {
		b.WriteString(labelStyle.Render("Message:   ") + r.Title + ": " + r.Body + "\n")
	}

	b.WriteString("\n" + lipgloss.NewStyle().Bold(true).Foreground(secondaryColor).Render("Audit log") + "\n")
	if len(trs) == 0 {
		b.WriteString(labelStyle.Render("  (no entries)") + "\n")
	}
	for _, t := range trs {
		line := fmt.Sprintf("  %s  %-22s %s", t.Timestamp.Local().Format("Jan 02 15:04:05"), t.Action, t.Outcome)
		if t.Details != "" {
			line += "  " + labelStyle.Render(t.Details)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatStatus(status models.ReminderStatus) string {
	var color lipgloss.Color
	switch status {
	case models.StatusScheduled:
		color = cyanColor
	case models.StatusSent, models.StatusSnoozed:
		color = warningColor
	case models.StatusMissed, models.StatusEscalated:
		color = errorColor
	case models.StatusCompleted, models.StatusAcknowledged:
		color = successColor
	default:
		color = mutedColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("● %-12s", string(status)))
}

func (a *App) fetchReminders() tea.Cmd {
	return func() tea.Msg {
		reminders, err := a.client.ListReminders("")
		if err != nil {
			return errMsg{err}
		}
		status, err := a.client.Status()
		if err != nil {
			return errMsg{err}
		}
		return remindersLoadedMsg{reminders: reminders, status: status}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		return daemonStatusMsg{online: a.client.Healthy()}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) openLog(r models.Reminder) tea.Cmd {
	a.mode = "log"
	a.viewport.SetContent("Loading...")
	return func() tea.Msg {
		trs, err := a.client.Log(r.ID, 0)
		if err != nil {
			return errMsg{err}
		}
		return logLoadedMsg{reminder: r, transitions: trs}
	}
}

// target resolves the reminder a command applies to: an explicit @id
// argument, otherwise the current selection.
func (a *App) target(args []string) (models.Reminder, []string, error) {
	rest := make([]string, 0, len(args))
	var id string
	for _, arg := range args {
		if strings.HasPrefix(arg, "@") {
			id = strings.TrimPrefix(arg, "@")
			continue
		}
		rest = append(rest, arg)
	}

	if id != "" {
		for _, r := range a.reminders {
			if r.ID == id {
				return r, rest, nil
			}
		}
		return models.Reminder{ID: id}, rest, nil
	}
	if a.mode == "history" {
		if r := a.history.Selected(); r != nil {
			return *r, rest, nil
		}
		return models.Reminder{}, rest, errNoSelection
	}
	if len(a.reminders) == 0 {
		return models.Reminder{}, rest, errNoSelection
	}
	return a.reminders[a.selectedIdx], rest, nil
}

func (a *App) executeCommand(input string) tea.Cmd {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	fail := func(err error) tea.Cmd {
		return func() tea.Msg { return errMsg{err} }
	}

	switch name {
	case "eaten", "skip", "ack", "acknowledge", "snooze":
		r, rest, err := a.target(args)
		if err != nil {
			return fail(err)
		}
		action := models.AckAction(name)
		if name == "ack" {
			action = models.AckAcknowledge
		}
		snooze := 0
		if action == models.AckSnooze && len(rest) > 0 {
			n, err := strconv.Atoi(rest[0])
			if err != nil || n <= 0 {
				return fail(fmt.Errorf("invalid snooze minutes %q", rest[0]))
			}
			snooze = n
		}
		return func() tea.Msg {
			verdict, err := a.client.Ack(r.ID, action, snooze)
			if err != nil {
				return errMsg{err}
			}
			label := r.ID
			if r.Meal != "" {
				label = r.Meal.DisplayName()
			}
			return commandResultMsg{fmt.Sprintf("✓ %s: %s (%s)", label, action, verdict)}
		}

	case "apply":
		return func() tea.Msg {
			res, err := a.client.Apply()
			if err != nil {
				return errMsg{err}
			}
			msg := fmt.Sprintf("✓ Armed %d reminders", res.Armed)
			if res.Warning != "" {
				msg += " (" + res.Warning + ")"
			}
			return commandResultMsg{msg}
		}

	case "cancel":
		return func() tea.Msg {
			if err := a.client.Cancel(); err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ Cancelled all reminders"}
		}

	case "history":
		a.mode = "history"
		return a.history.Refresh()

	case "log":
		r, _, err := a.target(args)
		if err != nil {
			return fail(err)
		}
		return a.openLog(r)

	default:
		return fail(fmt.Errorf("unknown command: %s", name))
	}
}
