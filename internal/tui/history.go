package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/mealtime/internal/models"
)

const historyLimit = 50

var listTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(primaryColor)

// ReminderItem implements list.Item for the history list.
type ReminderItem struct {
	r models.Reminder
}

func (i ReminderItem) FilterValue() string { return string(i.r.Meal) + " " + string(i.r.Status) }
func (i ReminderItem) Title() string {
	return fmt.Sprintf("%s %s", i.r.Meal.DisplayName(), i.r.Phase)
}
func (i ReminderItem) Description() string {
	return fmt.Sprintf("%s • %s", formatStatus(i.r.Status), i.r.ScheduledTime.Local().Format("Mon 15:04"))
}

// HistoryModel manages the history screen.
type HistoryModel struct {
	client  *Client
	list    list.Model
	loading bool
}

// NewHistoryModel creates a new history model.
func NewHistoryModel(client *Client) *HistoryModel {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 80, 20)
	l.Title = "History"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle

	return &HistoryModel{
		client: client,
		list:   l,
	}
}

// SetSize sets the list dimensions.
func (m *HistoryModel) SetSize(w, h int) {
	m.list.SetSize(w, h)
}

// Len returns the number of loaded entries.
func (m *HistoryModel) Len() int {
	return len(m.list.Items())
}

// Selected returns the highlighted history entry.
func (m *HistoryModel) Selected() *models.Reminder {
	if item, ok := m.list.SelectedItem().(ReminderItem); ok {
		r := item.r
		return &r
	}
	return nil
}

// Filtering reports whether the list is capturing keys for its filter.
func (m *HistoryModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// Refresh fetches history from the API.
func (m *HistoryModel) Refresh() tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		history, err := m.client.History(historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyLoadedMsg{history}
	}
}

// Update handles messages.
func (m *HistoryModel) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(historyLoadedMsg); ok {
		m.loading = false
		items := make([]list.Item, len(msg.history))
		for i, r := range msg.history {
			items[i] = ReminderItem{r}
		}
		return m.list.SetItems(items)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

// View renders the history list.
func (m *HistoryModel) View() string {
	if m.loading {
		return "\n  Loading history...\n"
	}
	return m.list.View()
}
