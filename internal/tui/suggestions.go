package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for the command input.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	prefix      string // "/" or "@"
	query       string
}

// SuggestionItem is a single autocomplete entry.
type SuggestionItem struct {
	Text        string
	Description string
	Type        string // "command" or "reminder"
}

var commandSuggestions = []SuggestionItem{
	{Text: "eaten", Description: "Mark the selected meal as eaten", Type: "command"},
	{Text: "snooze", Description: "Snooze the selected reminder (snooze <minutes>)", Type: "command"},
	{Text: "skip", Description: "Skip the selected meal", Type: "command"},
	{Text: "ack", Description: "Acknowledge an escalated reminder", Type: "command"},
	{Text: "apply", Description: "Reload settings and re-arm reminders", Type: "command"},
	{Text: "cancel", Description: "Disarm every active reminder", Type: "command"},
	{Text: "history", Description: "Show recent reminder history", Type: "command"},
	{Text: "log", Description: "Show the audit log of the selected reminder", Type: "command"},
}

// NewSuggestions creates a new suggestions handler.
func NewSuggestions() *Suggestions {
	return &Suggestions{items: commandSuggestions}
}

// Update recomputes the dropdown from the current input.
func (s *Suggestions) Update(input string) {
	switch {
	case strings.HasPrefix(input, "/"):
		s.prefix = "/"
		s.items = commandSuggestions
	case strings.HasPrefix(input, "@"):
		if s.prefix != "@" {
			s.items = nil
		}
		s.prefix = "@"
	default:
		s.visible = false
		s.filtered = nil
		s.prefix = ""
		return
	}
	s.visible = true
	s.query = strings.ToLower(input[1:])
	s.filter()
}

// SetReminders replaces the "@" references with the given reminders.
func (s *Suggestions) SetReminders(ids, labels []string) {
	if s.prefix != "@" {
		return
	}
	s.items = make([]SuggestionItem, len(ids))
	for i, id := range ids {
		s.items[i] = SuggestionItem{Text: id, Description: labels[i], Type: "reminder"}
	}
	s.filter()
}

func (s *Suggestions) filter() {
	s.selectedIdx = 0
	if s.query == "" {
		s.filtered = s.items
		return
	}
	s.filtered = nil
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), s.query) ||
			strings.Contains(strings.ToLower(item.Description), s.query) {
			s.filtered = append(s.filtered, item)
		}
	}
}

// Next moves to the next suggestion.
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion.
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the highlighted suggestion, if any.
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible reports whether the dropdown should be drawn.
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render draws the dropdown.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1)
	if width > 4 {
		boxStyle = boxStyle.Width(width - 4)
	}
	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	pickedStyle := lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true)

	var b strings.Builder
	header := "Commands"
	if s.prefix == "@" {
		header = "Reminders"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render(header))
	b.WriteString("\n")

	const maxVisible = 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", len(s.filtered)-maxVisible)))
			break
		}
		if i == s.selectedIdx {
			b.WriteString(pickedStyle.Render("▶ " + item.Text + " " + item.Description))
		} else {
			b.WriteString(itemStyle.Render("  "+item.Text) + " " + descStyle.Render(item.Description))
		}
		b.WriteString("\n")
	}

	return boxStyle.Render(b.String())
}
