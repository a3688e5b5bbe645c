// Package console provides a notification sink that prints styled boxes to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/mealtime/internal/notify"
)

var (
	normalColor   = lipgloss.Color("#10B981")
	highColor     = lipgloss.Color("#F59E0B")
	criticalColor = lipgloss.Color("#EF4444")
	mutedColor    = lipgloss.Color("#6B7280")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	timeStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// Console writes notifications to an io.Writer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// New creates a Console sink writing to out.
func New(out io.Writer) *Console {
	return &Console{out: out, now: time.Now}
}

// PermissionState is always granted: writing to our own terminal needs no consent.
func (c *Console) PermissionState() notify.Permission {
	return notify.PermissionGranted
}

// RequestPermission is always granted.
func (c *Console) RequestPermission() notify.Permission {
	return notify.PermissionGranted
}

// Show renders the notification.
func (c *Console) Show(ctx context.Context, title, body string, opts notify.Options) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	color := normalColor
	switch opts.Severity {
	case notify.SeverityHigh:
		color = highColor
	case notify.SeverityCritical:
		color = criticalColor
	}

	heading := lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)
	if opts.RequireInteraction {
		heading += "  " + timeStyle.Render("(action needed)")
	}
	stamp := timeStyle.Render(c.now().Format("15:04"))
	box := boxStyle.BorderForeground(color).Render(heading + "\n" + body + "\n" + stamp)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, box); err != nil {
		return false, fmt.Errorf("write notification: %w", err)
	}
	return true, nil
}
