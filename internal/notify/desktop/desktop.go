// Package desktop provides a notification sink that shells out to the
// platform's notification command through a strict allowlist.
package desktop

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/fentz26/mealtime/internal/notify"
)

// allowedCommands defines the strict allowlist of executable commands.
var allowedCommands = map[string]bool{
	"notify-send": true,
	"osascript":   true,
}

// showTimeout bounds a single notification command.
const showTimeout = 5 * time.Second

// Desktop implements notify.Sink using native notification commands.
type Desktop struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// New creates a Desktop sink for the running platform.
func New() *Desktop {
	return &Desktop{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Name returns the sink identifier.
func (d *Desktop) Name() string {
	return "desktop"
}

// command returns the notification binary for this platform, or "".
func (d *Desktop) command() string {
	switch d.goos {
	case "linux", "freebsd", "openbsd":
		return "notify-send"
	case "darwin":
		return "osascript"
	}
	return ""
}

// PermissionState reports granted when the notification command is installed.
func (d *Desktop) PermissionState() notify.Permission {
	cmd := d.command()
	if cmd == "" {
		return notify.PermissionUnsupported
	}
	if _, err := d.lookPath(cmd); err != nil {
		return notify.PermissionUnsupported
	}
	return notify.PermissionGranted
}

// RequestPermission cannot prompt; desktop notifications need no grant.
func (d *Desktop) RequestPermission() notify.Permission {
	return d.PermissionState()
}

// Show runs the platform notification command.
func (d *Desktop) Show(ctx context.Context, title, body string, opts notify.Options) (bool, error) {
	if d.PermissionState() != notify.PermissionGranted {
		return false, nil
	}

	name, args := d.buildCommand(title, body, opts)
	if !allowedCommands[name] {
		return false, fmt.Errorf("command not allowed: %s", name)
	}

	ctx, cancel := context.WithTimeout(ctx, showTimeout)
	defer cancel()

	if err := d.run(ctx, name, args...); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

func (d *Desktop) buildCommand(title, body string, opts notify.Options) (string, []string) {
	if d.command() == "osascript" {
		script := fmt.Sprintf("display notification %s with title %s", appleQuote(body), appleQuote(title))
		if opts.Severity != notify.SeverityNormal && opts.Severity != "" {
			script += ` sound name "Sosumi"`
		}
		return "osascript", []string{"-e", script}
	}

	urgency := "normal"
	switch opts.Severity {
	case notify.SeverityHigh, notify.SeverityCritical:
		urgency = "critical"
	}
	args := []string{"--app-name=Mealtime", "--urgency=" + urgency}
	if opts.RequireInteraction {
		args = append(args, "--expire-time=0")
	}
	if opts.Tag != "" {
		args = append(args, "--hint=string:x-canonical-private-synchronous:"+opts.Tag)
	}
	args = append(args, "--", title, body)
	return "notify-send", args
}

// appleQuote quotes s as an AppleScript string literal.
func appleQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
