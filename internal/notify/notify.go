// Package notify defines the notification sink interface for Mealtime.
package notify

import "context"

// Permission is the user-granted state of a sink.
type Permission string

const (
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionDefault     Permission = "default"
	PermissionUnsupported Permission = "unsupported"
	PermissionError       Permission = "error"
)

// Severity controls how loudly a notification is shown.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Options describe how a notification should be displayed.
type Options struct {
	// Tag groups notifications; a newer one with the same tag replaces the older.
	Tag string
	// RequireInteraction keeps the notification up until the user acts on it.
	RequireInteraction bool
	Severity           Severity
}

// Sink displays notifications to the user.
type Sink interface {
	// PermissionState returns the current permission without prompting.
	PermissionState() Permission

	// RequestPermission asks the user for permission where the platform supports it.
	RequestPermission() Permission

	// Show displays a notification and reports whether it was delivered.
	Show(ctx context.Context, title, body string, opts Options) (bool, error)
}
