package tui

import (
	"time"

	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/models"
)

type remindersLoadedMsg struct {
	reminders []models.Reminder
	status    *controlplane.Status
}

type historyLoadedMsg struct {
	history []models.Reminder
}

type logLoadedMsg struct {
	reminder    models.Reminder
	transitions []models.Transition
}

type daemonStatusMsg struct {
	online bool
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tickMsg time.Time
