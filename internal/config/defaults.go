package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/providers/confmap"
)

// DefaultConfig returns the built-in configuration as a nested map.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"db_path": "~/.mealtime/mealtime.db",
		"listen":  "127.0.0.1:7467",
		"sweep": map[string]interface{}{
			"interval": 60, // seconds
		},
		"notify": map[string]interface{}{
			"console": true,
			"desktop": true,
		},
		"reminders": map[string]interface{}{
			"escalation_delay":  15, // minutes
			"max_missed_meals":  2,
			"snooze_minutes":    15,
			"default_prep_lead": 15,
		},
		"meals": map[string]interface{}{
			"breakfast": map[string]interface{}{
				"enabled":   true,
				"time":      "08:00",
				"prep_lead": 30,
			},
			"lunch": map[string]interface{}{
				"enabled":   true,
				"time":      "12:30",
				"prep_lead": 30,
			},
			"dinner": map[string]interface{}{
				"enabled":   true,
				"time":      "19:00",
				"prep_lead": 30,
			},
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

// GetDefaultConfigPath returns where the daemon looks for its config file.
func GetDefaultConfigPath() string {
	return "~/.mealtime/config.yaml"
}

func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
