package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
	"github.com/spf13/cobra"
)

var autostartCmd = &cobra.Command{
	Use:       "autostart [enable|disable|status]",
	Short:     "Start the daemon automatically at login",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE:      runAutostart,
}

// daemonAutostart describes the login entry that launches the daemon with
// the given config file.
func daemonAutostart(execPath, cfgPath string) *autostart.App {
	return &autostart.App{
		Name:        "mealtime",
		DisplayName: "Mealtime reminders",
		Exec:        []string{execPath, "daemon", "--config", cfgPath},
	}
}

func runAutostart(cmd *cobra.Command, args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}
	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return err
	}
	app := daemonAutostart(execPath, configPath)

	switch args[0] {
	case "enable":
		if app.IsEnabled() {
			fmt.Println("Autostart already enabled")
			return nil
		}
		if err := app.Enable(); err != nil {
			log.Printf("Failed to enable autostart: %v", err)
			return err
		}
		fmt.Println("Autostart enabled")
	case "disable":
		if !app.IsEnabled() {
			fmt.Println("Autostart already disabled")
			return nil
		}
		if err := app.Disable(); err != nil {
			log.Printf("Failed to disable autostart: %v", err)
			return err
		}
		fmt.Println("Autostart disabled")
	case "status":
		if app.IsEnabled() {
			fmt.Println("Autostart: enabled")
		} else {
			fmt.Println("Autostart: disabled")
		}
	default:
		return fmt.Errorf("unknown autostart action %q (want enable, disable or status)", args[0])
	}
	return nil
}
