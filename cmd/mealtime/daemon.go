package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/mealtime/internal/audit"
	"github.com/fentz26/mealtime/internal/clock"
	"github.com/fentz26/mealtime/internal/config"
	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/notify"
	"github.com/fentz26/mealtime/internal/notify/console"
	"github.com/fentz26/mealtime/internal/notify/desktop"
	"github.com/fentz26/mealtime/internal/scheduler"
	"github.com/fentz26/mealtime/internal/store"
	"github.com/spf13/cobra"
)

// transitionRetention is how long audit transitions are kept.
const transitionRetention = 30 * 24 * time.Hour

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Mealtime daemon",
	Long:  `Starts the reminder engine and the HTTP API used by the CLI and the TUI.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Mealtime daemon...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize store
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	if n, err := s.PruneTransitions(time.Now().Add(-transitionRetention)); err != nil {
		log.Printf("Warning: failed to prune audit log: %v", err)
	} else if n > 0 {
		log.Printf("Pruned %d audit transitions", n)
	}

	// Notification sinks
	var sinks notify.Fanout
	if cfg.Notify.Console {
		sinks = append(sinks, console.New(os.Stdout))
	}
	if cfg.Notify.Desktop {
		sinks = append(sinks, desktop.New())
	}

	// Create the engine
	engine := scheduler.New(clock.New(), sinks, s, config.NewSource(configPath), &scheduler.Options{
		SweepInterval: cfg.SweepInterval(),
	})
	engine.SetAuditor(audit.NewRecorder(s))
	if err := engine.Initialize(); err != nil {
		// Settings can be fixed and re-applied over the API.
		log.Printf("Warning: initial apply failed: %v", err)
	}
	engine.Start()

	// Create service and server
	service := controlplane.NewService(engine, s)
	server := controlplane.NewServer(service, cfg.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			engine.Stop()
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping reminder engine...")
	engine.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
