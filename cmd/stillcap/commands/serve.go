package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stillcap/stillcap/internal/api"
	"github.com/stillcap/stillcap/internal/config"
	"github.com/stillcap/stillcap/internal/snapshot"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stillcap capture server",
	Long: `Start the stillcap HTTP server over one X11 connection.

The server exposes a REST API for freezing snapshots and fetching the
frozen desktop, window and cursor surfaces as PNG, plus a websocket
pushing session lifecycle events.`,
	Example: `  # Start server on default port (8264)
  stillcap serve

  # Start server on custom port
  stillcap serve --port 9090

  # Start against a specific display
  stillcap serve --display :1

  # Start with debug logging
  stillcap serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("stillcap - Temporally Consistent X11 Screen Capture")
	fmt.Println("===================================================")

	log.Println("Loading configuration...")
	configMgr, cfg, err := initRuntime()
	if err != nil {
		return err
	}
	log.Printf("Configuration loaded from: %s", configMgr.Path())
	log.Printf("Log level: %s", cfg.LogLevel)

	log.Println("Connecting to X11 server...")
	d, err := xconn.Open(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer d.Close()

	if !d.CompositeEnabled() {
		log.Println("Composite extension unavailable; window captures fall back to direct readback")
	}

	snapshots := snapshot.NewManager(func() snapshot.Sources {
		return snapshot.FromDisplay(d)
	}, snapshotOptions(cfg))
	defer snapshots.EndSession()

	log.Println("Initializing HTTP server...")
	server := api.NewServer(d, xwin.NewEnumerator(d), snapshots, configMgr)

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.ServerPort)
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println()
	log.Println("stillcap is running!")
	log.Printf("   - API: http://localhost:%d/api", cfg.ServerPort)
	log.Println("   - Press Ctrl+C to stop")
	fmt.Println()

	<-sigChan

	fmt.Println()
	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// snapshotOptions maps the persistent capture settings onto session
// options.
func snapshotOptions(cfg *config.Config) snapshot.Options {
	return snapshot.Options{
		MinWindowSize:  cfg.Capture.MinWindowSize,
		IncludeCursor:  cfg.Capture.IncludeCursor,
		Workers:        cfg.Capture.Workers,
		WindowTimeout:  cfg.Capture.WindowTimeout(),
		SessionTimeout: cfg.Capture.SessionTimeout(),
	}
}
