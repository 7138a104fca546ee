package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP capture service",
	Long: `Start the DeskCapture HTTP service. Clients start and stop capture,
collect chunks, take screenshots and negotiate permissions over JSON endpoints.
Delegated capture collaborators push raw PCM to POST /capture/audio.

The server will display the local network URL for easy access from other devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = cfg.Server.Port
		}

		store, err := openArchive()
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		var sessions server.SessionLister
		if store != nil {
			defer store.Close()
			sessions = store
		}

		o, err := newOrchestrator(store)
		if err != nil {
			return fmt.Errorf("failed to create capture orchestrator: %w", err)
		}

		var sources server.SourceLister
		if runtime.GOOS == "linux" {
			sources = audio.NewPipeWire()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("DeskCapture server starting", "port", port, "config", cfgFile, "strategy", o.StrategyName())
		srv := server.New(o, sources, sessions, port, activeProfileName())
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		// Release the helper if a session was still running
		if _, err := o.Stop(cmd.Context()); err != nil {
			slog.Warn("Failed to stop capture on shutdown", "error", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (default from config, 8080)")
}
