package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/audiolibrelab/deskcapture/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List loopback capture targets",
	Long:  `List PulseAudio/PipeWire sources and output ports that a supervised Linux capture helper can record from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runtime.GOOS != "linux" {
			return fmt.Errorf("source listing requires PipeWire and is only available on linux")
		}

		pw := audio.NewPipeWire()
		sources, err := pw.ListSources(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get PipeWire sources: %w", err)
		}

		fmt.Printf("Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		fmt.Printf("SOURCES (%d found):\n", len(sources))
		for i, s := range sources {
			kind := "input"
			if s.Monitor {
				kind = "monitor"
			}
			fmt.Printf("  %d. %s [%s, %s, %s]\n", i+1, s.Name, kind, s.Format, s.State)
		}

		ports, err := pw.ListOutputPorts(cmd.Context())
		if err != nil {
			slog.Warn("Could not list PipeWire output ports", "error", err)
		} else {
			fmt.Printf("\nOUTPUT PORTS (%d found):\n", len(ports))
			for i, p := range ports {
				fmt.Printf("  %d. %s\n", i+1, p)
			}
		}

		target := cfg.Capture.Target
		if target != "" {
			if err := pw.ValidateTarget(cmd.Context(), target); err != nil {
				fmt.Printf("\nConfigured target %q: %v\n", target, err)
			} else {
				fmt.Printf("\nConfigured target %q is available\n", target)
			}
		}

		fmt.Printf("\nUsage:\n")
		fmt.Printf("  • Set capture.target to a monitor source name, or %s\n", audio.DefaultMonitor)
		fmt.Printf("  • Set capture.mode: supervised to run the helper locally\n\n")
		return nil
	},
}
