package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/deskcapture/internal/capture"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved configuration and capture strategy",
	Long:  `Display the resolved configuration with inheritance indicators, the capture strategy chosen for this platform and the derived chunk size. Shows which values come from platform defaults, the default profile or the selected profile.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(nil)
		if err != nil {
			return err
		}

		fmt.Printf("=== CAPTURE ===\n")
		fmt.Printf("platform: %s\n", o.Platform())
		fmt.Printf("profile: %s\n", activeProfileName())
		fmt.Printf("strategy: %s\n", o.StrategyName())
		fmt.Printf("chunk_size: %d bytes\n", cfg.Audio.ChunkSizeBytes())
		fmt.Printf("mime_type: %s\n", cfg.Audio.MimeType())
		if o.StrategyName() == "supervised" {
			fmt.Printf("helper: %s\n", capture.ResolveBinary(cfg.Capture.Binary))
			if helperArgs := capture.ExpandArgs(cfg.Capture.Args, *cfg); len(helperArgs) > 0 {
				fmt.Printf("helper_args: %s\n", strings.Join(helperArgs, " "))
			}
		}

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		a := cfg.Audio
		fmt.Printf("\n[Audio]\n")
		fmt.Printf("sample_rate: %d %s\n", a.SampleRate, indicator("audio.sample_rate"))
		fmt.Printf("channels: %d %s\n", a.Channels, indicator("audio.channels"))
		fmt.Printf("bits_per_sample: %d %s\n", a.BitsPerSample, indicator("audio.bits_per_sample"))
		fmt.Printf("chunk_duration_seconds: %g %s\n", a.ChunkDurationSeconds, indicator("audio.chunk_duration_seconds"))
		fmt.Printf("echo_cancellation: %t %s\n", a.EchoCancellationEnabled, indicator("audio.echo_cancellation"))
		fmt.Printf("echo_cancellation_sensitivity: %s %s\n", a.EchoCancellationSensitivity, indicator("audio.echo_cancellation_sensitivity"))
		fmt.Printf("buffer_size: %d %s\n", a.BufferSize, indicator("audio.buffer_size"))

		c := cfg.Capture
		fmt.Printf("\n[Capture]\n")
		fmt.Printf("mode: %s %s\n", c.Mode, indicator("capture.mode"))
		fmt.Printf("binary: %s %s\n", c.Binary, indicator("capture.binary"))
		fmt.Printf("args: %s %s\n", strings.Join(c.Args, " "), indicator("capture.args"))
		fmt.Printf("source: %s %s\n", c.Source, indicator("capture.source"))
		fmt.Printf("target: %s %s\n", c.Target, indicator("capture.target"))
		fmt.Printf("straggler_timeout: %s %s\n", c.StragglerTimeout, indicator("capture.straggler_timeout"))

		fmt.Printf("\n[Screenshot]\n")
		fmt.Printf("command: %s %s\n", cfg.Screenshot.Command, strings.Join(cfg.Screenshot.Args, " "))
		fmt.Printf("default_quality: %s\n", cfg.Screenshot.DefaultQuality)

		fmt.Printf("\n[Archive]\n")
		fmt.Printf("enabled: %t\n", cfg.Archive.Enabled)
		fmt.Printf("directory: %s\n", cfg.Archive.Directory)

		return nil
	},
}

func indicator(key string) string {
	return getInheritanceIndicator(cfg.Inheritance[key])
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "platform-default":
		return "[platform-default]"
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
