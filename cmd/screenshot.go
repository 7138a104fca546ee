package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/deskcapture/internal/screenshot"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture a JPEG screenshot of the primary display",
	Long: `Capture the primary display, downscale it to the quality tier's height
(low 720p, medium 1080p, high 1440p; never upscaled) and encode it as JPEG.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		quality, _ := cmd.Flags().GetString("quality")
		output, _ := cmd.Flags().GetString("output")

		o, err := newOrchestrator(nil)
		if err != nil {
			return err
		}

		res := o.CaptureScreenshot(cmd.Context(), screenshot.Options{Quality: screenshot.Quality(quality)})
		if !res.Success {
			return fmt.Errorf("screenshot failed: %s", res.Error)
		}

		if err := os.WriteFile(output, res.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		slog.Info("Screenshot saved", "path", output, "width", res.Width, "height", res.Height, "bytes", len(res.Data))
		return nil
	},
}

func init() {
	screenshotCmd.Flags().StringP("quality", "q", "", "quality tier: low, medium, high (default from config)")
	screenshotCmd.Flags().StringP("output", "o", "screenshot.jpg", "output JPEG file")
}
