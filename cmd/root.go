package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiolibrelab/deskcapture/internal/archive"
	"github.com/audiolibrelab/deskcapture/internal/capture"
	"github.com/audiolibrelab/deskcapture/internal/config"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "deskcapture",
	Short: "Desktop audio and screen capture service",
	Long: `DeskCapture captures system or microphone audio on desktop hosts and
delivers it as fixed-size PCM chunks, along with on-demand screenshots.

On macOS a native helper is supervised and its output chunked locally.
On Windows and Linux capture is delegated to a collaborator that pushes
PCM to the running service, unless a supervised helper is configured.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Bootstrap logging until the logging section is known
		setupLogging(verboseLevel, config.LoggingConfig{Level: "info"})

		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/deskcapture.yaml")
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		setupLogging(verboseLevel, cfg.Logging)
		slog.Debug("Configuration loaded", "file", cfgFile, "profile", activeProfileName(), "platform", cfg.Platform)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/deskcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=use logging.level, 1=debug")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(permissionsCmd)
	rootCmd.AddCommand(screenshotCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog from the verbose flag and the logging section.
// When a log file is configured, output is duplicated into a rotated file.
func setupLogging(level int, lc config.LoggingConfig) {
	var slogLevel slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if lc.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		})
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}

func activeProfileName() string {
	if profile != "" {
		return profile
	}
	root, err := config.ReadRootConfig(cfgFile)
	if err != nil || root.ActiveConfig == "" {
		return "default"
	}
	return root.ActiveConfig
}

// openArchive returns nil when archiving is disabled
func openArchive() (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	store, err := archive.Open(cfg.Archive.Directory)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newOrchestrator wires the host collaborators around the loaded config
func newOrchestrator(store *archive.Store) (*capture.Orchestrator, error) {
	opts := capture.Options{}
	if store != nil {
		opts.Archive = store
	}
	return capture.New(cfg, opts)
}
