package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/capture"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture audio until interrupted",
	Long: `Start a capture session and collect fixed-size PCM chunks until Ctrl+C
or the --duration elapses. The chunks can be written out as a WAV file.

In delegated mode no helper runs locally; use --stdin to pipe raw PCM in,
for example: parec --raw --format=s16le --rate=24000 --channels=2 | deskcapture record --stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		output, _ := cmd.Flags().GetString("output")
		fromStdin, _ := cmd.Flags().GetBool("stdin")

		store, err := openArchive()
		if err != nil {
			return fmt.Errorf("failed to open session archive: %w", err)
		}
		if store != nil {
			defer store.Close()
		}

		o, err := newOrchestrator(store)
		if err != nil {
			return err
		}

		audioCfg := o.Config()
		slog.Info("Record command started",
			"platform", o.Platform(),
			"strategy", o.StrategyName(),
			"chunk_size", audioCfg.ChunkSizeBytes(),
			"mime_type", audioCfg.MimeType())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := o.Start(ctx)
		if err != nil {
			var permErr *capture.PermissionError
			if errors.As(err, &permErr) {
				printPermissionHint(permErr)
			}
			return fmt.Errorf("failed to start capture: %w", err)
		}
		slog.Info("Capturing... Press Ctrl+C to stop", "session", res.SessionID)

		feedDone := make(chan error, 1)
		switch {
		case fromStdin:
			go func() { feedDone <- feedFrom(os.Stdin, o) }()
		case o.StrategyName() == "delegated":
			slog.Warn("Delegated capture produces no local audio; use --stdin or 'deskcapture serve'")
		}

		var timeout <-chan time.Time
		if duration > 0 {
			timer := time.NewTimer(duration)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			slog.Info("Stopping capture...")
		case <-timeout:
			slog.Info("Duration reached, stopping capture", "duration", duration)
		case err := <-feedDone:
			if err != nil {
				slog.Error("Reading stdin failed", "error", err)
			} else {
				slog.Info("Input ended, stopping capture")
			}
		}

		result, err := o.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("failed to stop capture: %w", err)
		}

		var durMillis int
		var bytes int
		for _, c := range result.Chunks {
			durMillis += c.DurationMillis
			bytes += len(c.Data)
		}
		fmt.Printf("Session %s: %d chunks, %d bytes, %s of audio\n",
			result.SessionID, len(result.Chunks), bytes, time.Duration(durMillis)*time.Millisecond)
		if result.Archived {
			fmt.Printf("Archived to %s\n", cfg.Archive.Directory)
		}

		if output == "" {
			return nil
		}
		return writeWAV(output, result.Chunks, o.Config().SampleRate, o.Config().BitsPerSample)
	},
}

// feedWriter adapts the orchestrator's push interface to io.Writer
type feedWriter struct {
	o *capture.Orchestrator
}

func (w feedWriter) Write(p []byte) (int, error) {
	if _, err := w.o.Feed(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func feedFrom(r io.Reader, o *capture.Orchestrator) error {
	_, err := io.Copy(feedWriter{o: o}, bufio.NewReaderSize(r, 64*1024))
	return err
}

// writeWAV stores chunks as mono PCM, which is what chunks carry
func writeWAV(path string, chunks []audio.AudioChunk, sampleRate, bitsPerSample int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := audio.EncodeWAV(w, audio.JoinChunks(chunks), sampleRate, 1, bitsPerSample); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("WAV written", "path", path, "chunks", len(chunks))
	return nil
}

func init() {
	recordCmd.Flags().DurationP("duration", "d", 0, "stop automatically after this duration (e.g. 30s)")
	recordCmd.Flags().StringP("output", "o", "", "write captured audio to this WAV file")
	recordCmd.Flags().Bool("stdin", false, "read raw PCM from stdin (delegated mode)")
}
