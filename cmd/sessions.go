package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/deskcapture/internal/archive"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage archived capture sessions",
	Long:  `List, export and delete capture sessions kept in the local archive (archive.enabled in the config).`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(store *archive.Store) error {
			sessions, err := store.Sessions()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("No archived sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  %s  %4d chunks  %8s  %s\n",
					s.ID, s.StartedAt.Format(time.RFC3339), s.ChunkCount,
					time.Duration(s.DurationMillis)*time.Millisecond, s.Source)
			}
			return nil
		})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session as a WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withArchive(func(store *archive.Store) error {
			meta, err := store.Session(args[0])
			if err != nil {
				return err
			}
			chunks, err := store.Chunks(meta.ID)
			if err != nil {
				return err
			}
			if output == "" {
				output = meta.ID + ".wav"
			}
			sampleRate := meta.SampleRate
			if sampleRate == 0 {
				sampleRate = cfg.Audio.SampleRate
			}
			if err := writeWAV(output, chunks, sampleRate, cfg.Audio.BitsPerSample); err != nil {
				return err
			}
			fmt.Printf("Exported %s (%d chunks) to %s\n", meta.ID, len(chunks), output)
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(store *archive.Store) error {
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		})
	},
}

// withArchive opens the archive even when capture archiving is disabled
func withArchive(fn func(store *archive.Store) error) error {
	store, err := archive.Open(cfg.Archive.Directory)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func init() {
	sessionsExportCmd.Flags().StringP("output", "o", "", "output WAV file (default <session-id>.wav)")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
