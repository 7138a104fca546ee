package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/deskcapture/internal/capture"
	"github.com/audiolibrelab/deskcapture/internal/permission"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Inspect and request capture permissions",
	Long:  `Check microphone and screen recording permissions, request microphone access or open the platform privacy settings.`,
}

var permissionsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the current permission status",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(nil)
		if err != nil {
			return err
		}
		return printResult(cmd, o.CheckPermissions(cmd.Context()))
	},
}

var permissionsRequestMicCmd = &cobra.Command{
	Use:   "request-mic",
	Short: "Request microphone access",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator(nil)
		if err != nil {
			return err
		}
		return printResult(cmd, o.RequestMicrophonePermission(cmd.Context()))
	},
}

var permissionsOpenCmd = &cobra.Command{
	Use:       "open-settings [microphone|screen|privacy]",
	Short:     "Open the platform privacy settings",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{permission.SectionMicrophone, permission.SectionScreen, permission.SectionPrivacy},
	RunE: func(cmd *cobra.Command, args []string) error {
		section := permission.SectionPrivacy
		if len(args) == 1 {
			section = args[0]
		}
		o, err := newOrchestrator(nil)
		if err != nil {
			return err
		}
		res := o.OpenPlatformSettings(cmd.Context(), section)
		if err := printResult(cmd, res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("could not open settings: %s", res.Error)
		}
		return nil
	},
}

// printResult writes v as yaml, or json with --json
func printResult(cmd *cobra.Command, v interface{}) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling result: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func printPermissionHint(err *capture.PermissionError) {
	fmt.Fprintf(os.Stderr, "Capture needs permissions (microphone: %s, screen: %s).\n", err.Status.Microphone, err.Status.Screen)
	if err.Status.Error != "" {
		fmt.Fprintf(os.Stderr, "Probe error: %s\n", err.Status.Error)
	}
	fmt.Fprintln(os.Stderr, "Run 'deskcapture permissions open-settings screen' to grant access.")
}

func init() {
	permissionsCmd.PersistentFlags().Bool("json", false, "print results as JSON")
	permissionsCmd.AddCommand(permissionsCheckCmd)
	permissionsCmd.AddCommand(permissionsRequestMicCmd)
	permissionsCmd.AddCommand(permissionsOpenCmd)
}
