package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runFunc executes a command and returns its stdout
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// HostProvider answers permission queries on macOS through external commands.
// The capture helper reports TCC state; screencapture acts as the display probe.
type HostProvider struct {
	Helper string
	run    runFunc
}

// NewHostProvider creates a provider backed by the given helper binary
func NewHostProvider(helper string) *HostProvider {
	return &HostProvider{Helper: helper, run: runCommand}
}

func (h *HostProvider) MediaAccessStatus(ctx context.Context, kind MediaKind) (Access, error) {
	out, err := h.run(ctx, h.Helper, "permission-status", string(kind))
	if err != nil {
		return AccessUnknown, fmt.Errorf("failed to query %s permission: %w", kind, err)
	}
	return ParseAccess(string(out))
}

func (h *HostProvider) AskForMediaAccess(ctx context.Context, kind MediaKind) (bool, error) {
	out, err := h.run(ctx, h.Helper, "request-permission", string(kind))
	if err != nil {
		return false, fmt.Errorf("failed to request %s permission: %w", kind, err)
	}
	switch strings.ToLower(strings.TrimSpace(string(out))) {
	case "true", "granted", "yes":
		return true, nil
	case "false", "denied", "no":
		return false, nil
	}
	return false, fmt.Errorf("unexpected %s permission answer %q", kind, strings.TrimSpace(string(out)))
}

// ProbeDisplaySources grabs a 1x1 region. A non-zero exit means capture is refused.
func (h *HostProvider) ProbeDisplaySources(ctx context.Context) (bool, error) {
	dir, err := os.MkdirTemp("", "deskcapture-probe-")
	if err != nil {
		return false, fmt.Errorf("failed to create probe directory: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "probe.jpg")
	_, err = h.run(ctx, "screencapture", "-x", "-t", "jpg", "-R", "0,0,1,1", target)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("Display probe refused", "exit_code", exitErr.ExitCode())
			return false, nil
		}
		return false, fmt.Errorf("display probe failed: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		return false, nil
	}
	return true, nil
}

func (h *HostProvider) OpenSettingsPane(ctx context.Context, section string) error {
	url := settingsURL(section)
	if _, err := h.run(ctx, "open", url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	slog.Info("Opened system settings", "section", section)
	return nil
}

func settingsURL(section string) string {
	const base = "x-apple.systempreferences:com.apple.preference.security"
	switch section {
	case SectionMicrophone:
		return base + "?Privacy_Microphone"
	case SectionScreen:
		return base + "?Privacy_ScreenCapture"
	default:
		return base + "?Privacy"
	}
}
