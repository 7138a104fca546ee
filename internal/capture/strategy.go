package capture

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/config"
	"github.com/audiolibrelab/deskcapture/internal/permission"
	"github.com/audiolibrelab/deskcapture/internal/process"
)

// ProcessSupervisor is the subset of process.Supervisor the orchestrator uses
type ProcessSupervisor interface {
	Start(ctx context.Context, path string, opts process.Options) (process.Handle, error)
	Stop(h process.Handle)
}

// Strategy is the per-platform behaviour chosen once at construction
type Strategy interface {
	permission.Negotiator
	Name() string
	Supervised() bool
	StartCapture(ctx context.Context, s *Session, cfg config.Config) error
	StopCapture(s *Session)
}

// supervisedStrategy reads PCM from a helper process's stdout
type supervisedStrategy struct {
	permission.Negotiator
	supervisor ProcessSupervisor
}

func (st *supervisedStrategy) Name() string     { return "supervised" }
func (st *supervisedStrategy) Supervised() bool { return true }

func (st *supervisedStrategy) StartCapture(ctx context.Context, s *Session, cfg config.Config) error {
	chunker, err := audio.NewChunker(cfg.Audio, audio.Source(cfg.Capture.Source), s.appendChunk)
	if err != nil {
		return &CaptureFailedError{Op: "configure chunker", Err: err}
	}

	path := ResolveBinary(cfg.Capture.Binary)
	h, err := st.supervisor.Start(ctx, path, process.Options{
		Args:   ExpandArgs(cfg.Capture.Args, cfg),
		Stdout: chunker,
		OnExit: s.processExited,
	})
	if err != nil {
		return err
	}

	s.attach(h, chunker)
	slog.Info("Supervised capture started", "session", s.ID, "pid", h.Pid(), "chunk_size", chunker.ChunkSize())
	return nil
}

func (st *supervisedStrategy) StopCapture(s *Session) {
	if h := s.Handle(); h != nil {
		st.supervisor.Stop(h)
	}
}

// delegatedStrategy leaves capture to an external collaborator, which may
// push raw PCM through Orchestrator.Feed
type delegatedStrategy struct {
	permission.Negotiator
}

func (st *delegatedStrategy) Name() string     { return "delegated" }
func (st *delegatedStrategy) Supervised() bool { return false }

func (st *delegatedStrategy) StartCapture(ctx context.Context, s *Session, cfg config.Config) error {
	chunker, err := audio.NewChunker(cfg.Audio, audio.Source(cfg.Capture.Source), s.appendChunk)
	if err != nil {
		return &CaptureFailedError{Op: "configure chunker", Err: err}
	}
	s.attach(nil, chunker)
	slog.Info("Delegated capture started", "session", s.ID)
	return nil
}

func (st *delegatedStrategy) StopCapture(s *Session) {}

// selectStrategy maps the platform and capture mode onto a strategy
func selectStrategy(cfg *config.Config, opts Options) Strategy {
	negotiator := opts.Permissions
	if negotiator == nil {
		switch cfg.Platform {
		case config.PlatformDarwin:
			provider := opts.Provider
			if provider == nil {
				provider = permission.NewHostProvider(ResolveBinary(cfg.Capture.Binary))
			}
			gated := permission.NewGated(provider, cfg.Permissions.ProbeTimeout)
			gated.PromptTimeout = cfg.Permissions.PromptTimeout
			negotiator = gated
		default:
			negotiator = permission.NewBrowser()
		}
	}

	supervised := false
	switch cfg.Platform {
	case config.PlatformDarwin:
		supervised = cfg.Capture.Mode != config.ModeDelegated
	case config.PlatformLinux:
		supervised = cfg.Capture.Mode == config.ModeSupervised
	}

	if supervised {
		sup := opts.Supervisor
		if sup == nil {
			sup = process.NewSupervisor(cfg.Capture.StragglerTimeout)
		}
		return &supervisedStrategy{Negotiator: negotiator, supervisor: sup}
	}
	return &delegatedStrategy{Negotiator: negotiator}
}

// ResolveBinary prefers a helper shipped next to the executable.
// Absolute paths are returned unchanged; bare names fall back to PATH lookup.
func ResolveBinary(binary string) string {
	if binary == "" || filepath.IsAbs(binary) {
		return binary
	}
	exe, err := os.Executable()
	if err != nil {
		return binary
	}
	candidate := filepath.Join(filepath.Dir(exe), binary)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	if strings.ContainsRune(binary, '/') || strings.ContainsRune(binary, filepath.Separator) {
		return candidate
	}
	return binary
}

// ExpandArgs substitutes audio placeholders in helper arguments
func ExpandArgs(args []string, cfg config.Config) []string {
	if len(args) == 0 {
		return nil
	}
	r := strings.NewReplacer(
		"{sample_rate}", strconv.Itoa(cfg.Audio.SampleRate),
		"{channels}", strconv.Itoa(cfg.Audio.Channels),
		"{bits_per_sample}", strconv.Itoa(cfg.Audio.BitsPerSample),
		"{target}", cfg.Capture.Target,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
