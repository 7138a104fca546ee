// Package capture owns the Idle/Capturing state machine that ties together
// permissions, the capture helper process and audio chunking.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/config"
	"github.com/audiolibrelab/deskcapture/internal/permission"
	"github.com/audiolibrelab/deskcapture/internal/screenshot"
)

// State represents the current state of the orchestrator
type State string

const (
	StateIdle      State = "IDLE"
	StateCapturing State = "CAPTURING"
)

// ChunkArchive persists the chunks of a finished session
type ChunkArchive interface {
	SaveSession(id string, startedAt time.Time, chunks []audio.AudioChunk) error
}

// Options injects collaborators. Nil fields get host implementations.
type Options struct {
	Supervisor  ProcessSupervisor
	Permissions permission.Negotiator
	Provider    permission.Provider
	Screenshots screenshot.Provider
	Archive     ChunkArchive
	Now         func() time.Time
}

type StartResult struct {
	Success          bool   `json:"success"`
	AlreadyCapturing bool   `json:"alreadyCapturing,omitempty"`
	SessionID        string `json:"sessionId"`
}

type StopResult struct {
	Success   bool               `json:"success"`
	SessionID string             `json:"sessionId,omitempty"`
	Chunks    []audio.AudioChunk `json:"chunks"`
	Archived  bool               `json:"archived,omitempty"`
}

// Status is a point-in-time view of the orchestrator
type Status struct {
	State          State           `json:"state"`
	Platform       config.Platform `json:"platform"`
	Strategy       string          `json:"strategy"`
	SessionID      string          `json:"sessionId,omitempty"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	BufferedChunks int             `json:"bufferedChunks"`
	Pid            int             `json:"pid,omitempty"`
}

// Orchestrator is the single owner of capture state for one host
type Orchestrator struct {
	strategy    Strategy
	platform    config.Platform
	screenshots screenshot.Provider
	archive     ChunkArchive
	now         func() time.Time

	cfgMu sync.RWMutex
	cfg   config.Config

	mu      sync.Mutex
	state   State
	session *Session
}

// New validates cfg and picks the platform strategy
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		strategy:    selectStrategy(cfg, opts),
		platform:    cfg.Platform,
		screenshots: opts.Screenshots,
		archive:     opts.Archive,
		now:         opts.Now,
		cfg:         *cfg,
		state:       StateIdle,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.screenshots == nil {
		o.screenshots = screenshot.New(cfg.Screenshot, nil)
	}

	slog.Debug("Capture orchestrator created", "platform", o.platform, "strategy", o.strategy.Name())
	return o, nil
}

func (o *Orchestrator) CheckPermissions(ctx context.Context) permission.Status {
	return o.strategy.Check(ctx)
}

func (o *Orchestrator) RequestMicrophonePermission(ctx context.Context) permission.MicrophoneResult {
	return o.strategy.RequestMicrophone(ctx)
}

func (o *Orchestrator) OpenPlatformSettings(ctx context.Context, section string) permission.SettingsResult {
	return o.strategy.OpenSettings(ctx, section)
}

// Start begins a capture session. Every failure leaves the orchestrator Idle.
func (o *Orchestrator) Start(ctx context.Context) (StartResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateCapturing {
		slog.Debug("Start requested while already capturing", "session", o.session.ID)
		return StartResult{Success: true, AlreadyCapturing: true, SessionID: o.session.ID}, nil
	}

	status := o.strategy.Check(ctx)
	if status.NeedsSetup {
		slog.Warn("Capture blocked by permissions", "microphone", status.Microphone, "screen", status.Screen)
		return StartResult{}, &PermissionError{Status: status}
	}

	cfg := o.Snapshot()
	session := newSession(o.now())
	if err := o.strategy.StartCapture(ctx, session, cfg); err != nil {
		session.close()
		slog.Error("Failed to start capture", "strategy", o.strategy.Name(), "error", err)
		return StartResult{}, classify("start capture", err)
	}

	o.session = session
	o.state = StateCapturing
	slog.Info("Capture started", "session", session.ID, "strategy", o.strategy.Name())
	return StartResult{Success: true, SessionID: session.ID}, nil
}

// Stop signals the helper without waiting for it, then drains the session
func (o *Orchestrator) Stop(ctx context.Context) (StopResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateIdle {
		return StopResult{Success: true, Chunks: []audio.AudioChunk{}}, nil
	}

	session := o.session
	o.strategy.StopCapture(session)
	chunks := session.close()
	o.session = nil
	o.state = StateIdle

	result := StopResult{Success: true, SessionID: session.ID, Chunks: chunks}
	if result.Chunks == nil {
		result.Chunks = []audio.AudioChunk{}
	}

	if o.archive != nil && len(chunks) > 0 {
		if err := o.archive.SaveSession(session.ID, session.StartedAt, chunks); err != nil {
			slog.Warn("Failed to archive capture session", "session", session.ID, "error", err)
		} else {
			result.Archived = true
		}
	}

	slog.Info("Capture stopped", "session", session.ID, "chunks", len(chunks))
	return result, nil
}

// Feed accepts raw PCM from a delegated capture collaborator
func (o *Orchestrator) Feed(data []byte) (int, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil {
		return 0, ErrNotCapturing
	}
	if o.strategy.Supervised() {
		return 0, ErrSupervisedSource
	}
	chunker := session.Chunker()
	if chunker == nil {
		return 0, ErrNotCapturing
	}
	return chunker.Feed(data), nil
}

// CaptureScreenshot is independent of the capture state
func (o *Orchestrator) CaptureScreenshot(ctx context.Context, opts screenshot.Options) screenshot.Result {
	return o.screenshots.Capture(ctx, opts)
}

func (o *Orchestrator) Platform() config.Platform {
	return o.platform
}

func (o *Orchestrator) StrategyName() string {
	return o.strategy.Name()
}

// Config returns a copy of the current audio configuration
func (o *Orchestrator) Config() config.AudioConfig {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg.Audio
}

// Snapshot returns a copy of the full configuration
func (o *Orchestrator) Snapshot() config.Config {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	cfg := o.cfg
	cfg.Capture.Args = append([]string(nil), o.cfg.Capture.Args...)
	return cfg
}

// UpdateConfig merges patch into the audio configuration. An invalid result
// is rejected and the previous configuration kept. A running session keeps
// the chunk size it started with.
func (o *Orchestrator) UpdateConfig(patch config.AudioPatch) (config.AudioConfig, error) {
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()

	merged := o.cfg.Audio.Merge(patch)
	if err := merged.Validate(); err != nil {
		return o.cfg.Audio, fmt.Errorf("invalid audio config: %w", err)
	}
	o.cfg.Audio = merged
	slog.Info("Audio config updated", "fields", patch.SetFields(), "chunk_size", merged.ChunkSizeBytes())
	return merged, nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		State:    o.state,
		Platform: o.platform,
		Strategy: o.strategy.Name(),
	}
	if o.session != nil {
		started := o.session.StartedAt
		st.SessionID = o.session.ID
		st.StartedAt = &started
		st.BufferedChunks = o.session.ChunkCount()
		if h := o.session.Handle(); h != nil {
			st.Pid = h.Pid()
		}
	}
	return st
}
