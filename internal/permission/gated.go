package permission

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultProbeTimeout bounds status queries, probes and opening settings
	DefaultProbeTimeout = 5 * time.Second
	// DefaultPromptTimeout bounds an interactive access prompt, which waits on the user
	DefaultPromptTimeout = 2 * time.Minute
)

// Gated reads permissions from the OS store and infers screen access by probing
type Gated struct {
	provider Provider
	timeout  time.Duration

	// PromptTimeout bounds RequestMicrophone's prompt. Zero uses DefaultPromptTimeout.
	PromptTimeout time.Duration
}

// NewGated creates the gated strategy. A non-positive timeout uses DefaultProbeTimeout.
func NewGated(provider Provider, timeout time.Duration) *Gated {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Gated{provider: provider, timeout: timeout}
}

func (g *Gated) Check(ctx context.Context) Status {
	mic, err := g.micStatus(ctx)
	if err != nil {
		slog.Warn("Microphone permission query failed", "error", err)
		return unknownStatus(err)
	}

	granted, err := g.probe(ctx)
	if err != nil {
		slog.Warn("Screen permission probe failed", "error", err)
		return unknownStatus(err)
	}

	status := Status{Microphone: mic, Screen: AccessGranted}
	if !granted {
		status.Screen = AccessDenied
		status.NeedsSetup = true
	}
	slog.Debug("Permission check", "microphone", status.Microphone, "screen", status.Screen, "needs_setup", status.NeedsSetup)
	return status
}

func (g *Gated) RequestMicrophone(ctx context.Context) MicrophoneResult {
	current, err := g.micStatus(ctx)
	if err != nil {
		slog.Warn("Microphone permission query failed", "error", err)
		return MicrophoneResult{Status: AccessUnknown, Error: err.Error()}
	}
	if current == AccessGranted {
		return MicrophoneResult{Granted: true, Status: AccessGranted}
	}

	prompt := g.PromptTimeout
	if prompt <= 0 {
		prompt = DefaultPromptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, prompt)
	defer cancel()
	ok, err := g.provider.AskForMediaAccess(ctx, KindMicrophone)
	if err != nil {
		slog.Warn("Microphone permission request failed", "error", err)
		return MicrophoneResult{Status: AccessUnknown, Error: err.Error()}
	}
	if ok {
		return MicrophoneResult{Granted: true, Status: AccessGranted}
	}
	return MicrophoneResult{Granted: false, Status: AccessDenied}
}

// OpenSettings re-issues the display probe so the app is listed in the pane, then opens it
func (g *Gated) OpenSettings(ctx context.Context, section string) SettingsResult {
	switch section {
	case SectionMicrophone, SectionScreen, SectionPrivacy, "":
	default:
		return SettingsResult{Success: false, Error: fmt.Sprintf("unknown settings section: %s", section)}
	}

	if _, err := g.probe(ctx); err != nil {
		slog.Debug("Registration probe failed before opening settings", "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.provider.OpenSettingsPane(ctx, section); err != nil {
		return SettingsResult{Success: false, Error: err.Error()}
	}
	return SettingsResult{Success: true}
}

func (g *Gated) micStatus(ctx context.Context) (Access, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return bounded(ctx, func(ctx context.Context) (Access, error) {
		return g.provider.MediaAccessStatus(ctx, KindMicrophone)
	})
}

func (g *Gated) probe(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return bounded(ctx, g.provider.ProbeDisplaySources)
}

// bounded returns ctx.Err() if fn does not finish before the deadline,
// even when fn itself ignores the context
func bounded[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("permission probe timed out: %w", ctx.Err())
	}
}

func unknownStatus(err error) Status {
	return Status{
		Microphone: AccessUnknown,
		Screen:     AccessUnknown,
		NeedsSetup: true,
		Error:      err.Error(),
	}
}
