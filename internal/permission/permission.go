// Package permission negotiates OS level microphone and screen access.
package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Access is the OS permission state for one media kind
type Access string

const (
	AccessGranted       Access = "granted"
	AccessDenied        Access = "denied"
	AccessNotDetermined Access = "not-determined"
	AccessRestricted    Access = "restricted"
	AccessUnknown       Access = "unknown"
)

// ParseAccess maps a provider answer onto an Access value
func ParseAccess(s string) (Access, error) {
	switch Access(strings.ToLower(strings.TrimSpace(s))) {
	case AccessGranted, "authorized":
		return AccessGranted, nil
	case AccessDenied:
		return AccessDenied, nil
	case AccessNotDetermined, "notdetermined", "not_determined":
		return AccessNotDetermined, nil
	case AccessRestricted:
		return AccessRestricted, nil
	case AccessUnknown:
		return AccessUnknown, nil
	}
	return AccessUnknown, fmt.Errorf("unrecognised permission state %q", s)
}

// MediaKind names what a permission covers
type MediaKind string

const (
	KindMicrophone MediaKind = "microphone"
	KindScreen     MediaKind = "screen"
)

// Settings sections accepted by OpenSettings
const (
	SectionMicrophone = "microphone"
	SectionScreen     = "screen"
	SectionPrivacy    = "privacy"
)

// ErrUnsupported is returned by providers that cannot perform an operation
var ErrUnsupported = errors.New("not supported on this platform")

// Status is a fresh snapshot; it is never cached between checks
type Status struct {
	Microphone Access `json:"microphone"`
	Screen     Access `json:"screen"`
	NeedsSetup bool   `json:"needsSetup"`
	Error      string `json:"error,omitempty"`
}

type MicrophoneResult struct {
	Granted bool   `json:"granted"`
	Status  Access `json:"status"`
	Error   string `json:"error,omitempty"`
}

type SettingsResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Negotiator is a platform permission strategy. None of its methods return
// errors; failures are folded into the result values.
type Negotiator interface {
	Check(ctx context.Context) Status
	RequestMicrophone(ctx context.Context) MicrophoneResult
	OpenSettings(ctx context.Context, section string) SettingsResult
}

// Provider is the OS permission surface used by the gated strategy
type Provider interface {
	MediaAccessStatus(ctx context.Context, kind MediaKind) (Access, error)
	AskForMediaAccess(ctx context.Context, kind MediaKind) (bool, error)
	// ProbeDisplaySources attempts a minimal display enumeration. It has the
	// side effect of registering the application for screen capture prompts.
	ProbeDisplaySources(ctx context.Context) (bool, error)
	OpenSettingsPane(ctx context.Context, section string) error
}
