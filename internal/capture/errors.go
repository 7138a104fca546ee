package capture

import (
	"errors"
	"fmt"

	"github.com/audiolibrelab/deskcapture/internal/permission"
	"github.com/audiolibrelab/deskcapture/internal/process"
)

// ErrNotCapturing is returned when audio is pushed while Idle
var ErrNotCapturing = errors.New("capture: not capturing")

// ErrSupervisedSource is returned when audio is pushed while a helper process owns the stream
var ErrSupervisedSource = errors.New("capture: audio is produced by the capture process")

// PermissionError means the host needs setup before capture can start
type PermissionError struct {
	Status permission.Status
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission setup required (microphone: %s, screen: %s)", e.Status.Microphone, e.Status.Screen)
	if e.Status.Error != "" {
		msg += ": " + e.Status.Error
	}
	return msg
}

// CaptureFailedError wraps any other failure while setting up capture
type CaptureFailedError struct {
	Op  string
	Err error
}

func (e *CaptureFailedError) Error() string {
	return fmt.Sprintf("capture failed to %s: %v", e.Op, e.Err)
}

func (e *CaptureFailedError) Unwrap() error {
	return e.Err
}

// classify keeps the typed start errors and wraps everything else
func classify(op string, err error) error {
	var permErr *PermissionError
	var notFound *process.BinaryNotFoundError
	var spawnErr *process.ProcessSpawnError
	var failed *CaptureFailedError
	switch {
	case errors.As(err, &permErr), errors.As(err, &notFound), errors.As(err, &spawnErr), errors.As(err, &failed):
		return err
	}
	return &CaptureFailedError{Op: op, Err: err}
}
