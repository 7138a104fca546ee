package process

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPid is wrapped in a ProcessSpawnError when the OS reports no pid
var ErrNoPid = errors.New("process: spawned without a pid")

// BinaryNotFoundError reports a capture helper that is not present on disk.
// Path is the first location tried; Tried lists every candidate in order.
type BinaryNotFoundError struct {
	Path  string
	Tried []string
}

func (e *BinaryNotFoundError) Error() string {
	if len(e.Tried) > 1 {
		return fmt.Sprintf("capture binary not found: %s (searched %s)", e.Path, strings.Join(e.Tried[1:], ", "))
	}
	return fmt.Sprintf("capture binary not found: %s", e.Path)
}

// ProcessSpawnError reports a helper that exists but could not be started
type ProcessSpawnError struct {
	Path string
	Err  error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Path, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error {
	return e.Err
}
