package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// DefaultStragglerTimeout bounds the orphan scan before each start
const DefaultStragglerTimeout = 3 * time.Second

// Handle identifies a running capture process
type Handle interface {
	Pid() int
	// Done is closed once the process has exited and its output is drained
	Done() <-chan struct{}
}

// Options configures one spawn
type Options struct {
	Args   []string
	Env    []string
	Stdout io.Writer       // receives stdout bytes verbatim, in order
	OnExit func(err error) // called after the process exits, from the waiter goroutine
}

type proc struct {
	cmd  *exec.Cmd
	pid  int
	path string
	done chan struct{}
	once sync.Once
}

func (p *proc) Pid() int              { return p.pid }
func (p *proc) Done() <-chan struct{} { return p.done }

// Supervisor owns at most one capture helper process at a time
type Supervisor struct {
	StragglerTimeout time.Duration

	mu      sync.Mutex
	current *proc
}

// NewSupervisor creates a supervisor with the given orphan scan timeout
func NewSupervisor(stragglerTimeout time.Duration) *Supervisor {
	if stragglerTimeout <= 0 {
		stragglerTimeout = DefaultStragglerTimeout
	}
	return &Supervisor{StragglerTimeout: stragglerTimeout}
}

// Resolve locates a helper binary. Bare names are looked up next to the
// running executable first, then on PATH.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", &BinaryNotFoundError{Path: path}
	}
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		if exe, err := os.Executable(); err == nil {
			if local := filepath.Join(filepath.Dir(exe), path); isFile(local) {
				return local, nil
			}
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			tried := searchCandidates(path)
			if len(tried) == 0 {
				tried = []string{path}
			}
			return "", &BinaryNotFoundError{Path: tried[0], Tried: tried}
		}
		return resolved, nil
	}
	if !isFile(path) {
		return "", &BinaryNotFoundError{Path: path, Tried: []string{path}}
	}
	return path, nil
}

// searchCandidates lists where a bare helper name is looked for
func searchCandidates(name string) []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), name))
	}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			dir = "."
		}
		candidates = append(candidates, filepath.Join(dir, name))
	}
	return candidates
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Start kills stragglers of the same binary, then spawns path with opts.
// A process already owned by the supervisor is stopped first.
func (s *Supervisor) Start(ctx context.Context, path string, opts Options) (Handle, error) {
	resolved, err := Resolve(path)
	if err != nil {
		return nil, err
	}

	if prev := s.Current(); prev != nil {
		slog.Warn("Replacing running capture process", "pid", prev.Pid())
		s.Stop(prev)
	}

	if killed := s.KillStragglers(ctx, filepath.Base(resolved)); killed > 0 {
		slog.Info("Terminated orphaned capture processes", "binary", filepath.Base(resolved), "count", killed)
	}

	cmd := exec.Command(resolved, opts.Args...)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessSpawnError{Path: resolved, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ProcessSpawnError{Path: resolved, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ProcessSpawnError{Path: resolved, Err: err}
	}
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		return nil, &ProcessSpawnError{Path: resolved, Err: ErrNoPid}
	}

	p := &proc{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		path: resolved,
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	slog.Info("Capture process started", "binary", resolved, "pid", p.pid, "args", strings.Join(opts.Args, " "))

	sink := opts.Stdout
	if sink == nil {
		sink = io.Discard
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		if _, err := io.Copy(sink, stdout); err != nil && !errors.Is(err, os.ErrClosed) {
			slog.Debug("Capture stdout copy ended", "pid", p.pid, "error", err)
		}
	}()
	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("Capture process stderr", "pid", p.pid, "line", scanner.Text())
		}
	}()

	go s.wait(p, &readers, opts.OnExit)

	return p, nil
}

func (s *Supervisor) wait(p *proc, readers *sync.WaitGroup, onExit func(error)) {
	// Pipes must be drained before Wait closes them
	readers.Wait()
	err := p.cmd.Wait()

	s.mu.Lock()
	if s.current == p {
		s.current = nil
	}
	s.mu.Unlock()

	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	if err != nil {
		slog.Info("Capture process exited", "pid", p.pid, "exit_code", code, "error", err)
	} else {
		slog.Info("Capture process exited", "pid", p.pid, "exit_code", code)
	}

	p.once.Do(func() { close(p.done) })
	if onExit != nil {
		onExit(err)
	}
}

// Stop asks the process to terminate and returns without waiting for it
func (s *Supervisor) Stop(h Handle) {
	p, ok := h.(*proc)
	if !ok || p == nil {
		return
	}

	s.mu.Lock()
	if s.current == p {
		s.current = nil
	}
	s.mu.Unlock()

	select {
	case <-p.done:
		return
	default:
	}

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(syscall.SIGTERM)
	}
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Debug("Failed to signal capture process", "pid", p.pid, "error", err)
		return
	}
	slog.Debug("Sent termination signal to capture process", "pid", p.pid)
}

// Current returns the running process, or nil
func (s *Supervisor) Current() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current
}

// KillStragglers terminates leftover processes named like the helper.
// Failures are logged; the return value is the number of processes signalled.
func (s *Supervisor) KillStragglers(ctx context.Context, name string) int {
	if name == "" {
		return 0
	}
	timeout := s.StragglerTimeout
	if timeout <= 0 {
		timeout = DefaultStragglerTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		slog.Warn("Failed to scan process table for stragglers", "binary", name, "error", err)
		return 0
	}

	self := int32(os.Getpid())
	var owned int32
	s.mu.Lock()
	if s.current != nil {
		owned = int32(s.current.pid)
	}
	s.mu.Unlock()

	killed := 0
	for _, p := range procs {
		if ctx.Err() != nil {
			slog.Warn("Straggler scan timed out", "binary", name, "timeout", timeout)
			break
		}
		if p.Pid == self || p.Pid == owned {
			continue
		}
		procName, err := p.NameWithContext(ctx)
		if err != nil || !sameBinary(procName, name) {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			slog.Warn("Failed to terminate straggler", "pid", p.Pid, "binary", name, "error", err)
			continue
		}
		slog.Debug("Terminated straggler", "pid", p.Pid, "binary", name)
		killed++
	}
	return killed
}

func sameBinary(procName, name string) bool {
	procName = strings.TrimSuffix(strings.ToLower(procName), ".exe")
	name = strings.TrimSuffix(strings.ToLower(name), ".exe")
	return procName == name
}
