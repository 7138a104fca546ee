package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell helpers are not available on windows")
	}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not exit within 5s")
	}
}

func TestStart_CopiesStdoutAndClearsOnExit(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "emit", `printf 'abc'; printf 'def'; echo oops >&2`)

	var out syncBuffer
	exited := make(chan error, 1)
	s := NewSupervisor(time.Second)

	h, err := s.Start(context.Background(), script, Options{
		Stdout: &out,
		OnExit: func(err error) { exited <- err },
	})
	if err != nil {
		t.Fatalf("Expected start to succeed, got %v", err)
	}
	if h.Pid() <= 0 {
		t.Errorf("Expected a positive pid, got %d", h.Pid())
	}

	waitDone(t, h)
	if got := out.String(); got != "abcdef" {
		t.Errorf("Expected stdout 'abcdef', got %q", got)
	}
	select {
	case err := <-exited:
		if err != nil {
			t.Errorf("Expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit was not called")
	}
	if s.Current() != nil {
		t.Error("Expected no current process after exit")
	}
}

func TestStart_PassesArgsAndEnv(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "args", `printf '%s-%s' "$1" "$DESKCAPTURE_TEST"`)

	var out syncBuffer
	s := NewSupervisor(time.Second)
	h, err := s.Start(context.Background(), script, Options{
		Args:   []string{"first"},
		Env:    []string{"DESKCAPTURE_TEST=env"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Expected start to succeed, got %v", err)
	}
	waitDone(t, h)
	if got := out.String(); got != "first-env" {
		t.Errorf("Expected 'first-env', got %q", got)
	}
}

func TestStart_BinaryNotFound(t *testing.T) {
	s := NewSupervisor(time.Second)
	missing := filepath.Join(t.TempDir(), "SystemAudioDump")

	_, err := s.Start(context.Background(), missing, Options{})
	var notFound *BinaryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected BinaryNotFoundError, got %v", err)
	}
	if notFound.Path != missing {
		t.Errorf("Expected path %s, got %s", missing, notFound.Path)
	}
	if s.Current() != nil {
		t.Error("Expected no current process")
	}
}

func TestResolve_BareNameReportsSearchedPaths(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	t.Setenv("PATH", dirA+string(os.PathListSeparator)+dirB)

	_, err := Resolve("dc-missing-helper")
	var notFound *BinaryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected BinaryNotFoundError, got %v", err)
	}
	if !filepath.IsAbs(notFound.Path) {
		t.Errorf("Expected an absolute attempted path, got %s", notFound.Path)
	}

	exe, _ := os.Executable()
	want := []string{
		filepath.Join(filepath.Dir(exe), "dc-missing-helper"),
		filepath.Join(dirA, "dc-missing-helper"),
		filepath.Join(dirB, "dc-missing-helper"),
	}
	if len(notFound.Tried) != len(want) {
		t.Fatalf("Expected %d candidates, got %v", len(want), notFound.Tried)
	}
	for i := range want {
		if notFound.Tried[i] != want[i] {
			t.Errorf("Candidate %d: expected %s, got %s", i, want[i], notFound.Tried[i])
		}
	}
	if notFound.Path != want[0] {
		t.Errorf("Expected path %s, got %s", want[0], notFound.Path)
	}
}

func TestResolve_BareNameOnPath(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "dc-path-helper", "exit 0")
	t.Setenv("PATH", filepath.Dir(script))

	resolved, err := Resolve("dc-path-helper")
	if err != nil {
		t.Fatalf("Expected helper on PATH to resolve, got %v", err)
	}
	if resolved != script {
		t.Errorf("Expected %s, got %s", script, resolved)
	}
}

func TestStart_NotExecutable(t *testing.T) {
	skipOnWindows(t)
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	s := NewSupervisor(time.Second)
	_, err := s.Start(context.Background(), path, Options{})
	var spawnErr *ProcessSpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("Expected ProcessSpawnError, got %v", err)
	}
	if spawnErr.Unwrap() == nil {
		t.Error("Expected spawn error to carry the cause")
	}
}

func TestStop_ClearsImmediatelyAndTerminates(t *testing.T) {
	skipOnWindows(t)
	script := writeScript(t, "longrun", `exec sleep 30`)

	s := NewSupervisor(time.Second)
	h, err := s.Start(context.Background(), script, Options{})
	if err != nil {
		t.Fatalf("Expected start to succeed, got %v", err)
	}
	if s.Current() == nil {
		t.Fatal("Expected a current process while running")
	}

	s.Stop(h)
	if s.Current() != nil {
		t.Error("Expected handle to be cleared immediately on stop")
	}
	waitDone(t, h)

	// Stopping an exited process is a no-op
	s.Stop(h)
	s.Stop(nil)
}

func TestKillStragglers(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("process names of shell scripts are only reliable on linux")
	}
	script := writeScript(t, "dcstray", `sleep 30`)

	orphan := exec.Command(script)
	if err := orphan.Start(); err != nil {
		t.Fatalf("Failed to start orphan: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		orphan.Wait()
		close(exited)
	}()
	// Give the kernel time to publish the process name
	time.Sleep(200 * time.Millisecond)

	s := NewSupervisor(3 * time.Second)
	if killed := s.KillStragglers(context.Background(), "dcstray"); killed < 1 {
		t.Errorf("Expected at least 1 straggler terminated, got %d", killed)
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		orphan.Process.Kill()
		t.Fatal("Straggler was not terminated")
	}

	if killed := s.KillStragglers(context.Background(), ""); killed != 0 {
		t.Errorf("Expected empty name to be ignored, got %d", killed)
	}
}

func TestSameBinary(t *testing.T) {
	if !sameBinary("SystemAudioDump", "systemaudiodump") {
		t.Error("Expected case-insensitive match")
	}
	if !sameBinary("helper.exe", "helper") {
		t.Error("Expected .exe suffix to be ignored")
	}
	if sameBinary("helper2", "helper") {
		t.Error("Expected different names not to match")
	}
}
