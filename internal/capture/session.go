package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/deskcapture/internal/audio"
	"github.com/audiolibrelab/deskcapture/internal/process"
)

// Session is one Idle→Capturing→Idle cycle. Chunks arriving after close are dropped.
type Session struct {
	ID        string
	StartedAt time.Time

	mu      sync.Mutex
	chunks  []audio.AudioChunk
	chunker *audio.Chunker
	handle  process.Handle
	exitErr error
	closed  bool
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
	}
}

func (s *Session) appendChunk(c audio.AudioChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.chunks = append(s.chunks, c)
}

func (s *Session) attach(h process.Handle, c *audio.Chunker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
	s.chunker = c
}

// processExited runs on the supervisor's waiter goroutine
func (s *Session) processExited(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
	s.exitErr = err
	if !s.closed {
		slog.Warn("Capture process exited while capturing", "session", s.ID, "error", err)
	}
}

// Handle returns the running process, if any
func (s *Session) Handle() process.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Chunker returns the session's chunker, if any
func (s *Session) Chunker() *audio.Chunker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunker
}

// ChunkCount is the number of buffered chunks
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// close marks the session finished and hands back every buffered chunk
func (s *Session) close() []audio.AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	chunks := s.chunks
	s.chunks = nil
	s.handle = nil
	if s.chunker != nil {
		s.chunker.Reset()
	}
	return chunks
}
