// Package archive persists finished capture sessions in a badger store.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/audiolibrelab/deskcapture/internal/audio"
)

// ErrSessionNotFound is returned when no archived session matches an id
var ErrSessionNotFound = errors.New("archive: session not found")

// SessionMeta describes an archived session
type SessionMeta struct {
	ID             string    `msgpack:"id" json:"id"`
	StartedAt      time.Time `msgpack:"started_at" json:"startedAt"`
	StoppedAt      time.Time `msgpack:"stopped_at" json:"stoppedAt"`
	ChunkCount     int       `msgpack:"chunk_count" json:"chunkCount"`
	SampleRate     int       `msgpack:"sample_rate" json:"sampleRate"`
	DurationMillis int       `msgpack:"duration_millis" json:"durationMillis"`
	Source         string    `msgpack:"source" json:"source"`
}

// Store is a badger-backed session archive. Layout:
//
//	session/<id>/meta        msgpack SessionMeta
//	session/<id>/chunk/<n>   msgpack audio.AudioChunk, n zero padded
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates an archive in dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(slogLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", dir, err)
	}
	slog.Debug("Session archive opened", "directory", dir)
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a throwaway archive
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(slogLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory archive: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func metaKey(id string) []byte {
	return []byte("session/" + id + "/meta")
}

func chunkPrefix(id string) []byte {
	return []byte("session/" + id + "/chunk/")
}

func chunkKey(id string, n int) []byte {
	return []byte(fmt.Sprintf("session/%s/chunk/%08d", id, n))
}

// SaveSession writes the chunks and their metadata
func (s *Store) SaveSession(id string, startedAt time.Time, chunks []audio.AudioChunk) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	meta := SessionMeta{
		ID:         id,
		StartedAt:  startedAt,
		StoppedAt:  s.now(),
		ChunkCount: len(chunks),
	}
	if len(chunks) > 0 {
		meta.SampleRate = chunks[0].SampleRate
		meta.Source = string(chunks[0].Source)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, c := range chunks {
		meta.DurationMillis += c.DurationMillis
		value, err := msgpack.Marshal(&c)
		if err != nil {
			return fmt.Errorf("failed to encode chunk %d: %w", i, err)
		}
		if err := wb.Set(chunkKey(id, i), value); err != nil {
			return fmt.Errorf("failed to write chunk %d: %w", i, err)
		}
	}

	value, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}
	if err := wb.Set(metaKey(id), value); err != nil {
		return fmt.Errorf("failed to write session metadata: %w", err)
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush session %s: %w", id, err)
	}
	slog.Info("Session archived", "session", id, "chunks", len(chunks), "duration_ms", meta.DurationMillis)
	return nil
}

// Sessions lists archived sessions, newest first
func (s *Store) Sessions() ([]SessionMeta, error) {
	var sessions []SessionMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("session/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), "/meta") {
				continue
			}
			var meta SessionMeta
			if err := item.Value(func(v []byte) error {
				return msgpack.Unmarshal(v, &meta)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", item.Key(), err)
			}
			sessions = append(sessions, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// Session looks up one session by id or unique id prefix
func (s *Store) Session(id string) (SessionMeta, error) {
	var meta SessionMeta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return msgpack.Unmarshal(v, &meta)
		})
	})
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return SessionMeta{}, err
	}

	sessions, err := s.Sessions()
	if err != nil {
		return SessionMeta{}, err
	}
	var matches []SessionMeta
	for _, m := range sessions {
		if strings.HasPrefix(m.ID, id) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return SessionMeta{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	case 1:
		return matches[0], nil
	}
	return SessionMeta{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", id, len(matches))
}

// Chunks returns a session's chunks in capture order
func (s *Store) Chunks(id string) ([]audio.AudioChunk, error) {
	var chunks []audio.AudioChunk
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = chunkPrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var c audio.AudioChunk
			if err := it.Item().Value(func(v []byte) error {
				return msgpack.Unmarshal(v, &c)
			}); err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			chunks = append(chunks, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Delete removes a session and all its chunks
func (s *Store) Delete(id string) error {
	meta, err := s.Session(id)
	if err != nil {
		return err
	}

	var keys [][]byte
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("session/" + meta.ID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", meta.ID, err)
	}
	slog.Info("Session deleted", "session", meta.ID, "keys", len(keys))
	return nil
}

// slogLogger routes badger's internal logging through slog
type slogLogger struct{}

func (slogLogger) Errorf(format string, args ...interface{}) {
	slog.Error("Badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (slogLogger) Warningf(format string, args ...interface{}) {
	slog.Warn("Badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (slogLogger) Infof(format string, args ...interface{}) {
	slog.Debug("Badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (slogLogger) Debugf(format string, args ...interface{}) {
	slog.Debug("Badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
