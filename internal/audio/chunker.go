package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/audiolibrelab/deskcapture/internal/config"
)

// Source tags where a chunk was captured from
type Source string

const (
	SourceMicrophone Source = config.SourceMicrophone
	SourceSystem     Source = config.SourceSystem
)

// AudioChunk is one fixed-duration window of mono PCM
type AudioChunk struct {
	Data           []byte `json:"data" msgpack:"data"`
	CapturedAt     int64  `json:"capturedAt" msgpack:"captured_at"`
	Source         Source `json:"source" msgpack:"source"`
	MimeType       string `json:"mimeType" msgpack:"mime_type"`
	DurationMillis int    `json:"durationMillis" msgpack:"duration_millis"`
	SampleRate     int    `json:"sampleRate" msgpack:"sample_rate"`
}

// Chunker slices a raw interleaved PCM stream into AudioChunks.
// Stereo input is downmixed to mono; partial windows are never emitted.
type Chunker struct {
	mu        sync.Mutex
	cfg       config.AudioConfig
	source    Source
	chunkSize int
	durMillis int
	mime      string
	buf       []byte
	emit      func(AudioChunk)
	now       func() time.Time
}

// NewChunker validates cfg and fixes the chunk size for the chunker's lifetime
func NewChunker(cfg config.AudioConfig, source Source, emit func(AudioChunk)) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}
	if emit == nil {
		return nil, fmt.Errorf("chunk sink is required")
	}

	size := cfg.ChunkSizeBytes()
	return &Chunker{
		cfg:       cfg,
		source:    source,
		chunkSize: size,
		durMillis: int(math.Round(cfg.ChunkDurationSeconds * 1000)),
		mime:      cfg.MimeType(),
		buf:       make([]byte, 0, 2*size),
		emit:      emit,
		now:       time.Now,
	}, nil
}

// ChunkSize is the raw window length in bytes
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Pending is the number of buffered bytes not yet emitted
func (c *Chunker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Feed appends data and emits every complete window. It returns the number of chunks emitted.
func (c *Chunker) Feed(data []byte) int {
	if len(data) == 0 {
		return 0
	}

	c.mu.Lock()
	c.buf = append(c.buf, data...)

	var ready []AudioChunk
	offset := 0
	for len(c.buf)-offset >= c.chunkSize {
		window := c.buf[offset : offset+c.chunkSize]
		offset += c.chunkSize
		ready = append(ready, c.makeChunk(window))
	}
	if offset > 0 {
		n := copy(c.buf, c.buf[offset:])
		c.buf = c.buf[:n]
	}
	c.mu.Unlock()

	for _, chunk := range ready {
		c.emit(chunk)
	}
	return len(ready)
}

// Write lets a process stdout be copied straight into the chunker
func (c *Chunker) Write(p []byte) (int, error) {
	c.Feed(p)
	return len(p), nil
}

// Reset drops any partially accumulated window
func (c *Chunker) Reset() {
	c.mu.Lock()
	c.buf = c.buf[:0]
	c.mu.Unlock()
}

func (c *Chunker) makeChunk(window []byte) AudioChunk {
	var data []byte
	if c.cfg.Channels == 2 {
		data = downmixStereo16(window)
	} else {
		data = make([]byte, len(window))
		copy(data, window)
	}

	return AudioChunk{
		Data:           data,
		CapturedAt:     c.now().UnixMilli(),
		Source:         c.source,
		MimeType:       c.mime,
		DurationMillis: c.durMillis,
		SampleRate:     c.cfg.SampleRate,
	}
}

// downmixStereo16 averages interleaved 16-bit little-endian L/R frames.
// Halves round away from zero.
func downmixStereo16(stereo []byte) []byte {
	frames := len(stereo) / 4
	mono := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(binary.LittleEndian.Uint16(stereo[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(stereo[i*4+2:])))
		sum := l + r
		avg := sum / 2
		if sum%2 != 0 {
			if sum > 0 {
				avg++
			} else {
				avg--
			}
		}
		binary.LittleEndian.PutUint16(mono[i*2:], uint16(int16(avg)))
	}
	return mono
}
