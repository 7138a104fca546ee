package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeWAV wraps little-endian PCM samples in a canonical 44-byte RIFF header
func EncodeWAV(w io.Writer, pcm []byte, sampleRate, channels, bitsPerSample int) error {
	if sampleRate <= 0 || channels <= 0 || bitsPerSample <= 0 || bitsPerSample%8 != 0 {
		return fmt.Errorf("invalid wav format: rate=%d channels=%d bits=%d", sampleRate, channels, bitsPerSample)
	}
	blockAlign := channels * bitsPerSample / 8
	if len(pcm)%blockAlign != 0 {
		return fmt.Errorf("pcm length %d is not a multiple of the %d-byte frame", len(pcm), blockAlign)
	}

	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36+len(pcm)))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&header, binary.LittleEndian, uint16(channels))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&header, binary.LittleEndian, uint16(bitsPerSample))
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(len(pcm)))

	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

// JoinChunks concatenates chunk payloads in order
func JoinChunks(chunks []AudioChunk) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c.Data)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out
}
