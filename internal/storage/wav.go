package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SaveWAV writes raw little-endian PCM bytes to path as a WAV file with
// the given format parameters. The parent directory is created if needed.
func SaveWAV(path string, pcm []byte, sampleRate, bitDepth, channels int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Data:   pcmToInts(pcm),
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// pcmToInts converts little-endian int16 PCM bytes to the int samples the
// wav encoder consumes. A trailing odd byte is ignored.
func pcmToInts(pcm []byte) []int {
	samples := make([]int, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int(int16(binary.LittleEndian.Uint16(pcm[i:]))))
	}
	return samples
}
