package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aviarylabs/perch/internal/pipeline"
)

func testWriterConfig(dir string) WriterConfig {
	return WriterConfig{
		Interval:   5 * time.Second,
		OutputDir:  dir,
		Prefix:     "recording",
		SampleRate: 48000,
		BitDepth:   16,
		Channels:   1,
	}
}

func pcmBytes(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

func TestSaveWAVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	want := []int16{0, 100, -100, 32767, -32768}
	require.NoError(t, SaveWAV(path, pcmBytes(want...), 48000, 16, 1))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(48000), dec.SampleRate)
	assert.Equal(t, uint16(16), dec.BitDepth)
	assert.Equal(t, uint16(1), dec.NumChans)

	require.Len(t, buf.Data, len(want))
	for i, s := range want {
		assert.Equal(t, int(s), buf.Data[i], "sample %d", i)
	}
}

func TestWriterProducesIndexedArtifactsPlusFinal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	acc := &pipeline.Accumulator{}
	pool := NewPool(2, 8, nil)
	w := NewWriter(testWriterConfig(dir), acc, pool, nil)

	const ticks = 3
	for i := 0; i < ticks; i++ {
		acc.Append(pcmBytes(int16(i), int16(i+1)))
		w.flushTick()
	}
	// Empty intervals produce no artifact.
	w.flushTick()

	// Leftover bytes at shutdown go to the final artifact.
	acc.Append(pcmBytes(7, 8, 9))
	w.finalFlush()
	pool.Shutdown()

	for i := 0; i < ticks; i++ {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("recording_%04d.wav", i)))
	}
	assert.FileExists(t, filepath.Join(dir, "recording_0003_final.wav"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, ticks+1)
	assert.EqualValues(t, ticks+1, w.ArtifactCount())
	assert.Zero(t, w.FailureCount())
}

func TestNoFinalArtifactWhenBufferEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	acc := &pipeline.Accumulator{}
	pool := NewPool(1, 4, nil)
	w := NewWriter(testWriterConfig(dir), acc, pool, nil)

	acc.Append(pcmBytes(1, 2))
	w.flushTick()
	w.finalFlush() // buffer already drained
	pool.Shutdown()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.FileExists(t, filepath.Join(dir, "recording_0000.wav"))
}

func TestWriterRunFlushesOnCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	acc := &pipeline.Accumulator{}
	pool := NewPool(1, 4, nil)

	cfg := testWriterConfig(dir)
	cfg.Interval = time.Hour // only the shutdown flush fires
	w := NewWriter(cfg, acc, pool, nil)

	acc.Append(pcmBytes(1, 2, 3))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}
	pool.Shutdown()

	assert.FileExists(t, filepath.Join(dir, "recording_0000_final.wav"))
}

func TestPoolBoundedBacklog(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, 2, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	block := make(chan struct{})
	started := make(chan struct{})
	ok := pool.Submit(func() { defer wg.Done(); close(started); <-block })
	require.True(t, ok)
	<-started

	// Worker is busy; backlog holds exactly two more.
	assert.True(t, pool.Submit(func() {}))
	assert.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}))
	assert.EqualValues(t, 1, pool.Rejected())

	close(block)
	wg.Wait()
	pool.Shutdown()
}

func TestPoolShutdownDrainsQueuedJobs(t *testing.T) {
	t.Parallel()

	pool := NewPool(2, 8, nil)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 6; i++ {
		pool.Submit(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	pool.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 6, ran)
}

func TestSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, 2, nil)
	pool.Shutdown()

	assert.False(t, pool.Submit(func() {}))
}
