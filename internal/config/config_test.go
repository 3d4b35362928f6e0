package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen.WS)
	assert.False(t, cfg.Listen.SRTEnabled)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 16, cfg.Audio.BitDepth())
	assert.Equal(t, 100, cfg.Queues.Playback)
	assert.Equal(t, 50, cfg.Queues.Viz)
	assert.Equal(t, 100*time.Millisecond, cfg.Monitor.JitterThreshold)
	assert.Equal(t, 5*time.Second, cfg.Writer.Interval)
	assert.Equal(t, 2, cfg.Writer.Workers)
	assert.Equal(t, time.Second, cfg.Reporter.Interval)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perch.yaml")
	yaml := `
listen:
  ws: ":9000"
  srt_enabled: true
audio:
  sample_rate: 44100
writer:
  interval: 30s
  output_dir: /var/lib/perch
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen.WS)
	assert.True(t, cfg.Listen.SRTEnabled)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 30*time.Second, cfg.Writer.Interval)
	assert.Equal(t, "/var/lib/perch", cfg.Writer.OutputDir)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Queues.Playback)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero sample rate", "audio:\n  sample_rate: 0\n"},
		{"negative queue", "queues:\n  playback: -1\n"},
		{"zero writer interval", "writer:\n  interval: 0s\n"},
		{"zero workers", "writer:\n  workers: 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "perch.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
