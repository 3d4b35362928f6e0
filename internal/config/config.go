// Package config loads service configuration from built-in defaults, an
// optional YAML file, and PERCH_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level service configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Listen   ListenConfig   `mapstructure:"listen"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Queues   QueueConfig    `mapstructure:"queues"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Writer   WriterConfig   `mapstructure:"writer"`
	Reporter ReporterConfig `mapstructure:"reporter"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
}

// ListenConfig holds the listener addresses. SRT ingest is optional;
// WebSocket ingest and the debug API are always on.
type ListenConfig struct {
	WS         string `mapstructure:"ws"`
	API        string `mapstructure:"api"`
	SRT        string `mapstructure:"srt"`
	SRTEnabled bool   `mapstructure:"srt_enabled"`
}

// AudioConfig fixes the pre-agreed PCM stream format.
type AudioConfig struct {
	SampleRate     int `mapstructure:"sample_rate"`
	Channels       int `mapstructure:"channels"`
	BytesPerSample int `mapstructure:"bytes_per_sample"`
}

// QueueConfig sets the bounded fan-out queue capacities, in frames.
type QueueConfig struct {
	Playback int `mapstructure:"playback"`
	Viz      int `mapstructure:"viz"`
}

// PlaybackConfig selects the playback output. Output is a path (usually a
// FIFO consumed by an external player); empty disables playback output.
type PlaybackConfig struct {
	Output string `mapstructure:"output"`
}

// MonitorConfig tunes continuity tracking.
type MonitorConfig struct {
	HistorySize     int           `mapstructure:"history_size"`
	JitterThreshold time.Duration `mapstructure:"jitter_threshold"`
}

// WriterConfig tunes the durable writer and its worker pool.
type WriterConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	OutputDir string        `mapstructure:"output_dir"`
	Prefix    string        `mapstructure:"prefix"`
	Workers   int           `mapstructure:"workers"`
	Backlog   int           `mapstructure:"backlog"`
}

// ReporterConfig tunes the console throughput reporter.
type ReporterConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ShutdownConfig bounds the graceful-shutdown window.
type ShutdownConfig struct {
	Grace time.Duration `mapstructure:"grace"`
}

// Load reads configuration, layering an optional YAML file and
// environment variables over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PERCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("listen.ws", ":8080")
	v.SetDefault("listen.api", ":8081")
	v.SetDefault("listen.srt", ":6001")
	v.SetDefault("listen.srt_enabled", false)

	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.bytes_per_sample", 2)

	v.SetDefault("queues.playback", 100)
	v.SetDefault("queues.viz", 50)

	v.SetDefault("playback.output", "")

	v.SetDefault("monitor.history_size", 500)
	v.SetDefault("monitor.jitter_threshold", 100*time.Millisecond)

	v.SetDefault("writer.interval", 5*time.Second)
	v.SetDefault("writer.output_dir", "recordings")
	v.SetDefault("writer.prefix", "recording")
	v.SetDefault("writer.workers", 2)
	v.SetDefault("writer.backlog", 8)

	v.SetDefault("reporter.interval", time.Second)

	v.SetDefault("shutdown.grace", 10*time.Second)
}

func (c *Config) validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 || c.Audio.BytesPerSample <= 0 {
		return fmt.Errorf("config: channels and bytes_per_sample must be positive")
	}
	if c.Queues.Playback <= 0 || c.Queues.Viz <= 0 {
		return fmt.Errorf("config: queue capacities must be positive")
	}
	if c.Writer.Interval <= 0 {
		return fmt.Errorf("config: writer interval must be positive, got %s", c.Writer.Interval)
	}
	if c.Writer.Workers <= 0 || c.Writer.Backlog <= 0 {
		return fmt.Errorf("config: writer workers and backlog must be positive")
	}
	if c.Reporter.Interval <= 0 {
		return fmt.Errorf("config: reporter interval must be positive, got %s", c.Reporter.Interval)
	}
	if c.Shutdown.Grace <= 0 {
		return fmt.Errorf("config: shutdown grace must be positive, got %s", c.Shutdown.Grace)
	}
	return nil
}

// BitDepth returns the sample width in bits for WAV encoding.
func (a AudioConfig) BitDepth() int { return a.BytesPerSample * 8 }
