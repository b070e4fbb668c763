// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beats/internal/beat"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestNewConfigMatchesDetectorDefaults(t *testing.T) {
	t.Parallel()
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	got := cfg.Session()
	want := beat.DefaultConfig()
	if got.SampleRate != want.SampleRate || got.ChunkSize != want.ChunkSize ||
		got.SubBands != want.SubBands || got.Threshold != want.Threshold ||
		got.HiHatGapBatch != want.HiHatGapBatch {
		t.Errorf("session config %+v differs from detector defaults %+v", got, want)
	}
	for _, inst := range beat.Instruments {
		g, w := got.Instruments[inst], want.Instruments[inst]
		if g.BaseBand != w.BaseBand || g.Divisor != w.Divisor || g.MinExcited != w.MinExcited || g.Tracker != w.Tracker {
			t.Errorf("%s: got %+v, want %+v", inst, g, w)
		}
		if len(g.Offsets) != len(w.Offsets) || len(g.Weights) != len(w.Weights) {
			t.Errorf("%s: mapping lengths differ", inst)
		}
	}
	if cfg.HistoryLength() != 46 {
		t.Errorf("HistoryLength() = %d, want 46", cfg.HistoryLength())
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  frames_per_buffer: 1024
detector:
  absolute_floor: 0.2
instruments:
  bass:
    min_gap: 4
transport:
  udp_enabled: true
  udp_target_address: "10.0.0.2:7000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Audio.FramesPerBuffer != 1024 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Detector.AbsoluteFloor != 0.2 || cfg.Instruments.Bass.MinGap != 4 {
		t.Errorf("detector values not applied: %+v %+v", cfg.Detector, cfg.Instruments.Bass)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Audio.SampleRate != DefaultSampleRate || cfg.Instruments.Bass.PrimingSize != 4 {
		t.Errorf("defaults lost: sample rate %.0f, bass priming %d", cfg.Audio.SampleRate, cfg.Instruments.Bass.PrimingSize)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("transport not applied: %+v", cfg.Transport)
	}
	// 94618 / 1024 = 92 chunks per second.
	if cfg.HistoryLength() != 92 {
		t.Errorf("HistoryLength() = %d, want 92", cfg.HistoryLength())
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_AUDIO_DEVICE", "3")
	t.Setenv("ENV_AUDIO_SAMPLE_RATE", "not-a-number")
	t.Setenv("ENV_WEBSOCKET_ENABLED", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Audio.InputDevice != 3 || !cfg.Transport.WebSocketEnabled {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("malformed env value replaced sample rate with %.0f", cfg.Audio.SampleRate)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"Frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, "frames_per_buffer"},
		{"Channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"Device", func(c *Config) { c.Audio.InputDevice = -2 }, "input_device"},
		{"Queue", func(c *Config) { c.Audio.QueueCapacity = 1 }, "queue_capacity"},
		{"Recording format", func(c *Config) { c.Recording.Enabled = true; c.Recording.Format = "flac" }, "recording.format"},
		{"Recording depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 24 }, "bit_depth"},
		{"UDP port", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }, "udp_target_address"},
		{"WebSocket address", func(c *Config) { c.Transport.WebSocketEnabled = true; c.Transport.WebSocketAddress = "" }, "websocket_address"},
		{"Too many sub-bands", func(c *Config) { c.Detector.SubBands = 500 }, "sub-bands"},
		{"Clap mapping", func(c *Config) { c.Instruments.Clap.Weights = []float64{1} }, "clap"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInvalidDetectorSettingsWrapSessionError(t *testing.T) {
	t.Parallel()
	cfg := NewConfig()
	cfg.Detector.HistorySeconds = 0
	if err := cfg.Validate(); !errors.Is(err, beat.ErrInvalidConfiguration) {
		t.Errorf("expected beat.ErrInvalidConfiguration, got %v", err)
	}
}
