// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	applog "beats/internal/log"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel    string            `yaml:"log_level"`         // Logging level (e.g., "debug", "info", "warn", "error").
	Command     string            `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine.
	Audio       AudioConfig       `yaml:"audio"`             // Audio capture settings.
	Detector    DetectorConfig    `yaml:"detector"`          // Spectral analysis and adaptive threshold settings.
	Instruments InstrumentsConfig `yaml:"instruments"`       // Bass, clap and hi-hat mappings.
	Recording   RecordingConfig   `yaml:"recording"`         // Audio recording settings.
	Transport   TransportConfig   `yaml:"transport"`         // Beat event delivery settings.

	// Runtime-only options set from the command line.
	TUIMode     bool   `yaml:"-"` // Show the live monitor instead of plain logs.
	PickDevice  bool   `yaml:"-"` // Choose the input device interactively before capture.
	InputFile   string `yaml:"-"` // WAV file for offline analysis.
	OutputFile  string `yaml:"-"` // Recording file path, derived from Recording.OutputDir when empty.
	JSONOutput  bool   `yaml:"-"` // Print analysis results and device lists as JSON.
	Diagnostics bool   `yaml:"-"` // Print per-chunk detector diagnostics during analysis.
}

// AudioConfig holds settings related to audio input and chunking.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Chunk size: frames per capture callback and per analysis step.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Channels captured; only the first (left) is analysed.
	QueueCapacity   int     `yaml:"queue_capacity"`    // Chunks held between capture and detection before dropping.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record analysed audio to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	Format    string `yaml:"format"`     // File format for recordings ("wav").
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16).
}

// TransportConfig holds settings related to delivering beat events.
type TransportConfig struct {
	LogEvents          bool   `yaml:"log_events"`           // Log every confirmed beat.
	WebSocketEnabled   bool   `yaml:"websocket_enabled"`    // Broadcast beats to WebSocket clients.
	WebSocketAddress   string `yaml:"websocket_address"`    // Listen address for the WebSocket server.
	WebSocketQueueSize int    `yaml:"websocket_queue_size"` // Pending broadcasts before new ones are dropped.
	UDPEnabled         bool   `yaml:"udp_enabled"`          // Send beats as UDP packets.
	UDPTargetAddress   string `yaml:"udp_target_address"`   // Target address and port for UDP packets.
	UDPQueueLength     int    `yaml:"udp_queue_length"`     // Pending packets before new ones are dropped.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"beats.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the application level settings and then the detector
// settings through the session configuration they produce.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside [1, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputChannels < 1 {
		return fmt.Errorf("audio.input_channels must be at least 1, got %d", c.Audio.InputChannels)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice)
	}
	if c.Audio.QueueCapacity < MinQueueCapacity {
		return fmt.Errorf("audio.queue_capacity must be at least %d, got %d", MinQueueCapacity, c.Audio.QueueCapacity)
	}

	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, "wav") {
			return fmt.Errorf("recording.format %q is not supported", c.Recording.Format)
		}
		if c.Recording.BitDepth != 16 {
			return fmt.Errorf("recording.bit_depth %d is not supported", c.Recording.BitDepth)
		}
	}

	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("transport.websocket_address must be set when WebSocket is enabled")
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			return fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
	}

	return c.Session().Validate()
}

// applyEnvOverrides applies ENV_* variables on top of file and default values.
// Malformed values are ignored and the previous value kept.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = iVal
			applog.Infof("configuration: Overriding audio.input_device from env: %d", iVal)
		}
	}
	// ENV_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Audio.SampleRate = fVal
			applog.Infof("configuration: Overriding audio.sample_rate from env: %.0f", fVal)
		}
	}

	// ENV_TRANSPORT_{...}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_WEBSOCKET_ENABLED
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Infof("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WEBSOCKET_ADDRESS
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}
}
