// SPDX-License-Identifier: MIT
package config

// Core configuration constants that define the boundaries and defaults
// for the beat detection engine.
const (
	// Audio capture defaults. The sample rate is the odd value the detector
	// constants were tuned against: it puts ~46 chunks of 2048 in a second.
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 94618       // Hz
	DefaultFramesPerBuffer = 2048        // One chunk per callback
	DefaultInputChannels   = 2           // Left channel is analysed
	DefaultLowLatency      = false       // Standard latency mode
	DefaultQueueCapacity   = 8           // Chunks buffered between capture and detection

	// Detector defaults.
	DefaultHistorySeconds    = 1.0
	DefaultSubBands          = 39
	DefaultFrequencyLow      = 30.0   // Hz
	DefaultFrequencyHigh     = 9010.0 // Hz
	DefaultVarianceSlope     = -15.0
	DefaultVarianceIntercept = 1.40
	DefaultAverageDivisor    = 1.15
	DefaultAbsoluteFloor     = 0.15
	DefaultHiHatGapBatch     = 35

	// Recording and logging defaults.
	DefaultFormat            = "wav"
	DefaultBitDepth          = 16
	DefaultRecordInputStream = false
	DefaultOutputDir         = "./recordings"
	DefaultLogLevel          = "info"

	// Transport defaults.
	DefaultWebSocketAddress = "127.0.0.1:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames  = 8192   // Maximum frames per buffer
	MinQueueCapacity = 2      // Capture needs somewhere to write while a chunk is analysed
	MinHistoryLength = 2      // Variance is undefined below two samples
)

// InstrumentConfig maps a fixed set of sub-bands to one instrument and holds
// the debounce/confirmation constants used by its tracker.
type InstrumentConfig struct {
	BaseBand      int       `yaml:"base_band"`      // First sub-band index; offsets are relative to it.
	Offsets       []int     `yaml:"offsets"`        // Sub-band offsets from BaseBand.
	Weights       []float64 `yaml:"weights"`        // One weight per offset.
	Divisor       float64   `yaml:"divisor"`        // Weighted sum is divided by this.
	MinExcited    int       `yaml:"min_excited"`    // Candidate when at least this many mapped bands are excited.
	MinGap        int       `yaml:"min_gap"`        // Chunks since last hit must be strictly greater than this.
	ConfirmFactor float64   `yaml:"confirm_factor"` // Multiplier on avg*var in the confirmation test.
	ConfirmGain   float64   `yaml:"confirm_gain"`   // Score multiplier applied when confirming.
	PrimingSize   int       `yaml:"priming_size"`   // Confirmed history size before the tracker judges.
}

// InstrumentsConfig holds the three instrument mappings.
type InstrumentsConfig struct {
	Bass  InstrumentConfig `yaml:"bass"`
	Clap  InstrumentConfig `yaml:"clap"`
	HiHat InstrumentConfig `yaml:"hihat"`
}

// DetectorConfig holds spectral and adaptive threshold settings.
type DetectorConfig struct {
	HistorySeconds    float64 `yaml:"history_seconds"`    // Energy history window length.
	SubBands          int     `yaml:"sub_bands"`          // Number of sub-bands the spectrum is split into.
	FrequencyLow      float64 `yaml:"frequency_low"`      // Lowest analysed frequency (Hz).
	FrequencyHigh     float64 `yaml:"frequency_high"`     // Highest analysed frequency (Hz).
	VarianceSlope     float64 `yaml:"variance_slope"`     // threshold = slope*variance + intercept.
	VarianceIntercept float64 `yaml:"variance_intercept"` //
	AverageDivisor    float64 `yaml:"average_divisor"`    // Divides threshold*average.
	AbsoluteFloor     float64 `yaml:"absolute_floor"`     // Normalised energy that always counts as excited.
	HiHatGapBatch     int     `yaml:"hihat_gap_batch"`    // Confirmed hi-hat gaps per diagnostics batch.
}

// DefaultInstruments returns the bass, clap and hi-hat mappings the
// detector was tuned with.
func DefaultInstruments() InstrumentsConfig {
	return InstrumentsConfig{
		Bass: InstrumentConfig{
			BaseBand:      0,
			Offsets:       []int{0},
			Weights:       []float64{1},
			Divisor:       1,
			MinExcited:    1,
			MinGap:        8,
			ConfirmFactor: 0.64,
			ConfirmGain:   1,
			PrimingSize:   4,
		},
		Clap: InstrumentConfig{
			BaseBand:      11,
			Offsets:       []int{0, 1, 2, 5, 6, 9, 10},
			Weights:       []float64{1.2, 1.3, 1.5, 1.4, 1.6, 1.4, 1.6},
			Divisor:       10,
			MinExcited:    7,
			MinGap:        3,
			ConfirmFactor: 0.64,
			ConfirmGain:   1.6,
			PrimingSize:   3,
		},
		HiHat: InstrumentConfig{
			BaseBand:      27,
			Offsets:       []int{0, 1, 2, 3, 4},
			Weights:       []float64{1.3, 1.7, 1.4, 1.2, 1.4},
			Divisor:       7,
			MinExcited:    1,
			MinGap:        3,
			ConfirmFactor: 0.64,
			ConfirmGain:   1,
			PrimingSize:   5,
		},
	}
}

// DefaultDetector returns the detector settings the constants were tuned with.
func DefaultDetector() DetectorConfig {
	return DetectorConfig{
		HistorySeconds:    DefaultHistorySeconds,
		SubBands:          DefaultSubBands,
		FrequencyLow:      DefaultFrequencyLow,
		FrequencyHigh:     DefaultFrequencyHigh,
		VarianceSlope:     DefaultVarianceSlope,
		VarianceIntercept: DefaultVarianceIntercept,
		AverageDivisor:    DefaultAverageDivisor,
		AbsoluteFloor:     DefaultAbsoluteFloor,
		HiHatGapBatch:     DefaultHiHatGapBatch,
	}
}

// NewConfig creates a new Config instance with default values. This is the
// base that LoadConfig unmarshals a file onto and command line flags override.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
			QueueCapacity:   DefaultQueueCapacity,
		},
		Detector:    DefaultDetector(),
		Instruments: DefaultInstruments(),
		Recording: RecordingConfig{
			Enabled:   DefaultRecordInputStream,
			OutputDir: DefaultOutputDir,
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			LogEvents:          true,
			WebSocketEnabled:   false,
			WebSocketAddress:   DefaultWebSocketAddress,
			UDPEnabled:         false,
			UDPTargetAddress:   DefaultUDPTargetAddress,
			UDPQueueLength:     64,
			WebSocketQueueSize: 256,
		},
	}
}
