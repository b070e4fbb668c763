// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"beats/internal/config"
	applog "beats/internal/log"
	"beats/pkg/bitint"
	"beats/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands understood by main besides the default live capture.
const (
	CommandRun     = ""
	CommandList    = "list"
	CommandAnalyze = "analyze"
)

// flagValues holds the raw command line values. They are applied on top of
// the loaded configuration only when the user actually set them.
type flagValues struct {
	configPath  string
	logLevel    string
	verbose     bool
	deviceID    int
	channels    int
	sampleRate  float64
	frames      int
	lowLatency  bool
	record      bool
	output      string
	tui         bool
	pickDevice  bool
	websocket   string
	udp         string
	jsonOutput  bool
	diagnostics bool
}

// ParseArgs parses args (without the program name) and returns the final
// configuration: defaults, then the YAML file, then ENV_* variables, then
// flags. It returns a nil configuration and no error when cobra handled the
// invocation itself, for example --help or --version.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags  flagValues
		result *config.Config
	)

	finish := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		cfg.Command = command
		flags.apply(cmd.Flags(), cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if !bitint.IsPowerOfTwo(cfg.Audio.FramesPerBuffer) {
			applog.Warnf("cli: frames_per_buffer %d is not a power of two, the FFT will be slower", cfg.Audio.FramesPerBuffer)
		}
		result = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time bass, clap and hi-hat beat detection",
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(cmd, CommandRun)
		},
	}

	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return finish(cmd, CommandList)
		},
	}
	listCmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the device list as JSON")
	rootCmd.AddCommand(listCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Detect beats in a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := finish(cmd, CommandAnalyze); err != nil {
				return err
			}
			result.InputFile = args[0]
			return nil
		},
	}
	analyzeCmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print events and the summary as JSON lines")
	analyzeCmd.Flags().BoolVar(&flags.diagnostics, "diagnostics", false, "Print per-chunk band and instrument diagnostics")
	rootCmd.AddCommand(analyzeCmd)

	pf := rootCmd.PersistentFlags()

	// General
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML configuration file (default: ./config.yaml or ./beats.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture; only the first is analysed")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per buffer, which is also the analysis chunk size")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", config.DefaultRecordInputStream,
		"Record the analysed input to a WAV file")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is <output_dir>/recording-DD-MM-YYYY-HHMMSS.wav")

	// Interface and delivery
	pf.BoolVarP(&flags.tui, "tui", "t", false, "Show the live beat monitor")
	pf.BoolVar(&flags.pickDevice, "pick-device", false, "Choose the input device interactively")
	pf.StringVar(&flags.websocket, "websocket", "", "Broadcast beats to WebSocket clients on this address")
	pf.StringVar(&flags.udp, "udp", "", "Send beats as UDP packets to this address")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return result, nil
}

// apply copies every flag the user set onto cfg.
func (f *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	changed := fs.Changed

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	if changed("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.frames
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if f.websocket != "" {
		cfg.Transport.WebSocketEnabled = true
		cfg.Transport.WebSocketAddress = f.websocket
	}
	if f.udp != "" {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udp
	}

	cfg.TUIMode = f.tui
	cfg.PickDevice = f.pickDevice
	cfg.JSONOutput = f.jsonOutput
	cfg.Diagnostics = f.diagnostics

	cfg.OutputFile = f.output
	if cfg.Recording.Enabled && cfg.OutputFile == "" {
		cfg.OutputFile = filepath.Join(cfg.Recording.OutputDir,
			"recording-"+time.Now().UTC().Format("02-01-2006-150405")+"."+cfg.Recording.Format)
	}
}
