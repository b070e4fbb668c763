// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"beats/cmd"
	"beats/internal/audio"
	applog "beats/internal/log"
	"beats/pkg/build"
)

// main is the entry point for the beat detector.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, analyze) if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Initialize PortAudio
//   - Start the capture stream and the detection goroutine
//   - Deliver beats to the configured transports and the monitor
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; "unknown" is reported instead.
	buildErr := build.Initialize()

	// Limit OS threads for real-time audio processing:
	// - One thread for the capture callback and detection (time-critical)
	// - One thread for UI and I/O operations
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		// --help or --version
		return
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	if buildErr != nil {
		applog.Debugf("build: %v", buildErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Offline analysis never touches the audio device.
	if cfg.Command == cmd.CommandAnalyze {
		if err := cmd.RunAnalyze(ctx, cfg, os.Stdout); err != nil {
			applog.Fatalf("analyze: %v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Command == cmd.CommandList {
		err = cmd.RunList(cfg, os.Stdout)
	} else {
		// Blocks until a termination signal or the monitor quits.
		err = cmd.RunLive(ctx, cfg)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if termErr := audio.Terminate(); termErr != nil {
		applog.Errorf("%v", termErr)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}
