// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"beats/internal/audio"
	"beats/internal/beat"
	"beats/internal/config"
	applog "beats/internal/log"
	"beats/internal/transport"
	"beats/internal/transport/udp"
	"beats/internal/tui"
)

// NewTransports builds the event sinks cfg enables. Beats are logged when
// logEvents is set and written as JSON lines to jsonOut when it is not nil.
// Network transports are started before returning.
func NewTransports(cfg *config.Config, logEvents bool, jsonOut io.Writer) (transport.Fanout, error) {
	var sinks transport.Fanout
	fail := func(err error) (transport.Fanout, error) {
		_ = sinks.Close()
		return nil, err
	}

	if logEvents && cfg.Transport.LogEvents {
		sinks = append(sinks, transport.NewLoggingTransport())
	}
	if jsonOut != nil {
		sinks = append(sinks, transport.NewJSONLinesTransport(jsonOut))
	}

	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Transport.WebSocketQueueSize)
		if err := ws.Start(); err != nil {
			return fail(fmt.Errorf("start WebSocket server on %s: %w", cfg.Transport.WebSocketAddress, err))
		}
		sinks = append(sinks, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return fail(err)
		}
		publisher, err := udp.NewUDPPublisher(sender, cfg.Transport.UDPQueueLength)
		if err != nil {
			_ = sender.Close()
			return fail(err)
		}
		publisher.Start()
		sinks = append(sinks, publisher)
	}

	return sinks, nil
}

// RunList prints the host audio devices.
func RunList(cfg *config.Config, w io.Writer) error {
	devices, err := audio.HostDevices()
	if err != nil {
		return err
	}
	if cfg.JSONOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}
	audio.PrintDevices(w, devices)
	return nil
}

// diagnosticsLine is one --diagnostics --json record.
type diagnosticsLine struct {
	Chunk beat.Result `json:"chunk"`
}

// summaryLine is the last --json record.
type summaryLine struct {
	File    string        `json:"file"`
	Summary audio.Summary `json:"summary"`
}

// RunAnalyze detects beats in cfg.InputFile as fast as it can be read and
// prints the events and a summary to w.
func RunAnalyze(ctx context.Context, cfg *config.Config, w io.Writer) error {
	src, err := audio.OpenWAV(cfg.InputFile, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}
	defer src.Close()

	if rate := src.SampleRate(); rate != cfg.Audio.SampleRate {
		applog.Warnf("cli: %s is sampled at %.0f Hz, not %.0f Hz; chunk timing follows the file",
			cfg.InputFile, rate, cfg.Audio.SampleRate)
		cfg.Audio.SampleRate = rate
	}
	session, err := beat.NewSession(cfg.Session())
	if err != nil {
		return err
	}
	applog.Debugf("cli: %s: %d channels, %d bit, %d chunks, history %d chunks",
		cfg.InputFile, src.Channels(), src.BitDepth(), src.Chunks(), session.History().Capacity())

	var jsonOut io.Writer
	if cfg.JSONOutput {
		jsonOut = w
	}
	sink, err := NewTransports(cfg, !cfg.JSONOutput, jsonOut)
	if err != nil {
		return err
	}
	defer sink.Close()

	var visit func(beat.Result) error
	if cfg.Diagnostics {
		if cfg.JSONOutput {
			enc := json.NewEncoder(w)
			visit = func(res beat.Result) error {
				return enc.Encode(diagnosticsLine{Chunk: res})
			}
		} else {
			bands := session.Config().SubBands
			visit = func(res beat.Result) error {
				_, err := fmt.Fprintln(w, formatDiagnostics(res, bands))
				return err
			}
		}
	}

	sum, err := audio.Analyze(ctx, src, session, sink, visit)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		return json.NewEncoder(w).Encode(summaryLine{File: cfg.InputFile, Summary: sum})
	}
	printSummary(w, cfg, sum)
	return nil
}

func formatDiagnostics(res beat.Result, bands int) string {
	if res.Priming {
		return fmt.Sprintf("chunk %6d  priming", res.Index)
	}
	excited := 0
	for _, e := range res.Excited {
		if e {
			excited++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "chunk %6d  excited %2d/%d", res.Index, excited, bands)
	for _, inst := range beat.Instruments {
		fmt.Fprintf(&sb, "  %s %8.3f %-12s", inst, res.Scores[inst], res.Outcomes[inst])
	}
	if res.Degenerate > 0 {
		fmt.Fprintf(&sb, "  degenerate %d", res.Degenerate)
	}
	return sb.String()
}

func printSummary(w io.Writer, cfg *config.Config, sum audio.Summary) {
	duration := cfg.ChunkDuration() * time.Duration(sum.Chunks)
	fmt.Fprintf(w, "\n%s: %d chunks, %v of audio\n", cfg.InputFile, sum.Chunks, duration.Round(time.Millisecond))
	if sum.Skipped > 0 {
		fmt.Fprintf(w, "  skipped: %d\n", sum.Skipped)
	}
	for _, inst := range beat.Instruments {
		fmt.Fprintf(w, "  %-6s %d beats\n", inst.String()+":", sum.Beats[inst])
	}
	if g := sum.HiHat; g.Batches > 0 {
		steady := ""
		if g.Steady(7) {
			steady = " (steady)"
		}
		fmt.Fprintf(w, "  hi-hat gaps: avg %.1f, mode %d chunks over %d batches%s\n", g.Average, g.Mode, g.Batches, steady)
	}
}

// RunLive captures from the configured device until ctx is cancelled or the
// user quits the monitor.
func RunLive(ctx context.Context, cfg *config.Config) error {
	if cfg.PickDevice {
		devices, err := audio.HostDevices()
		if err != nil {
			return err
		}
		id, ok, err := tui.PickDevice(devices)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = id
	}

	sink, err := NewTransports(cfg, !cfg.TUIMode, nil)
	if err != nil {
		return err
	}
	defer sink.Close()

	engine, err := audio.NewEngine(cfg, sink)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			applog.Errorf("cli: closing audio engine: %v", err)
		}
	}()

	var feed *tui.Feed
	if cfg.TUIMode {
		feed = tui.NewFeed(64)
		engine.SetObserver(feed.Observer(engine.Session()))
	}

	// CRITICAL: the first StartInputStream call makes PortAudio begin calling
	// the capture callback.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return err
		}
		if err := engine.StartRecording(cfg.OutputFile); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	if cfg.TUIMode {
		// The monitor owns the terminal; its stats line replaces the warnings.
		applog.SetOutput(io.Discard)
		err = tui.RunMonitor(ctx, feed, engine.DeviceName())
		applog.SetOutput(os.Stderr)
		cancel()
		err = errors.Join(err, <-runErr)
	} else {
		applog.Infof("cli: detecting beats, press Ctrl+C to stop")
		err = <-runErr
	}

	s := engine.Stats()
	applog.Infof("cli: processed %d chunks (dropped %d, skipped %d, overruns %d)",
		s.Processed, s.Dropped, s.Skipped, s.Overruns)
	return err
}
