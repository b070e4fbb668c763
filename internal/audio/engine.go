// SPDX-License-Identifier: MIT
/*
Package audio connects the beat detector to sound: live capture through
PortAudio, WAV recording, and WAV files for offline analysis.

Threading:
  - The PortAudio callback only copies the left channel into the chunk queue.
    It never blocks and never allocates.
  - A single detection goroutine (Run) pops chunks and owns the session,
    the recorder writes and event delivery.
  - Stopping is cancelling Run's context.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"beats/internal/beat"
	"beats/internal/config"
	applog "beats/internal/log"
	"beats/internal/transport"

	"github.com/gordonklaus/portaudio"
)

// Stats is a snapshot of the engine counters.
type Stats struct {
	Captured  uint64        // Chunks accepted from the device.
	Processed uint64        // Chunks run through the detector.
	Dropped   uint64        // Chunks overwritten in the queue before detection.
	Rejected  uint64        // Callbacks with an unexpected buffer size.
	Skipped   uint64        // Chunks the detector refused.
	Overruns  uint64        // Chunks that took longer than their own duration.
	Last      time.Duration // Processing time of the latest chunk.
	Budget    time.Duration // Audio time per chunk.
}

// Observer receives every detection result on the detection goroutine. The
// result aliases session buffers; Clone it to keep it.
type Observer func(res beat.Result, stats Stats)

type Engine struct {
	// Core configuration and state.
	config  *config.Config
	session *beat.Session
	queue   *ChunkQueue
	sink    transport.Transport

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
	monoInput    []int16 // Left channel, written only by the capture callback.

	// Detection goroutine state.
	chunk    []int16
	observer Observer
	budget   time.Duration

	recorder atomic.Pointer[Recorder]

	processed  atomic.Uint64
	skipped    atomic.Uint64
	overruns   atomic.Uint64
	last       atomic.Int64
	running    atomic.Bool
	overrunLog *applog.Throttle
	skipLog    *applog.Throttle
	dropLog    *applog.Throttle
	sendLog    *applog.Throttle
}

// NewEngine builds the detection pipeline. No device is opened until
// StartInputStream. A nil sink discards events.
func NewEngine(cfg *config.Config, sink transport.Transport) (*Engine, error) {
	session, err := beat.NewSession(cfg.Session())
	if err != nil {
		return nil, err
	}
	queue, err := NewChunkQueue(cfg.Audio.QueueCapacity, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = transport.Discard{}
	}

	perSecond := uint64(max(cfg.Session().ChunksPerSecond(), 1))
	return &Engine{
		config:     cfg,
		session:    session,
		queue:      queue,
		sink:       sink,
		monoInput:  make([]int16, cfg.Audio.FramesPerBuffer),
		chunk:      make([]int16, cfg.Audio.FramesPerBuffer),
		budget:     cfg.ChunkDuration(),
		overrunLog: applog.NewThrottle(perSecond),
		skipLog:    applog.NewThrottle(perSecond),
		dropLog:    applog.NewThrottle(perSecond),
		sendLog:    applog.NewThrottle(perSecond),
	}, nil
}

// SetObserver installs fn to receive every result. It must be called before
// Run.
func (e *Engine) SetObserver(fn Observer) {
	e.observer = fn
}

// Session returns the detection session. It must only be used from the
// detection goroutine or after Run has returned.
func (e *Engine) Session() *beat.Session { return e.session }

// Queue returns the capture queue.
func (e *Engine) Queue() *ChunkQueue { return e.queue }

// DeviceName returns the name of the capture device, or "" before
// StartInputStream.
func (e *Engine) DeviceName() string {
	if e.inputDevice == nil {
		return ""
	}
	return e.inputDevice.Name
}

func (e *Engine) StartInputStream() error {
	inputDevice, err := InputDevice(e.config.Audio.InputDevice)
	if err != nil {
		return err
	}
	e.inputDevice = inputDevice

	if e.config.Audio.LowLatency {
		e.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		e.inputLatency = inputDevice.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.InputChannels,
			Device:   inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream on %q: %w", inputDevice.Name, err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("start input stream on %q: %w", inputDevice.Name, err)
	}

	applog.Infof("audio: capturing from %q at %.0f Hz, %d frames x %d channels, latency %v",
		inputDevice.Name, e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer,
		e.config.Audio.InputChannels, e.inputLatency)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the PortAudio callback. It uses pre-allocated
// buffers only.
func (e *Engine) processInputStream(in []int16) {
	e.Feed(in)
}

// Feed accepts one buffer of interleaved frames, keeps the left channel and
// queues it for detection.
func (e *Engine) Feed(in []int16) {
	channels := e.config.Audio.InputChannels
	if channels == 1 {
		_, _ = e.queue.Push(in)
		return
	}

	frames := len(in) / channels
	if frames != len(e.monoInput) {
		_, _ = e.queue.Push(in[:0])
		return
	}
	for i := range e.monoInput {
		e.monoInput[i] = in[i*channels]
	}
	_, _ = e.queue.Push(e.monoInput)
}

// Run processes queued chunks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}
	defer e.running.Store(false)

	applog.Debugf("audio: detection started, budget %v per chunk, history %d chunks",
		e.budget, e.session.History().Capacity())

	var dropped uint64
	for {
		chunk, err := e.queue.Pop(ctx, e.chunk)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if d := e.queue.Dropped(); d != dropped {
			e.dropLog.Warnf("audio: detection fell behind, %d chunks dropped so far", d)
			dropped = d
		}
		e.process(chunk)
	}
}

// process runs one chunk through recording, detection and delivery.
func (e *Engine) process(chunk []int16) {
	start := time.Now()

	if rec := e.recorder.Load(); rec != nil {
		if err := rec.Write(chunk); err != nil {
			applog.Errorf("audio: %v; recording stopped", err)
			e.recorder.CompareAndSwap(rec, nil)
			rec.Close()
		}
	}

	res, err := e.session.ProcessChunk(chunk)
	if err != nil {
		e.skipped.Add(1)
		e.skipLog.Warnf("audio: chunk skipped: %v", err)
		return
	}

	for _, event := range res.Events {
		if err := e.sink.Send(event); err != nil {
			e.sendLog.Warnf("audio: delivering %s beat: %v", event.Instrument, err)
		}
	}

	elapsed := time.Since(start)
	e.last.Store(int64(elapsed))
	e.processed.Add(1)
	if elapsed > e.budget {
		e.overruns.Add(1)
		e.overrunLog.Warnf("audio: chunk %d took %v, budget is %v", res.Index, elapsed, e.budget)
	}

	if e.observer != nil {
		e.observer(res, e.Stats())
	}
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Captured:  e.queue.Pushed(),
		Processed: e.processed.Load(),
		Dropped:   e.queue.Dropped(),
		Rejected:  e.queue.Rejected(),
		Skipped:   e.skipped.Load(),
		Overruns:  e.overruns.Load(),
		Last:      time.Duration(e.last.Load()),
		Budget:    e.budget,
	}
}

// StartRecording writes every analysed chunk to a mono WAV file at path.
func (e *Engine) StartRecording(path string) error {
	if e.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}
	rec, err := NewRecorder(path, int(e.config.Audio.SampleRate), e.config.Recording.BitDepth, e.config.Audio.FramesPerBuffer)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.Close()
		return fmt.Errorf("already recording")
	}
	applog.Infof("audio: recording to %s", path)
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	if err := rec.Close(); err != nil {
		return err
	}
	applog.Infof("audio: recorded %d samples to %s", rec.Frames(), rec.Path())
	return nil
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	return e.recorder.Load() != nil
}

// Close stops recording and capture.
func (e *Engine) Close() error {
	recErr := e.StopRecording()
	streamErr := e.StopInputStream()
	return errors.Join(recErr, streamErr)
}
