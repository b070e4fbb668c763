// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// Recorder writes the analysed mono stream to a 16-bit PCM WAV file, so a
// session can be replayed later with the analyze command.
type Recorder struct {
	mu         sync.Mutex
	path       string
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	frames     int
	closed     bool
}

// NewRecorder creates path and writes a WAV header for mono audio at
// sampleRate. Only 16-bit depth is supported.
func NewRecorder(path string, sampleRate, bitDepth, chunkSize int) (*Recorder, error) {
	if bitDepth != 16 {
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}
	if sampleRate <= 0 || chunkSize <= 0 {
		return nil, fmt.Errorf("invalid recording format: %d Hz, %d-sample chunks", sampleRate, chunkSize)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create recording")
	}

	return &Recorder{
		path:       path,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:           make([]int, chunkSize),
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write appends one chunk of samples.
func (r *Recorder) Write(chunk []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("recorder is closed")
	}
	if cap(r.sampleBuf.Data) < len(chunk) {
		r.sampleBuf.Data = make([]int, len(chunk))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(chunk)]
	for i, sample := range chunk {
		r.sampleBuf.Data[i] = int(sample)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return errors.Wrapf(err, "write recording %s", r.path)
	}
	r.frames += len(chunk)
	return nil
}

// Frames returns the number of samples written.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Path returns the output file path.
func (r *Recorder) Path() string { return r.path }

// Close finalises the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.wavEncoder.Close(); err != nil {
		r.outputFile.Close()
		return errors.Wrapf(err, "finalise recording %s", r.path)
	}
	if err := r.outputFile.Close(); err != nil {
		return errors.Wrapf(err, "close recording %s", r.path)
	}
	return nil
}
