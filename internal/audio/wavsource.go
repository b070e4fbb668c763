// SPDX-License-Identifier: MIT
package audio

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// ChunkSource yields fixed-size mono chunks until io.EOF.
type ChunkSource interface {
	// Next fills dst with the next chunk and returns it.
	Next(dst []int16) ([]int16, error)
}

// WAVSource reads a PCM WAV file as a stream of left-channel chunks. Samples
// of any bit depth are scaled to 16 bits. A trailing partial chunk is
// discarded.
type WAVSource struct {
	file      *os.File
	decoder   *wav.Decoder
	buf       *audio.IntBuffer
	chunkSize int
	channels  int
	bitDepth  int
	chunks    int
}

// OpenWAV opens path for chunked reading.
func OpenWAV(path string, chunkSize int) (*WAVSource, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open wav")
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, errors.Errorf("%s is not a valid WAV file", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "seek to PCM data in %s", path)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels < 1 {
		file.Close()
		return nil, errors.Errorf("%s has no channels", path)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		file.Close()
		return nil, errors.Errorf("%s has unsupported bit depth %d", path, bitDepth)
	}

	return &WAVSource{
		file:    file,
		decoder: decoder,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: int(decoder.SampleRate)},
			Data:   make([]int, chunkSize*channels),
		},
		chunkSize: chunkSize,
		channels:  channels,
		bitDepth:  bitDepth,
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *WAVSource) SampleRate() float64 { return float64(s.decoder.SampleRate) }

// Channels returns the number of interleaved channels in the file.
func (s *WAVSource) Channels() int { return s.channels }

// BitDepth returns the file's sample size in bits.
func (s *WAVSource) BitDepth() int { return s.bitDepth }

// Chunks returns the number of chunks read so far.
func (s *WAVSource) Chunks() int { return s.chunks }

// Next reads one chunk of the left channel into dst. It returns io.EOF when
// fewer than a chunk's worth of frames remain.
func (s *WAVSource) Next(dst []int16) ([]int16, error) {
	want := s.chunkSize * s.channels
	s.buf.Data = s.buf.Data[:want]

	read := 0
	for read < want {
		part := &audio.IntBuffer{Format: s.buf.Format, Data: s.buf.Data[read:want]}
		n, err := s.decoder.PCMBuffer(part)
		read += n
		if err != nil && err != io.EOF {
			return dst[:0], errors.Wrap(err, "decode wav")
		}
		if n == 0 || err == io.EOF {
			break
		}
	}
	if read < want {
		return dst[:0], io.EOF
	}

	if cap(dst) < s.chunkSize {
		dst = make([]int16, s.chunkSize)
	}
	dst = dst[:s.chunkSize]
	for i := range dst {
		dst[i] = toInt16(s.buf.Data[i*s.channels], s.bitDepth)
	}
	s.chunks++
	return dst, nil
}

// Close closes the underlying file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}

// toInt16 rescales a decoded sample to 16 bits. go-audio decodes 8-bit PCM
// as unsigned.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
