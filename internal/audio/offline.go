// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"io"

	"beats/internal/beat"
	applog "beats/internal/log"
	"beats/internal/transport"

	"github.com/pkg/errors"
)

// Summary totals one offline analysis.
type Summary struct {
	Chunks  int              `json:"chunks"`  // Chunks read from the source.
	Skipped int              `json:"skipped"` // Chunks the detector refused.
	Beats   [3]int           `json:"beats"`   // Confirmed beats, indexed by beat.Instrument.
	HiHat   beat.GapSnapshot `json:"hihat"`   // Final hi-hat gap diagnostics.
}

// Analyze feeds every chunk from src through session as fast as it can be
// read. Events go to sink and every result to visit, which may be nil. A
// visit error stops the analysis and is returned.
func Analyze(ctx context.Context, src ChunkSource, session *beat.Session, sink transport.Transport, visit func(beat.Result) error) (Summary, error) {
	var sum Summary
	if sink == nil {
		sink = transport.Discard{}
	}
	chunk := make([]int16, session.Config().ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		var err error
		chunk, err = src.Next(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, errors.Wrapf(err, "read chunk %d", sum.Chunks)
		}
		sum.Chunks++

		res, err := session.ProcessChunk(chunk)
		if err != nil {
			sum.Skipped++
			applog.Warnf("audio: chunk %d skipped: %v", sum.Chunks-1, err)
			continue
		}
		for _, event := range res.Events {
			sum.Beats[event.Instrument]++
			if err := sink.Send(event); err != nil {
				applog.Warnf("audio: delivering %s beat: %v", event.Instrument, err)
			}
		}
		if visit != nil {
			if err := visit(res); err != nil {
				return sum, err
			}
		}
	}

	sum.HiHat = session.HiHatGaps()
	return sum, nil
}
