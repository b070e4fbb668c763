// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"beats/internal/beat"
	applog "beats/internal/log"
)

// LoggingTransport writes every beat to the application log at info level
// and counts them per instrument.
type LoggingTransport struct {
	counts [3]atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("transport: logging beats")
	return &LoggingTransport{}
}

// Send logs one beat.
func (lt *LoggingTransport) Send(event beat.BeatEvent) error {
	n := uint64(0)
	if i := int(event.Instrument); i >= 0 && i < len(lt.counts) {
		n = lt.counts[i].Add(1)
	}
	applog.Infof("beat: %-5s #%-4d chunk %6d  energy %.4g", event.Instrument, n, event.ChunkIndex, event.Energy)
	return nil
}

// Count returns the number of beats logged for one instrument.
func (lt *LoggingTransport) Count(inst beat.Instrument) uint64 {
	if i := int(inst); i >= 0 && i < len(lt.counts) {
		return lt.counts[i].Load()
	}
	return 0
}

// Close logs the totals.
func (lt *LoggingTransport) Close() error {
	applog.Infof("transport: logged %d bass, %d clap, %d hi-hat beats",
		lt.Count(beat.Bass), lt.Count(beat.Clap), lt.Count(beat.HiHat))
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
