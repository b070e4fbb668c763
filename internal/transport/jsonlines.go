// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"io"
	"sync"

	"beats/internal/beat"
)

// JSONLinesTransport writes each beat as one JSON object per line, the same
// encoding WebSocket clients receive.
type JSONLinesTransport struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesTransport writes events to w.
func NewJSONLinesTransport(w io.Writer) *JSONLinesTransport {
	return &JSONLinesTransport{enc: json.NewEncoder(w)}
}

// Send writes one line.
func (jt *JSONLinesTransport) Send(event beat.BeatEvent) error {
	jt.mu.Lock()
	defer jt.mu.Unlock()
	return jt.enc.Encode(event)
}

// Close is a no-op; the writer belongs to the caller.
func (jt *JSONLinesTransport) Close() error { return nil }

var _ Transport = (*JSONLinesTransport)(nil)
