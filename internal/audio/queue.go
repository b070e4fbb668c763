// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"beats/pkg/bitint"
)

// ChunkQueue carries chunks from the capture callback to the detection
// goroutine. Slots are allocated up front and chunks are copied in and out,
// so neither side allocates. When the queue is full Push overwrites the
// oldest chunk: the detector falls behind by at most the queue length and
// always works on the most recent audio.
type ChunkQueue struct {
	mu        sync.Mutex
	slots     [][]int16
	mask      uint64
	head      uint64 // Next slot to read.
	tail      uint64 // Next slot to write.
	chunkSize int
	ready     chan struct{} // Holds a token while the queue is non-empty.

	pushed   atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64
}

// ErrChunkSize is returned by Push for a chunk of the wrong length.
var ErrChunkSize = errors.New("chunk size mismatch")

// NewChunkQueue returns a queue holding at least capacity chunks of
// chunkSize samples. Capacity is rounded up to a power of two.
func NewChunkQueue(capacity, chunkSize int) (*ChunkQueue, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("chunk queue capacity must be at least 2, got %d", capacity)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	n := bitint.NextPowerOfTwo(capacity)
	slots := make([][]int16, n)
	backing := make([]int16, n*chunkSize)
	for i := range slots {
		slots[i] = backing[i*chunkSize : (i+1)*chunkSize : (i+1)*chunkSize]
	}

	return &ChunkQueue{
		slots:     slots,
		mask:      uint64(n - 1),
		chunkSize: chunkSize,
		ready:     make(chan struct{}, 1),
	}, nil
}

// Push copies chunk into the queue and reports whether the oldest queued
// chunk had to be discarded to make room. A chunk of the wrong length is
// rejected with ErrChunkSize and counted. Push never blocks.
func (q *ChunkQueue) Push(chunk []int16) (dropped bool, err error) {
	if len(chunk) != q.chunkSize {
		q.rejected.Add(1)
		return false, ErrChunkSize
	}

	q.mu.Lock()
	if q.tail-q.head == uint64(len(q.slots)) {
		q.head++
		dropped = true
	}
	copy(q.slots[q.tail&q.mask], chunk)
	q.tail++
	q.mu.Unlock()

	q.pushed.Add(1)
	if dropped {
		q.dropped.Add(1)
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped, nil
}

// TryPop copies the oldest chunk into dst and returns it. It reports false
// when the queue is empty.
func (q *ChunkQueue) TryPop(dst []int16) ([]int16, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == q.tail {
		return dst[:0], false
	}
	dst = append(dst[:0], q.slots[q.head&q.mask]...)
	q.head++
	if q.head != q.tail {
		// Keep the token for the remaining chunks.
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return dst, true
}

// Pop waits for a chunk, copies it into dst and returns it. It returns the
// context error once ctx is done.
func (q *ChunkQueue) Pop(ctx context.Context, dst []int16) ([]int16, error) {
	for {
		if chunk, ok := q.TryPop(dst); ok {
			return chunk, nil
		}
		select {
		case <-ctx.Done():
			return dst[:0], ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued chunks.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.tail - q.head)
}

// Capacity returns the number of slots.
func (q *ChunkQueue) Capacity() int { return len(q.slots) }

// ChunkSize returns the samples per slot.
func (q *ChunkQueue) ChunkSize() int { return q.chunkSize }

// Pushed returns the number of chunks ever pushed.
func (q *ChunkQueue) Pushed() uint64 { return q.pushed.Load() }

// Dropped returns the number of chunks overwritten before they were read.
func (q *ChunkQueue) Dropped() uint64 { return q.dropped.Load() }

// Rejected returns the number of chunks refused for their length.
func (q *ChunkQueue) Rejected() uint64 { return q.rejected.Load() }
