// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"
	"sync/atomic"

	"beats/internal/beat"
	applog "beats/internal/log"
	"beats/internal/transport"
)

// UDPPublisher packs beat events into fixed-size packets and sends them from
// its own goroutine, so a slow or unreachable receiver never stalls the
// detector. Events that arrive while the queue is full are dropped.
type UDPPublisher struct {
	sender *UDPSender
	queue  chan beat.BeatEvent

	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects running and doneChan during Start/Stop.
	running  bool

	sequenceNum uint32           // Owned by the publisher goroutine.
	packet      [PacketSize]byte // Reused for every packet.

	sent    atomic.Uint64
	dropped atomic.Uint64
	dropLog *applog.Throttle
	sendLog *applog.Throttle
}

// NewUDPPublisher creates a publisher queueing up to queueLength events.
func NewUDPPublisher(sender *UDPSender, queueLength int) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if queueLength < 1 {
		queueLength = 1
		applog.Warnf("UDPPublisher: Invalid queue length, defaulting to %d", queueLength)
	}

	return &UDPPublisher{
		sender:  sender,
		queue:   make(chan beat.BeatEvent, queueLength),
		dropLog: applog.NewThrottle(100),
		sendLog: applog.NewThrottle(100),
	}, nil
}

// Start launches the publisher goroutine. It is safe to call Start multiple
// times; subsequent calls are no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.running = true
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started")
		for {
			select {
			case event := <-p.queue:
				p.buildAndSendPacket(event)
			case <-doneChan:
				p.drain()
				return
			}
		}
	}()
}

// drain sends whatever is still queued when Stop is called.
func (p *UDPPublisher) drain() {
	for {
		select {
		case event := <-p.queue:
			p.buildAndSendPacket(event)
		default:
			return
		}
	}
}

// Stop signals the publisher goroutine to flush the queue and exit, then
// waits for it. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.running = false
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: stopped after %d packets (%d dropped)", p.sent.Load(), p.dropped.Load())
	return nil
}

// Send queues one event. It never blocks.
func (p *UDPPublisher) Send(event beat.BeatEvent) error {
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.dropLog.Warnf("UDPPublisher: queue full, dropping %s beat at chunk %d", event.Instrument, event.ChunkIndex)
	}
	return nil
}

func (p *UDPPublisher) buildAndSendPacket(event beat.BeatEvent) {
	p.sequenceNum++
	data := Packet{Sequence: p.sequenceNum, Event: event}.Encode(p.packet[:])

	if err := p.sender.Send(data); err != nil {
		p.sendLog.Warnf("UDPPublisher: packet %d: %v", p.sequenceNum, err)
		return
	}
	p.sent.Add(1)
}

// Sent returns the number of packets written to the socket.
func (p *UDPPublisher) Sent() uint64 { return p.sent.Load() }

// Dropped returns the number of events discarded because the queue was full.
func (p *UDPPublisher) Dropped() uint64 { return p.dropped.Load() }

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the transport interface at compile time.
var _ transport.Transport = (*UDPPublisher)(nil)
