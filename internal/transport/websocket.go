// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"beats/internal/beat"
	applog "beats/internal/log"

	"github.com/gorilla/websocket"
)

const writeTimeout = time.Second

// WebSocketTransport broadcasts every beat as a JSON text message to all
// clients connected on /ws.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex
	broadcast chan beat.BeatEvent
	listener  net.Listener
	server    *http.Server
	done      chan struct{}
	closeOnce sync.Once

	dropped atomic.Uint64
	dropLog *applog.Throttle
}

// NewWebSocketTransport creates a transport that will listen on addr and
// queue up to queueSize events. Call Start to begin serving.
func NewWebSocketTransport(addr string, queueSize int) *WebSocketTransport {
	if queueSize < 1 {
		queueSize = 1
	}
	return &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local visualisers connect from file:// and dev servers.
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan beat.BeatEvent, queueSize),
		done:      make(chan struct{}),
		dropLog:   applog.NewThrottle(100),
	}
}

// Start binds the listen address and serves in the background. Binding errors
// are returned here rather than logged from the server goroutine.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.addr)
	if err != nil {
		return err
	}
	wst.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infof("transport: WebSocket server listening on ws://%s/ws", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("transport: WebSocket server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return nil
}

// Addr returns the bound address, which differs from the configured one when
// the port was 0. It is empty before Start.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener == nil {
		return ""
	}
	return wst.listener.Addr().String()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of events discarded because the queue was full.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("transport: WebSocket upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("transport: WebSocket client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; any read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.removeClient(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) removeClient(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("transport: WebSocket client disconnected, total: %d", total)
	}
}

// handleBroadcasts writes queued events to every client until Close.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case event := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(event); err != nil {
					applog.Warnf("transport: WebSocket write to %s failed: %v", client.RemoteAddr(), err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues the event for broadcast, dropping it if the queue is full.
func (wst *WebSocketTransport) Send(event beat.BeatEvent) error {
	select {
	case wst.broadcast <- event:
	default:
		wst.dropped.Add(1)
		wst.dropLog.Warnf("transport: WebSocket queue full, dropping %s beat at chunk %d", event.Instrument, event.ChunkIndex)
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		if wst.server != nil {
			err = wst.server.Close()
		}
		applog.Debugf("transport: WebSocket server closed")
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
