// Package hub fans Change Events out to every connected push channel peer.
//
// Delivery is at-most-once. Each peer owns a bounded queue drained by its own
// writer goroutine; Broadcast never blocks, and an event that does not fit a
// peer's queue is dropped for that peer only.
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"habitsync/internal/event"
	"habitsync/pkg/metrics"
)

const (
	DefaultQueueSize = 64
	writeTimeout     = 10 * time.Second
)

type Hub struct {
	mu        sync.Mutex
	peers     map[*Peer]struct{}
	closed    bool
	queueSize int
	logger    *zap.Logger
}

func New(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		peers:     make(map[*Peer]struct{}),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Publish encodes e once and broadcasts it to every local peer.
func (h *Hub) Publish(_ context.Context, e event.Event) {
	raw, err := event.Encode(e)
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", string(e.Type())), zap.Error(err))
		return
	}
	metrics.IncrementEventBroadcast(string(e.Type()))
	h.Broadcast(raw)
}

// Broadcast offers an encoded frame to every peer. It returns the number of
// peers whose queue accepted it.
func (h *Hub) Broadcast(frame []byte) int {
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	delivered := 0
	for _, p := range peers {
		if p.offer(frame) {
			delivered++
			continue
		}
		metrics.IncrementDeliveryDropped()
		h.logger.Warn("Dropped event for slow peer", zap.String("peer", p.id))
	}
	return delivered
}

// Register adds a peer. It returns nil once the hub is closed.
func (h *Hub) Register(id string) *Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	p := newPeer(id, h.queueSize)
	h.peers[p] = struct{}{}
	metrics.ConnectedPeers.Inc()
	return p
}

func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	h.mu.Unlock()
	if ok {
		metrics.ConnectedPeers.Dec()
		p.close()
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close disconnects every peer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	peers := h.peers
	h.peers = make(map[*Peer]struct{})
	h.mu.Unlock()
	for p := range peers {
		metrics.ConnectedPeers.Dec()
		p.close()
	}
}

// Handler serves the push channel over websocket. Frames are text JSON
// envelopes; anything a client sends is read and discarded.
func (h *Hub) Handler() http.Handler {
	return websocket.Server{Handler: h.serve}
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	id := conn.Request().RemoteAddr
	p := h.Register(id)
	if p == nil {
		return
	}
	defer h.Unregister(p)
	h.logger.Info("Push channel connected", zap.String("peer", id))

	go h.drain(conn, p)

	var discard string
	for {
		if err := websocket.Message.Receive(conn, &discard); err != nil {
			h.logger.Info("Push channel disconnected", zap.String("peer", id), zap.Error(err))
			return
		}
	}
}

// drain is the peer's single writer, so frames leave in queue order.
func (h *Hub) drain(conn *websocket.Conn, p *Peer) {
	for {
		select {
		case frame := <-p.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.Message.Send(conn, string(frame)); err != nil {
				h.logger.Warn("Push channel write failed", zap.String("peer", p.id), zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-p.done:
			_ = conn.Close()
			return
		}
	}
}
