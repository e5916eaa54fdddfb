package telemetry

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsClient is one connected viewer.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the record stream out to connected websocket viewers. It
// implements Sink, so the simulation loop treats live viewers like any other
// consumer. Slow viewers drop records instead of stalling the run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]bool)}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast marshals v once and queues it to every connected viewer.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal telemetry record")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Warn().Msg("Dropping telemetry record, viewer buffer full")
		}
	}
}

// ConnectionCount returns the number of connected viewers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) OnTick(rec *TickRecord) error {
	rec.Type = TypeTick
	h.Broadcast(rec)
	return nil
}

func (h *Hub) OnRoundEnd(rec *RoundRecord) error {
	rec.Type = TypeRound
	h.Broadcast(rec)
	return nil
}

func (h *Hub) OnRunEnd(rec *RunRecord) error {
	rec.Type = TypeRun
	h.Broadcast(rec)
	return nil
}

// Close disconnects every viewer.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
