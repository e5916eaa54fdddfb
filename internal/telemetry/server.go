package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/crossway/internal/middleware"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local viewer server; tighten if ever exposed
	},
}

// Server exposes the live record stream over websocket at /watch, plus a
// /healthz probe.
type Server struct {
	hub *Hub
	srv *http.Server
}

// NewServer wires a Hub to an HTTP server on addr.
func NewServer(addr string, hub *Hub) *Server {
	mux := http.NewServeMux()
	s := &Server{
		hub: hub,
		srv: &http.Server{
			Addr:              addr,
			Handler:           middleware.Chain(mux, middleware.Logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	mux.HandleFunc("/watch", s.serveWS)
	mux.HandleFunc("/healthz", s.healthz)
	return s
}

// Start listens in the background. Startup errors surface in the log, not to
// the caller; the simulation keeps running without viewers.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("Live telemetry server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Live telemetry server failed")
		}
	}()
}

// Shutdown stops accepting viewers and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// serveWS upgrades a viewer connection and joins it to the hub.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	s.hub.register(c)

	// Confirm the connection before the first tick arrives.
	welcome, _ := json.Marshal(map[string]string{"type": "connected"})
	c.send <- welcome

	go s.writePump(c)
	go s.readPump(c)

	log.Info().Int("total", s.hub.ConnectionCount()).Msg("Telemetry viewer connected")
}

// readPump drains the connection. Viewers are read-only; anything they send
// is discarded, but the loop keeps pong handling and close detection alive.
func (s *Server) readPump(c *wsClient) {
	defer func() {
		s.hub.unregister(c)
		c.conn.Close()
		log.Info().Msg("Telemetry viewer disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("WebSocket unexpected close")
			}
			break
		}
	}
}

// writePump flushes queued records to the connection and keeps it alive with
// pings.
func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued records into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
