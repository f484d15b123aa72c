package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"versescope/internal/logging"
	"versescope/internal/pipeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// eventHub fans snapshots out to websocket clients. Slow clients whose
// buffer fills are disconnected rather than blocking the pipeline.
type eventHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	last    []byte
	closed  bool
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newEventHub(allowedOrigins []string, logger *slog.Logger) *eventHub {
	h := &eventHub{
		logger:  logger,
		clients: make(map[*eventClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker allows requests without an Origin header, same-origin
// requests, and origins in allowed ("*" allows all).
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// publish encodes snap and queues it for every client.
func (h *eventHub) publish(snap pipeline.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		logging.ErrorWithContext(h.logger, "encode snapshot", "event_encode_failed", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = payload
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.dropLocked(client)
			logging.WarnWithContext(h.logger, "websocket client too slow; disconnecting", "websocket_client_dropped",
				logging.String(logging.FieldErrorHint, "client did not read snapshots fast enough"),
			)
		}
	}
}

// register adds a client primed with the latest snapshot.
func (h *eventHub) register(conn *websocket.Conn) (*eventClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	client := &eventClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if h.last != nil {
		client.send <- h.last
	}
	h.clients[client] = struct{}{}
	h.logger.Debug("websocket client connected", logging.Int("clients", len(h.clients)))
	return client, true
}

func (h *eventHub) unregister(client *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
	h.logger.Debug("websocket client disconnected", logging.Int("clients", len(h.clients)))
}

// dropLocked must be called with mu held.
func (h *eventHub) dropLocked(client *eventClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		h.dropLocked(client)
		_ = client.conn.Close()
	}
}

func (s *Server) handleEvents(c echo.Context) error {
	conn, err := s.events.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an error response.
		s.logger.Debug("websocket upgrade failed", logging.Args(logging.Error(err))...)
		return nil
	}
	client, ok := s.events.register(conn)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writePump()
	}()
	client.readPump()
	s.events.unregister(client)
	<-done
	_ = conn.Close()
	return nil
}

// readPump discards client messages and returns when the connection closes.
func (c *eventClient) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer of data frames on the connection.
func (c *eventClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
