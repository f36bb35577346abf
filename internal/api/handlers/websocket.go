// Package handlers provides HTTP request handlers for the portward API.
// This file implements the WebSocket endpoint that pushes job events to
// subscribers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/portward/internal/api/middleware"
	"github.com/anstrom/portward/internal/errors"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/metrics"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second    // Time to read next pong message from peer
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer (must be < pongWait)
	maxMessageSize = 512                 // Maximum message size allowed from peer
	sendBufferSize = 256                 // Events queued per client before it is dropped
)

var errShuttingDown = errors.NewScanError(errors.CodeServiceUnavailable, "server is shutting down")

// WebSocketHandler is a hub of event subscribers. It implements
// jobs.Notifier; a client whose queue is full is disconnected rather than
// slowing down the scans.
type WebSocketHandler struct {
	logger   *slog.Logger
	metrics  metrics.Collector
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	jobID     string
	requestID string
}

// NewWebSocketHandler creates a new hub. checkOrigin may be nil to accept
// any origin.
func NewWebSocketHandler(logger *slog.Logger, collector metrics.Collector, checkOrigin func(*http.Request) bool) *WebSocketHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		logger:  logger.With("handler", "websocket"),
		metrics: metrics.OrNoop(collector),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Subscribe godoc
// @Summary Subscribe to job events
// @Description Upgrades to a WebSocket that streams job events as JSON messages.
// @Tags Events
// @Param job_id query string false "Only events of this job"
// @Success 101 {object} jobs.Event
// @Failure 503 {object} ErrorResponse
// @Router /ws [get]
func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		writeError(w, r, http.StatusServiceUnavailable, errShuttingDown)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	c := &wsClient{
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		jobID:     r.URL.Query().Get("job_id"),
		requestID: requestID,
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	h.logger.Debug("WebSocket client connected",
		"request_id", requestID,
		"job_id", c.jobID,
		"remote_addr", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *WebSocketHandler) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.WebSocketClients(len(h.clients))
	return true
}

// unregister removes c and closes its queue, which ends the write pump.
func (h *WebSocketHandler) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WebSocketClients(len(h.clients))
}

// readPump discards client messages and keeps the read deadline fresh
// through pongs. It returns when the connection fails or closes.
func (h *WebSocketHandler) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed unexpectedly", "request_id", c.requestID, "error", err)
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *WebSocketHandler) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", c.requestID, "error", err)
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

// Notify implements jobs.Notifier.
func (h *WebSocketHandler) Notify(event jobs.Event) {
	var data []byte
	var slow []*wsClient

	h.mu.RLock()
	for c := range h.clients {
		if c.jobID != "" && c.jobID != event.JobID {
			continue
		}
		if data == nil {
			var err error
			if data, err = json.Marshal(event); err != nil {
				h.mu.RUnlock()
				h.logger.Error("Failed to encode job event", "job_id", event.JobID, "error", err)
				return
			}
		}
		select {
		case c.send <- data:
			h.metrics.WebSocketMessage(string(event.Type))
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow WebSocket client", "request_id", c.requestID)
		h.unregister(c)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.WebSocketClients(0)
	h.logger.Info("WebSocket handler closed")
}

var _ jobs.Notifier = (*WebSocketHandler)(nil)
