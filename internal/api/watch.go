package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/ashureev/tradevoice/internal/identity"
	"github.com/coder/websocket"
)

// WatchEvent is one message on a call-watch WebSocket.
type WatchEvent struct {
	Type    string `json:"type"` // "status", "transcript" or "error"
	CallID  string `json:"call_id"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// WatchCall streams status changes of a call over a WebSocket until the
// call completes, then sends the transcript and closes.
func (h *Handler) WatchCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	if h.watcher == nil {
		Error(w, http.StatusServiceUnavailable, "Call watch unavailable", "no watcher configured")
		return
	}
	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "Forbidden", "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "call_id", callID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "watch ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "call_id", callID)
		}
	}()

	h.watches.Register(callID, ws)
	defer h.watches.Unregister(callID, ws)

	// The client never sends; CloseRead cancels ctx when it disconnects.
	ctx := ws.CloseRead(r.Context())
	h.logger.Info("Call watch started", "call_id", callID, "ip", identity.IPFromRequest(r))

	completed := false
	for status, err := range h.watcher.Watch(ctx, callID) {
		if err != nil {
			_, details := statusAndDetails(err)
			h.send(ctx, ws, WatchEvent{Type: "error", CallID: callID, Error: "Failed to watch call", Details: details})
			return
		}
		if !h.send(ctx, ws, WatchEvent{Type: "status", CallID: callID, Data: status}) {
			return
		}
		completed = status.IsTerminal()
	}
	if !completed {
		return
	}

	ts, err := h.calls.GetTranscriptAndSummary(ctx, callID)
	if err != nil {
		_, details := statusAndDetails(err)
		h.send(ctx, ws, WatchEvent{Type: "error", CallID: callID, Error: "Failed to retrieve transcript", Details: details})
		return
	}
	h.send(ctx, ws, WatchEvent{Type: "transcript", CallID: callID, Data: ts})
	h.logger.Info("Call watch finished", "call_id", callID)
}

func (h *Handler) send(ctx context.Context, ws *websocket.Conn, ev WatchEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode watch event", "error", err, "call_id", ev.CallID)
		return false
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		if ctx.Err() == nil {
			h.logger.Debug("WebSocket write error", "error", err, "call_id", ev.CallID)
		}
		return false
	}
	return true
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 || slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.origins)
	return false
}

// WatchManager tracks open call-watch connections so shutdown can close
// them.
type WatchManager struct {
	mu     sync.Mutex
	active map[string]map[*websocket.Conn]struct{}
	logger *slog.Logger
}

// NewWatchManager creates an empty manager.
func NewWatchManager(logger *slog.Logger) *WatchManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchManager{
		active: make(map[string]map[*websocket.Conn]struct{}),
		logger: logger,
	}
}

// Register adds a connection watching callID.
func (m *WatchManager) Register(callID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[callID]; !ok {
		m.active[callID] = make(map[*websocket.Conn]struct{})
	}
	m.active[callID][conn] = struct{}{}
	m.logger.Debug("Call watch registered", "call_id", callID)
}

// Unregister removes a connection.
func (m *WatchManager) Unregister(callID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns, ok := m.active[callID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(m.active, callID)
	}
}

// Count returns the number of open connections.
func (m *WatchManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, conns := range m.active {
		n += len(conns)
	}
	return n
}

// CloseAll closes every open connection with reason.
func (m *WatchManager) CloseAll(reason string) {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[*websocket.Conn]struct{})
	m.mu.Unlock()

	for callID, conns := range active {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, reason)
		}
		m.logger.Info("Call watches closed", "call_id", callID, "count", len(conns))
	}
}
