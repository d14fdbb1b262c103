// Package api provides the HTTP relay between the browser client and the
// voice-agent platform.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/ashureev/tradevoice/internal/conversation"
	"github.com/ashureev/tradevoice/internal/domain"
)

// defaultMaxRequestBodySize is the maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Provisioner creates agents and sessions.
type Provisioner interface {
	CreateAgent(ctx context.Context, conversationID string) (*domain.Agent, error)
	IssueSession(ctx context.Context, agentID string) (*domain.Session, error)
	StartWebSession(ctx context.Context, agentID string, options map[string]any) (json.RawMessage, error)
}

// CallManager places and inspects calls.
type CallManager interface {
	Initiate(ctx context.Context, agentID, phoneNumber string, opts domain.CallOptions) (*domain.CallInitiation, error)
	GetStatus(ctx context.Context, callID string) (*domain.CallStatus, error)
	GetCallDetails(ctx context.Context, callID string) (*domain.Call, error)
	GetTranscriptAndSummary(ctx context.Context, callID string) (*domain.TranscriptSummary, error)
	GetSummary(ctx context.Context, callID string) (*domain.CallSummary, error)
	ListCalls(ctx context.Context, agentID string) (*domain.CallList, error)
	Cached(ctx context.Context, callID string) (*domain.CachedCall, error)
}

// CallWatcher streams status changes of a call.
type CallWatcher interface {
	Watch(ctx context.Context, callID string) iter.Seq2[domain.CallStatus, error]
}

// StatsFunc reports conversation sink counters for health checks.
type StatsFunc func() conversation.DispatchStats

// Deps are the collaborators of the relay handlers.
type Deps struct {
	Provisioner    Provisioner
	Calls          CallManager
	Watcher        CallWatcher
	Conversations  *conversation.Registry
	SinkStats      StatsFunc
	AllowedOrigins []string
	IsDev          bool
	Logger         *slog.Logger
}

// Handler serves the relay API.
type Handler struct {
	provisioner Provisioner
	calls       CallManager
	watcher     CallWatcher
	logs        *conversation.Registry
	sinkStats   StatsFunc
	watches     *WatchManager
	origins     []string
	isDev       bool
	logger      *slog.Logger
}

// NewHandler creates a relay handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logs := d.Conversations
	if logs == nil {
		logs = conversation.NewRegistry(conversation.WithLogger(logger))
	}
	return &Handler{
		provisioner: d.Provisioner,
		calls:       d.Calls,
		watcher:     d.Watcher,
		logs:        logs,
		sinkStats:   d.SinkStats,
		watches:     NewWatchManager(logger),
		origins:     d.AllowedOrigins,
		isDev:       d.IsDev,
		logger:      logger,
	}
}

// Watches returns the registry of open call-watch connections.
func (h *Handler) Watches() *WatchManager { return h.watches }

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", "error", err)
	}
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message, details string) {
	JSON(w, status, ErrorBody{Error: message, Details: details})
}

// decodeJSON reads an optional JSON object body into v. An empty body
// leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
