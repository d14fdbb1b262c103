// Package identity resolves which conversation a request belongs to.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/tradevoice/internal/domain"
)

const (
	// ConversationHeaderName scopes a request to one conversation log.
	ConversationHeaderName = "X-Conversation-ID"
	// ConversationQueryParam is the query fallback for clients that cannot
	// set headers, such as WebSocket upgrades from a browser.
	ConversationQueryParam = "conversation_id"
)

type contextKey int

const conversationIDKey contextKey = iota

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ConversationIDFromContext returns the request's conversation ID, or the
// default conversation when none was resolved.
func ConversationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(conversationIDKey).(string); ok {
		return v
	}
	return domain.DefaultConversationID
}

// WithConversationID returns a context scoped to id.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDKey, sanitizeConversationID(id))
}

func sanitizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !conversationIDPattern.MatchString(id) {
		return domain.DefaultConversationID
	}
	return id
}

func conversationIDFromRequest(r *http.Request) string {
	id := r.Header.Get(ConversationHeaderName)
	if id == "" {
		id = r.URL.Query().Get(ConversationQueryParam)
	}
	return id
}

// Middleware injects the per-request conversation ID. Missing or malformed
// IDs fall back to the default conversation.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithConversationID(r.Context(), conversationIDFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
