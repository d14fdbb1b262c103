package api

import (
	"net/http"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/identity"
	"github.com/go-chi/chi/v5"
)

// CreateAgentResponse is returned by POST /api/agents/create.
type CreateAgentResponse struct {
	Agent          *domain.Agent   `json:"agent"`
	Session        *domain.Session `json:"session"`
	ConversationID string          `json:"conversation_id"`
}

// CreateAgent provisions an agent and a session token for it. A failed
// session leaves the agent orphaned; the client restarts from scratch.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	convID := identity.ConversationIDFromContext(ctx)

	agent, err := h.provisioner.CreateAgent(ctx, convID)
	if err != nil {
		h.writeError(w, r, err, "Failed to create agent")
		return
	}

	session, err := h.provisioner.IssueSession(ctx, agent.AgentID)
	if err != nil {
		h.writeError(w, r, err, "Failed to create agent")
		return
	}

	JSON(w, http.StatusOK, CreateAgentResponse{
		Agent:          agent,
		Session:        session,
		ConversationID: convID,
	})
}

type messageRequest struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

// MessageResponse is returned by POST /api/agents/message.
type MessageResponse struct {
	Success bool            `json:"success"`
	Entry   domain.LogEntry `json:"entry"`
}

// PostMessage appends a relayed utterance to the conversation log. The role
// defaults to user; the client relays agent speech as assistant.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, &domain.ValidationError{Field: "body", Message: "Invalid JSON body"}, "Failed to process message")
		return
	}
	if req.Message == "" {
		h.writeError(w, r, domain.Required("message", "Message"), "Failed to process message")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, r, err, "Failed to process message")
		return
	}

	entry := h.logs.Get(r.Context(), identity.ConversationIDFromContext(r.Context())).Append(role, req.Message)
	JSON(w, http.StatusOK, MessageResponse{Success: true, Entry: entry})
}

// ConversationResponse is returned by GET /api/agents/conversation.
type ConversationResponse struct {
	History []domain.LogEntry `json:"history"`
}

// GetConversation returns the conversation log in arrival order.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	history := h.logs.History(r.Context(), identity.ConversationIDFromContext(r.Context()))
	JSON(w, http.StatusOK, ConversationResponse{History: history})
}

// StartWebSession opens a platform web session for an existing agent. The
// optional JSON body is forwarded as session options.
func (h *Handler) StartWebSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	options := map[string]any{}
	if err := decodeJSON(w, r, &options); err != nil {
		h.writeError(w, r, &domain.ValidationError{Field: "body", Message: "Invalid JSON body"}, "Failed to start session")
		return
	}

	raw, err := h.provisioner.StartWebSession(r.Context(), agentID, options)
	if err != nil {
		h.writeError(w, r, err, "Failed to start session")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: raw})
}
