package api

import (
	"github.com/ashureev/tradevoice/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the relay API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", h.Health)

	r.Route("/api/agents", func(r chi.Router) {
		r.Use(identity.Middleware)
		r.NotFound(notFound)
		r.MethodNotAllowed(notFound)

		r.Get("/health", h.AgentsHealth)

		r.Post("/create", h.CreateAgent)
		r.Post("/message", h.PostMessage)
		r.Get("/conversation", h.GetConversation)

		r.Post("/{agentId}/call", h.InitiateCall)
		r.Post("/{agentId}/sessions", h.StartWebSession)

		r.Get("/calls", h.ListCalls)
		r.Get("/calls/", h.missingCallID)
		r.Get("/calls/{callId}", h.GetCall)
		r.Get("/calls/{callId}/transcript", h.GetTranscript)
		r.Get("/calls/{callId}/summary", h.GetSummary)
		r.Get("/calls/{callId}/status", h.GetCallStatus)
		r.Get("/calls/{callId}/cached", h.GetCachedCall)
		r.Get("/calls/{callId}/watch", h.WatchCall)
	})
}
