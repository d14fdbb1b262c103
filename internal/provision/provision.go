// Package provision creates platform agents from the persona and issues
// the short-lived session tokens browsers use to talk to them.
package provision

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ashureev/tradevoice/internal/conversation"
	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/persona"
)

// AgentPlatform is the subset of the platform client used for provisioning.
type AgentPlatform interface {
	CreateAgent(ctx context.Context, req persona.AgentRequest) (*domain.Agent, error)
	AuthorizeAgent(ctx context.Context, agentID string) (*domain.Session, error)
	StartWebSession(ctx context.Context, agentID string, options map[string]any) (json.RawMessage, error)
}

// Service provisions agents and sessions.
type Service struct {
	platform AgentPlatform
	persona  *persona.Persona
	logs     *conversation.Registry
	logger   *slog.Logger
}

// NewService creates a provisioning service for persona p.
func NewService(platform AgentPlatform, p *persona.Persona, logs *conversation.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{platform: platform, persona: p, logs: logs, logger: logger}
}

// CreateAgent registers a new agent built from the persona and records the
// greeting in the conversation log. Nothing is logged on failure.
func (s *Service) CreateAgent(ctx context.Context, conversationID string) (*domain.Agent, error) {
	agent, err := s.platform.CreateAgent(ctx, s.persona.AgentRequest())
	if err != nil {
		return nil, &domain.ProvisioningError{Reason: err.Error(), Err: err}
	}
	if agent == nil || agent.AgentID == "" {
		return nil, &domain.ProvisioningError{Reason: "Invalid response from platform: Missing agent ID"}
	}

	s.logger.Info("Agent created", "agent_id", agent.AgentID, "persona", s.persona.Name)
	s.logs.Get(ctx, conversationID).Append(domain.RoleAssistant, s.persona.Greeting)
	return agent, nil
}

// IssueSession exchanges an agent ID for a session token.
func (s *Service) IssueSession(ctx context.Context, agentID string) (*domain.Session, error) {
	if agentID == "" {
		return nil, domain.Required("agent_id", "Agent ID")
	}

	session, err := s.platform.AuthorizeAgent(ctx, agentID)
	if err != nil {
		return nil, &domain.SessionError{AgentID: agentID, Reason: err.Error(), Err: err}
	}
	if session == nil || session.Token == "" {
		return nil, &domain.SessionError{AgentID: agentID, Reason: "Invalid response from platform: Missing session token"}
	}

	s.logger.Info("Session issued", "agent_id", agentID)
	return session, nil
}

// StartWebSession opens a platform-side web session and returns the
// platform payload unchanged.
func (s *Service) StartWebSession(ctx context.Context, agentID string, options map[string]any) (json.RawMessage, error) {
	if agentID == "" {
		return nil, domain.Required("agent_id", "Agent ID")
	}
	raw, err := s.platform.StartWebSession(ctx, agentID, options)
	if err != nil {
		return nil, &domain.SessionError{AgentID: agentID, Reason: err.Error(), Err: err}
	}
	return raw, nil
}
