package provision

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/tradevoice/internal/conversation"
	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/persona"
)

type fakePlatform struct {
	agentJSON   string
	sessionJSON string
	createErr   error
	authErr     error

	createCalls int
	authorized  []string
	lastRequest persona.AgentRequest
}

func (f *fakePlatform) CreateAgent(_ context.Context, req persona.AgentRequest) (*domain.Agent, error) {
	f.createCalls++
	f.lastRequest = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	var agent domain.Agent
	if f.agentJSON != "" {
		if err := json.Unmarshal([]byte(f.agentJSON), &agent); err != nil {
			return nil, err
		}
	}
	return &agent, nil
}

func (f *fakePlatform) AuthorizeAgent(_ context.Context, agentID string) (*domain.Session, error) {
	f.authorized = append(f.authorized, agentID)
	if f.authErr != nil {
		return nil, f.authErr
	}
	var session domain.Session
	if f.sessionJSON != "" {
		if err := json.Unmarshal([]byte(f.sessionJSON), &session); err != nil {
			return nil, err
		}
	}
	return &session, nil
}

func (f *fakePlatform) StartWebSession(_ context.Context, agentID string, _ map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{"session_id":"ws-` + agentID + `"}`), nil
}

func defaultPersona(t *testing.T) *persona.Persona {
	t.Helper()
	p, err := persona.Default()
	if err != nil {
		t.Fatalf("load default persona: %v", err)
	}
	return p
}

func newService(t *testing.T, p *fakePlatform) (*Service, *conversation.Registry) {
	t.Helper()
	logs := conversation.NewRegistry()
	return NewService(p, defaultPersona(t), logs, nil), logs
}

func TestCreateAgentLogsGreetingBeforeUserEntries(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{agentJSON: `{"agent_id":"a1","voice":"maya"}`}
	svc, logs := newService(t, p)
	ctx := context.Background()

	agent, err := svc.CreateAgent(ctx, "")
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	if agent.AgentID != "a1" {
		t.Fatalf("expected agent a1, got %q", agent.AgentID)
	}
	logs.Get(ctx, "").Append(domain.RoleUser, "hi")

	history := logs.Get(ctx, domain.DefaultConversationID).ReadAll()
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Role != domain.RoleAssistant || history[0].Message != defaultPersona(t).Greeting {
		t.Errorf("expected greeting first, got %+v", history[0])
	}
	if history[1].Role != domain.RoleUser {
		t.Errorf("expected user entry second, got %+v", history[1])
	}
	if !p.lastRequest.WebAgent || p.lastRequest.Voice != "maya" {
		t.Errorf("unexpected agent request %+v", p.lastRequest)
	}
}

func TestCreateAgentMissingIDLogsNothing(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{agentJSON: `{}`}
	svc, logs := newService(t, p)
	ctx := context.Background()

	_, err := svc.CreateAgent(ctx, "c1")
	var perr *domain.ProvisioningError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisioningError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Missing agent ID") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if n := logs.Get(ctx, "c1").Len(); n != 0 {
		t.Errorf("expected empty log, got %d entries", n)
	}
}

func TestCreateAgentPlatformFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("API Error: 401 - unauthorized")
	svc, logs := newService(t, &fakePlatform{createErr: cause})

	_, err := svc.CreateAgent(context.Background(), "")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if n := logs.Get(context.Background(), "").Len(); n != 0 {
		t.Errorf("expected empty log, got %d entries", n)
	}
}

func TestIssueSessionMissingToken(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{agentJSON: `{"agent_id":"a1"}`, sessionJSON: `{}`}
	svc, _ := newService(t, p)
	ctx := context.Background()

	agent, err := svc.CreateAgent(ctx, "")
	if err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	_, err = svc.IssueSession(ctx, agent.AgentID)

	var serr *domain.SessionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Missing session token") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if len(p.authorized) != 1 || p.authorized[0] != "a1" {
		t.Errorf("expected authorize called once with a1, got %v", p.authorized)
	}
}

func TestIssueSessionReturnsPlatformPayload(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{sessionJSON: `{"token":"tok-1","expires_in":300}`}
	svc, _ := newService(t, p)

	session, err := svc.IssueSession(context.Background(), "a1")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}
	if session.Token != "tok-1" {
		t.Errorf("unexpected token %q", session.Token)
	}
	out, _ := json.Marshal(session)
	if !strings.Contains(string(out), `"expires_in":300`) {
		t.Errorf("expected platform fields to pass through, got %s", out)
	}
}

func TestIssueSessionRequiresAgentID(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	svc, _ := newService(t, p)

	_, err := svc.IssueSession(context.Background(), "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(p.authorized) != 0 {
		t.Errorf("expected no platform calls, got %v", p.authorized)
	}
}

func TestStartWebSession(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, &fakePlatform{})
	raw, err := svc.StartWebSession(context.Background(), "a1", nil)
	if err != nil {
		t.Fatalf("StartWebSession failed: %v", err)
	}
	if string(raw) != `{"session_id":"ws-a1"}` {
		t.Errorf("unexpected payload %s", raw)
	}
}
