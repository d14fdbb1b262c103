// Package calls manages outbound phone calls placed through the platform.
// It only reads call state; the platform owns the call lifecycle and
// nothing here polls in the background.
package calls

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/store"
)

// CallPlatform is the subset of the platform client used for calls.
type CallPlatform interface {
	CreateCall(ctx context.Context, body map[string]any) (*domain.CallInitiation, error)
	GetCall(ctx context.Context, callID string) (*domain.Call, error)
	GetCallStatus(ctx context.Context, callID string) (*domain.CallStatus, error)
	ListCalls(ctx context.Context, agentID string) (*domain.CallList, error)
}

// Manager places and inspects calls.
type Manager struct {
	platform CallPlatform
	cache    store.CallCache
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager creates a Manager. cache may be nil.
func NewManager(platform CallPlatform, cache store.CallCache, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{platform: platform, cache: cache, now: time.Now, logger: logger}
}

// Initiate places an outbound call from agentID to phoneNumber. Both are
// required; nothing is sent to the platform when either is missing.
func (m *Manager) Initiate(ctx context.Context, agentID, phoneNumber string, opts domain.CallOptions) (*domain.CallInitiation, error) {
	if phoneNumber == "" {
		return nil, domain.Required("phone_number", "Phone number")
	}
	if agentID == "" {
		return nil, domain.Required("agent_id", "Agent ID")
	}

	body := make(map[string]any, len(opts.Extra)+4)
	maps.Copy(body, opts.Extra)
	body["phone_number"] = phoneNumber
	body["agent_id"] = agentID
	body["max_duration"] = opts.EffectiveMaxDuration()
	body["record"] = opts.EffectiveRecord()

	m.logger.Info("Initiating call", "agent_id", agentID, "to", phoneNumber)
	started, err := m.platform.CreateCall(ctx, body)
	if err != nil {
		return nil, &domain.CallError{Op: "initiate", Err: err}
	}

	if started.CallID != "" {
		m.remember(ctx, domain.CachedCall{
			CallID:  started.CallID,
			AgentID: agentID,
			Status:  started.Status,
		}, started)
	}
	return started, nil
}

// GetStatus fetches one status snapshot. Each call is exactly one platform
// request.
func (m *Manager) GetStatus(ctx context.Context, callID string) (*domain.CallStatus, error) {
	if callID == "" {
		return nil, domain.Required("call_id", "Call ID")
	}
	status, err := m.platform.GetCallStatus(ctx, callID)
	if err != nil {
		return nil, &domain.CallError{Op: "get status of", CallID: callID, Err: err}
	}
	m.remember(ctx, domain.CachedCall{
		CallID:    callID,
		Status:    status.Status,
		Completed: status.Completed,
	}, status)
	return status, nil
}

// GetCallDetails fetches the full call record.
func (m *Manager) GetCallDetails(ctx context.Context, callID string) (*domain.Call, error) {
	if callID == "" {
		return nil, domain.Required("call_id", "Call ID")
	}
	call, err := m.platform.GetCall(ctx, callID)
	if err != nil {
		return nil, &domain.CallError{Op: "get details of", CallID: callID, Err: err}
	}
	m.remember(ctx, domain.CachedCall{
		CallID:    callID,
		AgentID:   call.AgentID,
		Status:    call.Status,
		Completed: call.Completed,
	}, call)
	return call, nil
}

// GetTranscriptAndSummary narrows the call record to its outcome.
// Omitted transcript and summary fields come back empty, never nil.
func (m *Manager) GetTranscriptAndSummary(ctx context.Context, callID string) (*domain.TranscriptSummary, error) {
	call, err := m.GetCallDetails(ctx, callID)
	if err != nil {
		return nil, err
	}
	turns := call.Transcripts
	if turns == nil {
		turns = []domain.TranscriptTurn{}
	}
	return &domain.TranscriptSummary{
		Transcript:             turns,
		ConcatenatedTranscript: call.ConcatenatedTranscript,
		Summary:                call.Summary,
		CallID:                 call.CallID,
		CallLength:             call.CallLength,
		Completed:              call.Completed,
	}, nil
}

// GetSummary returns only the summary view of a call. The call ID is the
// one requested, whatever the platform echoes.
func (m *Manager) GetSummary(ctx context.Context, callID string) (*domain.CallSummary, error) {
	ts, err := m.GetTranscriptAndSummary(ctx, callID)
	if err != nil {
		return nil, err
	}
	return &domain.CallSummary{
		CallID:     callID,
		Summary:    ts.Summary,
		CallLength: ts.CallLength,
		Completed:  ts.Completed,
	}, nil
}

// ListCalls lists calls, optionally only those placed by agentID.
func (m *Manager) ListCalls(ctx context.Context, agentID string) (*domain.CallList, error) {
	list, err := m.platform.ListCalls(ctx, agentID)
	if err != nil {
		return nil, &domain.CallError{Op: "list", Err: err}
	}
	return list, nil
}

// Cached returns the last snapshot fetched for callID, or nil.
func (m *Manager) Cached(ctx context.Context, callID string) (*domain.CachedCall, error) {
	if callID == "" {
		return nil, domain.Required("call_id", "Call ID")
	}
	if m.cache == nil {
		return nil, nil
	}
	return m.cache.GetCall(ctx, callID)
}

// remember writes a snapshot to the cache. Failures are logged only.
func (m *Manager) remember(ctx context.Context, snap domain.CachedCall, payload any) {
	if m.cache == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("failed to encode call snapshot", "call_id", snap.CallID, "error", err)
		return
	}
	snap.Payload = raw
	snap.FetchedAt = m.now()
	if err := m.cache.PutCall(ctx, snap); err != nil {
		m.logger.Warn("failed to cache call snapshot", "call_id", snap.CallID, "error", err)
	}
}
