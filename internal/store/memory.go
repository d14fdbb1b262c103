package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
)

// MemoryStore is a process-local Repository.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.EntryRecord
	seen    map[string]struct{}
	calls   map[string]domain.CachedCall
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]domain.EntryRecord),
		seen:    make(map[string]struct{}),
		calls:   make(map[string]domain.CachedCall),
	}
}

// Name implements Repository.
func (m *MemoryStore) Name() string { return "memory" }

// WriteEntry implements ConversationStore.
func (m *MemoryStore) WriteEntry(_ context.Context, rec domain.EntryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[rec.ID]; dup {
		return nil
	}
	m.seen[rec.ID] = struct{}{}
	m.entries[rec.ConversationID] = append(m.entries[rec.ConversationID], rec)
	return nil
}

// ListEntries implements ConversationStore.
func (m *MemoryStore) ListEntries(_ context.Context, conversationID string) ([]domain.EntryRecord, error) {
	m.mu.RLock()
	out := slices.Clone(m.entries[conversationID])
	m.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b domain.EntryRecord) int { return a.Seq - b.Seq })
	return out, nil
}

// PutCall implements CallCache.
func (m *MemoryStore) PutCall(_ context.Context, snap domain.CachedCall) error {
	if snap.CallID == "" {
		return fmt.Errorf("call snapshot has no call_id")
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	snap.Payload = slices.Clone(snap.Payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.calls[snap.CallID]; ok {
		if snap.FetchedAt.Before(prev.FetchedAt) {
			return nil
		}
		if snap.AgentID == "" {
			snap.AgentID = prev.AgentID
		}
	}
	m.calls[snap.CallID] = snap
	return nil
}

// GetCall implements CallCache.
func (m *MemoryStore) GetCall(_ context.Context, callID string) (*domain.CachedCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.calls[callID]
	if !ok {
		return nil, nil
	}
	snap.Payload = slices.Clone(snap.Payload)
	return &snap, nil
}

// Ping implements Repository.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryStore) Close() error { return nil }
