// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"

	"github.com/ashureev/tradevoice/internal/domain"
)

// ConversationStore mirrors conversation entries durably.
type ConversationStore interface {
	// WriteEntry persists one entry. Writing the same record ID twice is a
	// no-op.
	WriteEntry(ctx context.Context, rec domain.EntryRecord) error

	// ListEntries returns a conversation's entries ordered by seq.
	ListEntries(ctx context.Context, conversationID string) ([]domain.EntryRecord, error)
}

// CallCache keeps the most recently fetched snapshot of each call.
type CallCache interface {
	// PutCall stores snap, replacing any older snapshot of the same call.
	PutCall(ctx context.Context, snap domain.CachedCall) error

	// GetCall returns the cached snapshot, or nil if the call was never
	// fetched.
	GetCall(ctx context.Context, callID string) (*domain.CachedCall, error)
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	ConversationStore
	CallCache

	// Name identifies the backend in logs and sink stats.
	Name() string

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Open returns the repository for driver ("memory" or "sqlite").
func Open(driver, dbPath string) (Repository, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		s, err := NewSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
