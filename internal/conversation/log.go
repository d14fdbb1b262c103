// Package conversation keeps the ordered, timestamped record of every
// utterance in a conversation. The in-memory log is authoritative for the
// process lifetime; durable sinks receive a copy asynchronously and can
// never block or fail an append.
package conversation

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/google/uuid"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Enqueuer accepts appended entries for asynchronous delivery. Enqueue must
// not block.
type Enqueuer interface {
	Enqueue(rec domain.EntryRecord) bool
}

// Log is an append-only, arrival-ordered sequence of entries for one
// conversation. It is safe for concurrent use.
type Log struct {
	id     string
	now    func() time.Time
	sink   Enqueuer
	logger *slog.Logger

	mu      sync.RWMutex
	entries []domain.LogEntry
}

func newLog(id string, now func() time.Time, sink Enqueuer, logger *slog.Logger, seed []domain.LogEntry) *Log {
	return &Log{
		id:      id,
		now:     now,
		sink:    sink,
		logger:  logger,
		entries: seed,
	}
}

// ID returns the conversation ID.
func (l *Log) ID() string { return l.id }

// Append records an utterance and returns the stored entry. It never fails.
func (l *Log) Append(role domain.Role, message string) domain.LogEntry {
	l.mu.Lock()
	entry := domain.LogEntry{
		Timestamp: l.now().UTC().Format(TimestampFormat),
		Role:      role,
		Message:   message,
	}
	l.entries = append(l.entries, entry)
	seq := len(l.entries)
	// Enqueue under the lock so sinks observe the same order as readers.
	if l.sink != nil {
		l.sink.Enqueue(domain.EntryRecord{
			ID:             newRecordID(),
			ConversationID: l.id,
			Seq:            seq,
			Entry:          entry,
		})
	}
	l.mu.Unlock()

	l.logger.Info("Conversation entry",
		"conversation_id", l.id,
		"seq", seq,
		"role", role,
		"message", message,
		"timestamp", entry.Timestamp,
	)
	return entry
}

// ReadAll returns a snapshot of every entry in arrival order.
func (l *Log) ReadAll() []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := slices.Clone(l.entries)
	if out == nil {
		out = []domain.LogEntry{}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
