package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the HTTP handlers read while the sink worker writes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversation_entries (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		role TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_entries_seq
		ON conversation_entries(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS calls (
		call_id TEXT PRIMARY KEY,
		agent_id TEXT,
		status TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		payload_json TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_calls_agent ON calls(agent_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Name implements Repository.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// WriteEntry mirrors one conversation entry. It retries on lock conflicts.
func (s *SQLiteStore) WriteEntry(ctx context.Context, rec domain.EntryRecord) error {
	return shared.Retry(ctx, shared.SQLiteWritePolicy, "write conversation entry", func(ctx context.Context) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		query := `
		INSERT INTO conversation_entries (id, conversation_id, seq, timestamp, role, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
		_, err := s.db.ExecContext(ctx, query,
			rec.ID, rec.ConversationID, rec.Seq,
			rec.Entry.Timestamp, string(rec.Entry.Role), rec.Entry.Message,
			time.Now().Unix(),
		)
		return err
	})
}

// ListEntries returns a conversation's entries ordered by seq.
func (s *SQLiteStore) ListEntries(ctx context.Context, conversationID string) ([]domain.EntryRecord, error) {
	query := `
		SELECT id, conversation_id, seq, timestamp, role, message
		FROM conversation_entries
		WHERE conversation_id = ?
		ORDER BY seq, created_at`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query conversation entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var records []domain.EntryRecord
	for rows.Next() {
		var rec domain.EntryRecord
		var role string
		if err := rows.Scan(
			&rec.ID, &rec.ConversationID, &rec.Seq,
			&rec.Entry.Timestamp, &role, &rec.Entry.Message,
		); err != nil {
			return nil, fmt.Errorf("scan conversation entry: %w", err)
		}
		rec.Entry.Role = domain.Role(role)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation entries: %w", err)
	}
	return records, nil
}

// PutCall upserts the latest snapshot of a call.
func (s *SQLiteStore) PutCall(ctx context.Context, snap domain.CachedCall) error {
	if snap.CallID == "" {
		return fmt.Errorf("call snapshot has no call_id")
	}
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	return shared.Retry(ctx, shared.SQLiteWritePolicy, "put call", func(ctx context.Context) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		// A snapshot never overwrites a newer one, and agent_id survives a
		// status-only refresh that does not carry it.
		query := `
		INSERT INTO calls (call_id, agent_id, status, completed, payload_json, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			agent_id = COALESCE(excluded.agent_id, calls.agent_id),
			status = excluded.status,
			completed = excluded.completed,
			payload_json = excluded.payload_json,
			fetched_at = excluded.fetched_at
		WHERE excluded.fetched_at >= calls.fetched_at`

		var agentID interface{}
		if snap.AgentID != "" {
			agentID = snap.AgentID
		}
		payload := string(snap.Payload)
		if payload == "" {
			payload = "{}"
		}

		_, err := s.db.ExecContext(ctx, query,
			snap.CallID, agentID, snap.Status, snap.Completed,
			payload, fetchedAt.UnixMilli(),
		)
		return err
	})
}

// GetCall returns the cached snapshot of a call, or nil if there is none.
func (s *SQLiteStore) GetCall(ctx context.Context, callID string) (*domain.CachedCall, error) {
	query := `
		SELECT call_id, agent_id, status, completed, payload_json, fetched_at
		FROM calls WHERE call_id = ?`

	var snap domain.CachedCall
	var agentID, status sql.NullString
	var payload string
	var fetchedAt int64

	err := s.db.QueryRowContext(ctx, query, callID).Scan(
		&snap.CallID, &agentID, &status, &snap.Completed, &payload, &fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan call row: %w", err)
	}

	snap.AgentID = agentID.String
	snap.Status = status.String
	snap.Payload = []byte(payload)
	snap.FetchedAt = time.UnixMilli(fetchedAt)
	return &snap, nil
}
