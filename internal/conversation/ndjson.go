package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ashureev/tradevoice/internal/domain"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileSinkConfig controls NDJSON transcript files.
type FileSinkConfig struct {
	// Dir receives one <conversation>.ndjson file per conversation.
	Dir string
	// GlobalEnabled also appends every entry to GlobalPath.
	GlobalEnabled bool
	GlobalPath    string
}

// FileEvent is one NDJSON line.
type FileEvent struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Seq            int         `json:"seq"`
	Timestamp      string      `json:"timestamp"`
	Role           domain.Role `json:"role"`
	Message        string      `json:"message"`
}

// FileSink appends entries as NDJSON lines, one file per conversation.
type FileSink struct {
	cfg FileSinkConfig

	mu     sync.Mutex
	files  map[string]*os.File
	global *os.File
}

// NewFileSink creates the log directory and, if enabled, opens the global
// file.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("conversation log dir cannot be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	s := &FileSink{cfg: cfg, files: make(map[string]*os.File)}
	if cfg.GlobalEnabled {
		if cfg.GlobalPath == "" {
			return nil, fmt.Errorf("global conversation log path cannot be empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open global conversation log: %w", err)
		}
		s.global = f
	}
	return s, nil
}

// Name implements Sink.
func (s *FileSink) Name() string { return "ndjson" }

// WriteEntry implements Sink.
func (s *FileSink) WriteEntry(_ context.Context, rec domain.EntryRecord) error {
	line, err := json.Marshal(FileEvent{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		Seq:            rec.Seq,
		Timestamp:      rec.Entry.Timestamp,
		Role:           rec.Entry.Role,
		Message:        rec.Entry.Message,
	})
	if err != nil {
		return fmt.Errorf("encode conversation event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fileFor(rec.ConversationID)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write conversation event: %w", err)
	}
	if s.global != nil {
		if _, err := s.global.Write(line); err != nil {
			return fmt.Errorf("write global conversation event: %w", err)
		}
	}
	return nil
}

func (s *FileSink) fileFor(conversationID string) (*os.File, error) {
	if f, ok := s.files[conversationID]; ok {
		return f, nil
	}
	path := s.PathFor(conversationID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open conversation log: %w", err)
	}
	s.files[conversationID] = f
	return f, nil
}

// PathFor returns the file a conversation is written to.
func (s *FileSink) PathFor(conversationID string) string {
	name := unsafeFileChars.ReplaceAllString(conversationID, "_")
	if name == "" || name == "." || name == ".." {
		name = domain.DefaultConversationID
	}
	return filepath.Join(s.cfg.Dir, name+".ndjson")
}

// Close closes every open file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(s.files, id)
	}
	if s.global != nil {
		if err := s.global.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close global log: %w", err))
		}
		s.global = nil
	}
	return errors.Join(errs...)
}
