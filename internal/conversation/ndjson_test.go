package conversation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
)

func TestFileSinkWritesPerConversationNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sink, err := NewFileSink(FileSinkConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}
	d := NewDispatcher(16, nil, sink)
	defer func() { _ = d.Close() }()

	log := NewRegistry(WithSink(d)).Get(context.Background(), "conv-1")
	log.Append(domain.RoleUser, "buy two ETH")

	line := waitForLogLine(t, filepath.Join(dir, "conv-1.ndjson"))
	var got FileEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Message != "buy two ETH" || got.Role != domain.RoleUser {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Seq != 1 || got.ConversationID != "conv-1" || got.ID == "" {
		t.Fatalf("unexpected event metadata %+v", got)
	}
}

func TestFileSinkGlobalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "all.ndjson")
	sink, err := NewFileSink(FileSinkConfig{Dir: dir, GlobalEnabled: true, GlobalPath: global})
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		rec := domain.EntryRecord{ID: id, ConversationID: id, Seq: 1, Entry: domain.LogEntry{Role: domain.RoleUser, Message: id}}
		if err := sink.WriteEntry(ctx, rec); err != nil {
			t.Fatalf("WriteEntry failed: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(global)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 global lines, got %d", len(lines))
	}
}

func TestFileSinkPathSanitizesIDs(t *testing.T) {
	t.Parallel()

	sink, err := NewFileSink(FileSinkConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sink.Close() }()

	path := sink.PathFor("../../etc/passwd")
	if filepath.Dir(path) != sink.cfg.Dir {
		t.Fatalf("path escaped log dir: %s", path)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
