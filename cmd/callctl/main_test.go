package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakePlatform struct {
	mu       sync.Mutex
	statuses []string
	polls    int
	lastBody map[string]any
	lastPath string
}

func (f *fakePlatform) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/calls/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.statuses[min(f.polls, len(f.statuses)-1)]
		f.polls++
		f.mu.Unlock()
		completed := status == "completed"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"call_id":   r.PathValue("id"),
			"status":    status,
			"completed": completed,
		})
	})
	mux.HandleFunc("POST /v1/calls", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		_ = json.Unmarshal(data, &f.lastBody)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"success","call_id":"c-new"}`)
	})
	mux.HandleFunc("GET /v1/calls", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastPath = r.URL.RequestURI()
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"total_count":1,"calls":[{"call_id":"c1"}]}`)
	})
	return mux
}

func setupEnv(t *testing.T, f *fakePlatform) string {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	t.Setenv("PLATFORM_API_KEY", "test-key")
	t.Setenv("PLATFORM_BASE_URL", srv.URL+"/v1")
	t.Setenv("PLATFORM_TIMEOUT", "5s")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("PORT", "3001")
	t.Setenv("CALL_WATCH_INTERVAL", "1ms")
	t.Setenv("CALL_WATCH_MAX_INTERVAL", "2ms")
	t.Setenv("CALL_WATCH_TIMEOUT", "5s")
	return srv.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestStatusPrintsPlatformPayload(t *testing.T) {
	f := &fakePlatform{statuses: []string{"in-progress"}}
	setupEnv(t, f)

	out, err := runCLI(t, "status", "c1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if got["call_id"] != "c1" || got["status"] != "in-progress" {
		t.Errorf("unexpected status %v", got)
	}
}

func TestWatchPrintsChangesUntilCompleted(t *testing.T) {
	f := &fakePlatform{statuses: []string{"queued", "queued", "in-progress", "completed"}}
	setupEnv(t, f)

	out, err := runCLI(t, "watch", "c1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 status lines, got %d: %q", len(lines), out)
	}
	for i, want := range []string{"queued", "in-progress", "completed"} {
		var got map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &got); err != nil {
			t.Fatalf("line %d is not JSON: %q", i, lines[i])
		}
		if got["status"] != want {
			t.Errorf("line %d: expected %s, got %v", i, want, got["status"])
		}
	}
}

func TestCallSendsOptions(t *testing.T) {
	f := &fakePlatform{}
	setupEnv(t, f)

	out, err := runCLI(t, "call", "a1", "+15550100", "--max-duration", "5", "--record=false")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, `"call_id":"c-new"`) {
		t.Errorf("unexpected output %q", out)
	}

	f.mu.Lock()
	body := f.lastBody
	f.mu.Unlock()
	if body["agent_id"] != "a1" || body["phone_number"] != "+15550100" {
		t.Errorf("unexpected body %v", body)
	}
	if body["max_duration"] != float64(5) || body["record"] != false {
		t.Errorf("expected overrides in body, got %v", body)
	}
}

func TestListFiltersByAgent(t *testing.T) {
	f := &fakePlatform{}
	setupEnv(t, f)

	if _, err := runCLI(t, "list", "--agent", "a1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPath != "/v1/calls?agent_id=a1" {
		t.Errorf("unexpected request %q", f.lastPath)
	}
}

func TestUsageErrors(t *testing.T) {
	f := &fakePlatform{}
	setupEnv(t, f)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"hangup", "c1"}},
		{name: "status without id", args: []string{"status"}},
		{name: "call missing phone", args: []string{"call", "a1"}},
		{name: "list with argument", args: []string{"list", "a1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			var ue *usageError
			if !errors.As(err, &ue) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}
}
