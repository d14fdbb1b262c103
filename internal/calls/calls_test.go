package calls

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/store"
)

type fakePlatform struct {
	callJSON   string
	statusJSON string
	listJSON   string
	err        error

	created    []map[string]any
	statusHits int
	listAgent  string
}

func (f *fakePlatform) CreateCall(_ context.Context, body map[string]any) (*domain.CallInitiation, error) {
	f.created = append(f.created, body)
	if f.err != nil {
		return nil, f.err
	}
	var out domain.CallInitiation
	err := json.Unmarshal([]byte(`{"status":"success","call_id":"call-1"}`), &out)
	return &out, err
}

func (f *fakePlatform) GetCall(_ context.Context, _ string) (*domain.Call, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out domain.Call
	err := json.Unmarshal([]byte(f.callJSON), &out)
	return &out, err
}

func (f *fakePlatform) GetCallStatus(_ context.Context, _ string) (*domain.CallStatus, error) {
	f.statusHits++
	if f.err != nil {
		return nil, f.err
	}
	var out domain.CallStatus
	err := json.Unmarshal([]byte(f.statusJSON), &out)
	return &out, err
}

func (f *fakePlatform) ListCalls(_ context.Context, agentID string) (*domain.CallList, error) {
	f.listAgent = agentID
	if f.err != nil {
		return nil, f.err
	}
	var out domain.CallList
	err := json.Unmarshal([]byte(f.listJSON), &out)
	return &out, err
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestInitiateRequiresPhoneNumber(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	m := NewManager(p, nil, nil)

	_, err := m.Initiate(context.Background(), "a1", "", domain.CallOptions{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "phone_number" {
		t.Fatalf("expected phone_number ValidationError, got %v", err)
	}
	if len(p.created) != 0 {
		t.Fatalf("expected zero platform calls, got %d", len(p.created))
	}
}

func TestInitiateDefaults(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	m := NewManager(p, nil, nil)

	got, err := m.Initiate(context.Background(), "a1", "+15550100", domain.CallOptions{})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if got.CallID != "call-1" {
		t.Errorf("unexpected call id %q", got.CallID)
	}

	body := p.created[0]
	if body["max_duration"] != 30 || body["record"] != true {
		t.Errorf("expected max_duration 30 and record true, got %v", body)
	}
	if body["phone_number"] != "+15550100" || body["agent_id"] != "a1" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestInitiateRespectsOverrides(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{}
	m := NewManager(p, nil, nil)

	opts := domain.CallOptions{
		MaxDuration: intPtr(5),
		Record:      boolPtr(false),
		Extra: map[string]any{
			"voice":        "maya",
			"phone_number": "+10000000000",
			"record":       true,
		},
	}
	if _, err := m.Initiate(context.Background(), "a1", "+15550100", opts); err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	body := p.created[0]
	if body["max_duration"] != 5 {
		t.Errorf("expected max_duration 5, got %v", body["max_duration"])
	}
	if body["record"] != false {
		t.Errorf("expected explicit record false to be respected, got %v", body["record"])
	}
	if body["phone_number"] != "+15550100" {
		t.Errorf("extras must not override phone_number, got %v", body["phone_number"])
	}
	if body["voice"] != "maya" {
		t.Errorf("expected extra field passed through, got %v", body["voice"])
	}
}

func TestInitiateWrapsPlatformError(t *testing.T) {
	t.Parallel()

	cause := errors.New("API Error: 400 - invalid phone number")
	m := NewManager(&fakePlatform{err: cause}, nil, nil)

	_, err := m.Initiate(context.Background(), "a1", "+15550100", domain.CallOptions{})
	var cerr *domain.CallError
	if !errors.As(err, &cerr) || cerr.Op != "initiate" {
		t.Fatalf("expected CallError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
}

func TestTranscriptDefaults(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{callJSON: `{"call_id":"call-1","completed":false}`}
	m := NewManager(p, nil, nil)

	ts, err := m.GetTranscriptAndSummary(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetTranscriptAndSummary failed: %v", err)
	}
	if ts.Summary != "" || ts.ConcatenatedTranscript != "" {
		t.Errorf("expected empty strings, got %+v", ts)
	}
	if ts.Transcript == nil || len(ts.Transcript) != 0 {
		t.Errorf("expected empty non-nil transcript, got %#v", ts.Transcript)
	}

	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"transcript":[],"concatenated_transcript":"","summary":"","call_id":"call-1","call_length":0,"completed":false}`
	if string(out) != want {
		t.Errorf("unexpected json\n got: %s\nwant: %s", out, want)
	}
}

func TestTranscriptAndSummary(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{callJSON: `{
		"call_id": "call-1",
		"completed": true,
		"call_length": 1.5,
		"summary": "User ordered 2 ETH at 3000 USDT.",
		"concatenated_transcript": "assistant: Hello! user: hi",
		"transcripts": [
			{"id": 1, "user": "assistant", "text": "Hello!"},
			{"id": 2, "user": "user", "text": "hi"}
		]
	}`}
	m := NewManager(p, nil, nil)

	ts, err := m.GetTranscriptAndSummary(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetTranscriptAndSummary failed: %v", err)
	}
	if len(ts.Transcript) != 2 || ts.Transcript[1].Text != "hi" {
		t.Errorf("unexpected transcript %+v", ts.Transcript)
	}

	sum, err := m.GetSummary(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	want := domain.CallSummary{CallID: "call-1", Summary: "User ordered 2 ETH at 3000 USDT.", CallLength: 1.5, Completed: true}
	if *sum != want {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestGetStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{statusJSON: `{"call_id":"call-1","status":"in-progress","queue_position":0}`}
	m := NewManager(p, nil, nil)
	ctx := context.Background()

	first, err := m.GetStatus(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	second, err := m.GetStatus(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ: %+v vs %+v", first, second)
	}
	if p.statusHits != 2 {
		t.Errorf("expected exactly one platform request per call, got %d", p.statusHits)
	}
}

func TestSnapshotsAreCached(t *testing.T) {
	t.Parallel()

	cache := store.NewMemory()
	p := &fakePlatform{
		statusJSON: `{"call_id":"call-1","status":"completed","completed":true}`,
	}
	m := NewManager(p, cache, nil)
	ctx := context.Background()

	if _, err := m.Initiate(ctx, "a1", "+15550100", domain.CallOptions{}); err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if _, err := m.GetStatus(ctx, "call-1"); err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}

	snap, err := m.Cached(ctx, "call-1")
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected cached snapshot")
	}
	if snap.Status != "completed" || !snap.Completed || snap.AgentID != "a1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if string(snap.Payload) != p.statusJSON {
		t.Errorf("expected platform payload, got %s", snap.Payload)
	}

	none, err := m.Cached(ctx, "call-2")
	if err != nil || none != nil {
		t.Errorf("expected nil for unknown call, got %+v, %v", none, err)
	}
}

func TestListCallsPassesFilter(t *testing.T) {
	t.Parallel()

	p := &fakePlatform{listJSON: `{"total_count":2,"calls":[{"call_id":"b"},{"call_id":"a"}]}`}
	m := NewManager(p, nil, nil)

	list, err := m.ListCalls(context.Background(), "a1")
	if err != nil {
		t.Fatalf("ListCalls failed: %v", err)
	}
	if p.listAgent != "a1" {
		t.Errorf("expected agent filter a1, got %q", p.listAgent)
	}
	if len(list.Calls) != 2 || list.Calls[0].CallID != "b" {
		t.Errorf("expected platform order preserved, got %+v", list.Calls)
	}
}
