package domain

import (
	"encoding/json"
	"time"
)

// Call is the platform's record of an outbound phone call. Only the fields
// the relay reasons about are typed; the full payload is kept and written
// back unchanged when the call is marshaled.
type Call struct {
	CallID                 string           `json:"call_id"`
	AgentID                string           `json:"agent_id,omitempty"`
	To                     string           `json:"to,omitempty"`
	Status                 string           `json:"status,omitempty"`
	Completed              bool             `json:"completed"`
	CallLength             float64          `json:"call_length,omitempty"`
	Transcripts            []TranscriptTurn `json:"transcripts,omitempty"`
	ConcatenatedTranscript string           `json:"concatenated_transcript,omitempty"`
	Summary                string           `json:"summary,omitempty"`

	raw json.RawMessage
}

// TranscriptTurn is a single per-turn record of a finished call.
type TranscriptTurn struct {
	ID        int64  `json:"id,omitempty"`
	User      string `json:"user"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (c *Call) UnmarshalJSON(b []byte) error {
	type alias Call
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Call(a)
	c.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (c Call) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type alias Call
	return json.Marshal(alias(c))
}

// Raw returns the payload the call was decoded from, if any.
func (c Call) Raw() json.RawMessage { return c.raw }

// CallStatus is a point-in-time status snapshot of an in-flight call.
type CallStatus struct {
	CallID    string `json:"call_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Completed bool   `json:"completed,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (s *CallStatus) UnmarshalJSON(b []byte) error {
	type alias CallStatus
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*s = CallStatus(a)
	s.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (s CallStatus) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type alias CallStatus
	return json.Marshal(alias(s))
}

// IsTerminal reports whether no further status changes are expected.
func (s CallStatus) IsTerminal() bool {
	return s.Completed || s.Status == CallStatusCompleted
}

// Observed platform status values.
const (
	CallStatusQueued     = "queued"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
)

// CallInitiation is the platform's answer to a call request.
type CallInitiation struct {
	Status  string `json:"status,omitempty"`
	CallID  string `json:"call_id"`
	Message string `json:"message,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (c *CallInitiation) UnmarshalJSON(b []byte) error {
	type alias CallInitiation
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = CallInitiation(a)
	c.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (c CallInitiation) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type alias CallInitiation
	return json.Marshal(alias(c))
}

// CallList is the platform's list of calls. Order is whatever the platform
// returned.
type CallList struct {
	TotalCount int    `json:"total_count,omitempty"`
	Calls      []Call `json:"calls"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (l *CallList) UnmarshalJSON(b []byte) error {
	type alias CallList
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*l = CallList(a)
	l.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (l CallList) MarshalJSON() ([]byte, error) {
	if len(l.raw) > 0 {
		return l.raw, nil
	}
	type alias CallList
	return json.Marshal(alias(l))
}

// TranscriptSummary is the narrowed view of a call's outcome. Fields the
// platform omitted are zero valued, never nil.
type TranscriptSummary struct {
	Transcript             []TranscriptTurn `json:"transcript"`
	ConcatenatedTranscript string           `json:"concatenated_transcript"`
	Summary                string           `json:"summary"`
	CallID                 string           `json:"call_id"`
	CallLength             float64          `json:"call_length"`
	Completed              bool             `json:"completed"`
}

// CallSummary is the summary-only view of a call.
type CallSummary struct {
	CallID     string  `json:"call_id"`
	Summary    string  `json:"summary"`
	CallLength float64 `json:"call_length"`
	Completed  bool    `json:"completed"`
}

// CallOptions tunes an outbound call. Nil pointers select the defaults.
type CallOptions struct {
	MaxDuration *int
	Record      *bool
	// Extra fields are passed through to the platform request. They never
	// override phone_number, agent_id, max_duration or record.
	Extra map[string]any
}

// Call defaults.
const (
	DefaultMaxDurationMinutes = 30
	DefaultRecord             = true
)

// EffectiveMaxDuration returns the requested duration or the default.
func (o CallOptions) EffectiveMaxDuration() int {
	if o.MaxDuration != nil && *o.MaxDuration > 0 {
		return *o.MaxDuration
	}
	return DefaultMaxDurationMinutes
}

// EffectiveRecord returns the requested record flag or the default.
func (o CallOptions) EffectiveRecord() bool {
	if o.Record != nil {
		return *o.Record
	}
	return DefaultRecord
}

// CachedCall is the most recently fetched snapshot of a call, as kept by
// the local cache. Payload is the platform JSON it was decoded from.
type CachedCall struct {
	CallID    string          `json:"call_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Completed bool            `json:"completed"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}
