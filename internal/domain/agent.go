package domain

import "encoding/json"

// Agent is the platform's record of a created agent.
type Agent struct {
	AgentID string `json:"agent_id"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (a *Agent) UnmarshalJSON(b []byte) error {
	type alias Agent
	var v alias
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = Agent(v)
	a.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (a Agent) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	type alias Agent
	return json.Marshal(alias(a))
}

// Session is a short-lived credential for a real-time client, bound to one
// agent. The relay never refreshes or revokes it.
type Session struct {
	Token string `json:"token"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed fields and keeps the original payload.
func (s *Session) UnmarshalJSON(b []byte) error {
	type alias Session
	var v alias
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Session(v)
	s.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON writes the original platform payload when one is known.
func (s Session) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type alias Session
	return json.Marshal(alias(s))
}
