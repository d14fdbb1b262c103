package domain

import "fmt"

// ValidationError reports missing or malformed input caught before any
// platform call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Required returns a ValidationError for a missing field.
func Required(field, label string) *ValidationError {
	return &ValidationError{Field: field, Message: label + " is required"}
}

// ProvisioningError reports a failed or unusable agent creation.
type ProvisioningError struct {
	Reason string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent provisioning failed: %v", e.Err)
	}
	return "agent provisioning failed: " + e.Reason
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// SessionError reports a failed or unusable session authorization.
type SessionError struct {
	AgentID string
	Reason  string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session for agent %s failed: %v", e.AgentID, e.Err)
	}
	return fmt.Sprintf("session for agent %s failed: %s", e.AgentID, e.Reason)
}

func (e *SessionError) Unwrap() error { return e.Err }

// CallError wraps a failed call lifecycle operation.
type CallError struct {
	Op     string
	CallID string
	Err    error
}

func (e *CallError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("%s call %s: %v", e.Op, e.CallID, e.Err)
	}
	return fmt.Sprintf("%s call: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
