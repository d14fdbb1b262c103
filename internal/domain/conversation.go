// Package domain contains core domain types for the tradevoice relay.
package domain

import "fmt"

// Role identifies who produced an utterance.
type Role string

const (
	// RoleUser marks speech from the human caller.
	RoleUser Role = "user"
	// RoleAssistant marks speech from the voice agent.
	RoleAssistant Role = "assistant"
)

// ParseRole validates a role string. Empty defaults to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", &ValidationError{Field: "role", Message: fmt.Sprintf("Unknown role %q", s)}
	}
}

// LogEntry is one timestamped, role-tagged utterance.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Role      Role   `json:"role"`
	Message   string `json:"message"`
}

// DefaultConversationID is used when the caller does not scope its requests.
// It reproduces a single process-wide log.
const DefaultConversationID = "default"

// EntryRecord is a log entry as handed to durable sinks: the entry plus its
// conversation, its 1-based position in that conversation, and a unique ID.
type EntryRecord struct {
	ID             string
	ConversationID string
	Seq            int
	Entry          LogEntry
}
