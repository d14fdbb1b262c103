package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a failed platform call: either the transport failed (StatusCode
// is zero and Err is set) or the platform answered with a non-2xx status.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API Error: %d - %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the platform HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// errorMessage extracts the platform's human readable reason from an error
// body. Bland-style APIs use "message"; some endpoints use "error" or an
// "errors" list.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Errors  []any           `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		var s string
		if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &s) == nil && s != "" {
			return s
		}
		if len(payload.Errors) > 0 {
			parts := make([]string, 0, len(payload.Errors))
			for _, e := range payload.Errors {
				parts = append(parts, fmt.Sprint(e))
			}
			return strings.Join(parts, "; ")
		}
	}
	return "Unknown error"
}
