package api

import (
	"fmt"
	"math"
	"net/http"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/go-chi/chi/v5"
)

// DataResponse wraps successful call lookups.
type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// InitiateCall places an outbound call with the agent in the path. Body:
// phone_number (required), max_duration, record and any extra platform
// fields.
func (h *Handler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	body := map[string]any{}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, &domain.ValidationError{Field: "body", Message: "Invalid JSON body"}, "Failed to initiate call")
		return
	}
	phone, opts, err := callOptionsFromBody(body)
	if err != nil {
		h.writeError(w, r, err, "Failed to initiate call")
		return
	}

	started, err := h.calls.Initiate(r.Context(), agentID, phone, opts)
	if err != nil {
		h.writeError(w, r, err, "Failed to initiate call")
		return
	}
	JSON(w, http.StatusOK, DataResponse{
		Success: true,
		Message: "Call initiated successfully",
		Data:    started,
	})
}

// maxCallDurationMinutes caps max_duration at one day.
const maxCallDurationMinutes = 24 * 60

// callOptionsFromBody splits the request body into the phone number, the
// typed options and the pass-through extras. Values of the wrong type are
// treated as absent. A max_duration that is not a whole number of minutes
// in (0, maxCallDurationMinutes] is rejected; zero or negative selects the
// default.
func callOptionsFromBody(body map[string]any) (string, domain.CallOptions, error) {
	phone, _ := body["phone_number"].(string)

	var opts domain.CallOptions
	if v, ok := body["max_duration"].(float64); ok && v > 0 {
		if v != math.Trunc(v) || v > maxCallDurationMinutes {
			return "", opts, &domain.ValidationError{
				Field:   "max_duration",
				Message: fmt.Sprintf("max_duration must be a whole number of minutes up to %d", maxCallDurationMinutes),
			}
		}
		d := int(v)
		opts.MaxDuration = &d
	}
	if v, ok := body["record"].(bool); ok {
		opts.Record = &v
	}

	extra := make(map[string]any, len(body))
	for k, v := range body {
		switch k {
		case "phone_number", "agent_id", "max_duration", "record":
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		opts.Extra = extra
	}
	return phone, opts, nil
}

// ListCalls lists calls, optionally filtered by ?agent_id=.
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	list, err := h.calls.ListCalls(r.Context(), r.URL.Query().Get("agent_id"))
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve calls")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: list})
}

// GetCall returns the full call record.
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	call, err := h.calls.GetCallDetails(r.Context(), callID)
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve call details")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: call})
}

// GetTranscript returns the transcript and summary of a call.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	ts, err := h.calls.GetTranscriptAndSummary(r.Context(), callID)
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve transcript")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: ts})
}

// GetSummary returns only the summary of a call.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	sum, err := h.calls.GetSummary(r.Context(), callID)
	if err != nil {
		h.writeError(w, r, err, "Failed to retrieve summary")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: sum})
}

// GetCallStatus returns one status snapshot of a call.
func (h *Handler) GetCallStatus(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	status, err := h.calls.GetStatus(r.Context(), callID)
	if err != nil {
		h.writeError(w, r, err, "Failed to get call status")
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: status})
}

// GetCachedCall returns the last snapshot fetched for a call without
// contacting the platform.
func (h *Handler) GetCachedCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := h.callID(w, r)
	if !ok {
		return
	}
	snap, err := h.calls.Cached(r.Context(), callID)
	if err != nil {
		h.writeError(w, r, err, "Failed to read cached call")
		return
	}
	if snap == nil {
		Error(w, http.StatusNotFound, "Not Found", "No cached snapshot for call "+callID)
		return
	}
	JSON(w, http.StatusOK, DataResponse{Success: true, Data: snap})
}

func (h *Handler) callID(w http.ResponseWriter, r *http.Request) (string, bool) {
	callID := chi.URLParam(r, "callId")
	if callID == "" {
		h.missingCallID(w, r)
		return "", false
	}
	return callID, true
}

func (h *Handler) missingCallID(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, domain.Required("call_id", "Call ID"), "")
}
