package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/platform"
)

// statusAndDetails maps an error from below the API layer to an HTTP status
// and the details string shown to the client. It is the only place errors
// are translated.
func statusAndDetails(err error) (int, string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message
	}

	// Platform failures carry "API Error: <status> - <message>" and take
	// precedence over the wrapper that reported them.
	var perr *platform.Error
	if errors.As(err, &perr) {
		return http.StatusInternalServerError, perr.Error()
	}

	var provErr *domain.ProvisioningError
	if errors.As(err, &provErr) {
		return http.StatusInternalServerError, provErr.Reason
	}
	var sessErr *domain.SessionError
	if errors.As(err, &sessErr) {
		return http.StatusInternalServerError, sessErr.Reason
	}
	var callErr *domain.CallError
	if errors.As(err, &callErr) && callErr.Err != nil {
		return http.StatusInternalServerError, callErr.Err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// writeError reports err. summary names the failed action for 5xx
// responses, such as "Failed to create agent".
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, summary string) {
	status, details := statusAndDetails(err)
	if status == http.StatusBadRequest {
		Error(w, status, "Invalid request", details)
		return
	}
	h.logger.Error(summary,
		"method", r.Method,
		"path", r.URL.Path,
		"status", platform.StatusCode(err),
		"error", err,
	)
	Error(w, status, summary, details)
}

// notFound answers every unmatched route and method.
func notFound(w http.ResponseWriter, r *http.Request) {
	Error(w, http.StatusNotFound, "Not Found", "Route "+r.Method+" "+r.URL.Path+" not found")
}
