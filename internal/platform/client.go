// Package platform is the HTTP client for the third-party voice-agent
// platform. It holds the credential context (API key and base URL) for the
// process lifetime and exposes one method per platform endpoint the relay
// uses. Nothing here retries.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ashureev/tradevoice/internal/domain"
	"github.com/ashureev/tradevoice/internal/persona"
)

// DefaultBaseURL is the Bland v1 API.
const DefaultBaseURL = "https://api.bland.ai/v1"

// maxResponseBody caps successful response bodies.
const maxResponseBody = 8 << 20

// Credentials is the platform API key and base URL. An empty key is not
// rejected here; the platform answers 401 on first use.
type Credentials struct {
	APIKey  string
	BaseURL string
}

// Client calls the voice-agent platform.
type Client struct {
	creds   Credentials
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a platform client. A nil httpClient selects
// NewHTTPClient(0, "tradevoice").
func NewClient(creds Credentials, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if creds.BaseURL == "" {
		creds.BaseURL = DefaultBaseURL
	}
	baseURL := strings.TrimRight(creds.BaseURL, "/")
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse platform base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("platform base url %q must be absolute", creds.BaseURL)
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(0, "tradevoice")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{creds: creds, baseURL: baseURL, http: httpClient, logger: logger}, nil
}

// CreateAgent registers a web agent. The returned agent may have an empty
// AgentID if the platform omitted it; callers decide whether that is fatal.
func (c *Client) CreateAgent(ctx context.Context, req persona.AgentRequest) (*domain.Agent, error) {
	var resp struct {
		Agent *domain.Agent `json:"agent"`
	}
	if err := c.do(ctx, "create agent", http.MethodPost, "/agents", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Agent == nil {
		return &domain.Agent{}, nil
	}
	return resp.Agent, nil
}

// AuthorizeAgent exchanges an agent ID for a single-use session token.
func (c *Client) AuthorizeAgent(ctx context.Context, agentID string) (*domain.Session, error) {
	var session domain.Session
	path := "/agents/" + url.PathEscape(agentID) + "/authorize"
	if err := c.do(ctx, "authorize agent", http.MethodPost, path, nil, struct{}{}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// StartWebSession opens a platform-side web session for an agent.
func (c *Client) StartWebSession(ctx context.Context, agentID string, options map[string]any) (json.RawMessage, error) {
	if options == nil {
		options = map[string]any{}
	}
	var raw json.RawMessage
	path := "/agents/" + url.PathEscape(agentID) + "/sessions"
	if err := c.do(ctx, "start web session", http.MethodPost, path, nil, options, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CreateCall places an outbound call. body is sent as-is.
func (c *Client) CreateCall(ctx context.Context, body map[string]any) (*domain.CallInitiation, error) {
	var resp domain.CallInitiation
	if err := c.do(ctx, "create call", http.MethodPost, "/calls", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCall fetches the full call record, including transcript and summary
// once the call has completed.
func (c *Client) GetCall(ctx context.Context, callID string) (*domain.Call, error) {
	var call domain.Call
	if err := c.do(ctx, "get call", http.MethodGet, "/calls/"+url.PathEscape(callID), nil, nil, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// GetCallStatus fetches a status snapshot of a call.
func (c *Client) GetCallStatus(ctx context.Context, callID string) (*domain.CallStatus, error) {
	var status domain.CallStatus
	path := "/calls/" + url.PathEscape(callID) + "/status"
	if err := c.do(ctx, "get call status", http.MethodGet, path, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListCalls lists calls, optionally restricted to one agent.
func (c *Client) ListCalls(ctx context.Context, agentID string) (*domain.CallList, error) {
	var query url.Values
	if agentID != "" {
		query = url.Values{"agent_id": {agentID}}
	}
	var list domain.CallList
	if err := c.do(ctx, "list calls", http.MethodGet, "/calls", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("platform request", "op", op, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, readErr := readBody(resp.Body, maxErrorBody)
		msg := "Unknown error"
		if readErr == nil {
			msg = errorMessage(data)
		}
		c.logger.Warn("platform request failed",
			"op", op,
			"status", resp.StatusCode,
			"message", msg,
		)
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	data, err := readBody(resp.Body, maxResponseBody)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Op: op, Err: fmt.Errorf("invalid response from platform: no data received")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
