package platform

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Transport defaults for outbound platform calls. They bound connection
// setup only; request duration is bounded by the caller's context and the
// optional client timeout.
const (
	DefaultDialTimeout         = 10 * time.Second
	DefaultKeepAlive           = 30 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 5

	// maxErrorBody caps how much of a failed response is read for messages.
	maxErrorBody = 64 << 10
)

// NewTransport creates an http.Transport with explicit dial and TLS timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		ForceAttemptHTTP2:   true,
	}
}

// NewHTTPClient builds the client used for platform calls. A zero timeout
// leaves requests unbounded apart from the caller's context.
func NewHTTPClient(timeout time.Duration, userAgent string) *http.Client {
	var rt http.RoundTripper = NewTransport()
	if userAgent != "" {
		rt = &userAgentTransport{base: rt, ua: userAgent}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

// userAgentTransport injects the User-Agent header unless one is set.
type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// Clone the request to avoid mutating the original, per RoundTripper contract.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

// drainAndClose reads up to limit bytes from rc and closes it so the
// connection returns to the pool.
func drainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	_ = rc.Close()
}

// readBody reads at most limit bytes and drains the rest.
func readBody(rc io.ReadCloser, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	drainAndClose(rc, 1024)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
