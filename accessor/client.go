package accessor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a fresh id per call for correlating client and server logs.
const RequestIDHeader = "X-Request-ID"

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL string

	// Timeout bounds a whole call. Zero means no timeout: a call that never
	// resolves leaves its cache entry loading.
	Timeout time.Duration

	// RateLimit is the sustained requests per second. Zero disables throttling.
	RateLimit float64
	Burst     int

	// HTTPClient overrides the default client. Its Jar carries the session cookie.
	HTTPClient *http.Client

	Logger *zap.Logger
}

/*
Client is a thin typed wrapper over the HTTP API.

BEHAVIOR:
---------
- Every call returns either a decoded payload or an *AccessError
- Non-2xx responses and malformed payloads never escape as anything else
- No retries: retry policy belongs to the caller
- Owns no cache state; callers wire results into the caches
*/
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Client with a cookie jar so the session cookie set by login
// is replayed on every later call.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &AccessError{Kind: Unknown, Message: "invalid base url " + opts.BaseURL, Cause: err}
	}

	hc := opts.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, &AccessError{Kind: Unknown, Message: "cookie jar", Cause: err}
		}
		hc = &http.Client{Jar: jar, Timeout: opts.Timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:    base,
		http:    hc,
		limiter: limiter,
		logger:  logger.Named("accessor"),
	}, nil
}

// Fetch issues a GET for resourceKey and decodes the body into out.
func (c *Client) Fetch(ctx context.Context, resourceKey string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, resourceKey, params, nil, out)
}

// Mutate issues a state-changing call with an optional JSON body.
func (c *Client) Mutate(ctx context.Context, method, resourceKey string, body, out any) error {
	return c.do(ctx, method, resourceKey, nil, body, out)
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

// resolve joins an escaped resource key onto the base URL.
func (c *Client) resolve(resourceKey string, params url.Values) *url.URL {
	escaped := strings.TrimPrefix(resourceKey, "/")
	ref := &url.URL{Path: escaped}
	if p, err := url.PathUnescape(escaped); err == nil && p != escaped {
		ref.Path, ref.RawPath = p, escaped
	}
	if len(params) > 0 {
		ref.RawQuery = params.Encode()
	}
	base := *c.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref)
}

func (c *Client) do(ctx context.Context, method, resourceKey string, params url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError("rate limiter", err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &AccessError{Kind: Validation, Message: "cannot encode request", Cause: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(resourceKey, params).String(), reader)
	if err != nil {
		return &AccessError{Kind: Unknown, Message: "cannot build request", Cause: err}
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", resourceKey),
			zap.Error(err))
		return transportError("server unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError("cannot read response", err)
	}

	c.logger.Debug("request done",
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", resourceKey),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AccessError{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(payload),
		}
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return malformed(resp.StatusCode, err)
	}
	return nil
}

// errorBody is the in-band error shape used by every endpoint.
type errorBody struct {
	Error string `json:"error"`
}

func errorMessage(payload []byte) string {
	var eb errorBody
	if err := json.Unmarshal(payload, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return DefaultMessage
}
