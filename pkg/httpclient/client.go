// Package httpclient wraps outbound REST calls for the store layer.
//
// GET requests consult a cache ledger: a repeat GET of the same endpoint
// inside the ledger's freshness window is not sent and returns ErrCacheFresh.
// Three ordered middleware pipelines (request, response, response-error) let
// other components observe or adjust traffic without wrapping the client.
package httpclient

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
	"time"

	"github.com/servkit/restsync/pkg/ledger"
	"github.com/servkit/restsync/pkg/logging"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for a JSON REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	ledger     *ledger.Ledger
	saver      Saver
	log        *slog.Logger

	requestMiddleware  registry[RequestMiddleware]
	responseMiddleware registry[ResponseMiddleware]
	errorMiddleware    registry[ErrorMiddleware]
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLedger sets the cache ledger used to suppress repeat GETs.
func WithLedger(l *ledger.Ledger) Option {
	return func(c *Client) {
		c.ledger = l
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// WithSaver sets where Download writes files.
func WithSaver(s Saver) Option {
	return func(c *Client) {
		c.saver = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// New creates a client for baseURL. Without WithLedger the client gets an
// in-memory ledger with the default duration.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: http.Header{
			"Accept":       []string{"application/json"},
			"Content-Type": []string{"application/json"},
		},
		saver: DirSaver{Dir: "."},
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ledger == nil {
		c.ledger = ledger.New(ledger.WithLogger(c.log))
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ledger returns the cache ledger.
func (c *Client) Ledger() *ledger.Ledger {
	return c.ledger
}

// CacheDuration returns the ledger freshness window.
func (c *Client) CacheDuration() time.Duration {
	return c.ledger.Duration()
}

// SetCacheDuration changes the ledger freshness window.
func (c *Client) SetCacheDuration(d time.Duration) {
	c.ledger.SetDuration(d)
}

// RequestOption customises a single request. Passing any option to Get
// bypasses the cache ledger for that call, both for lookup and for update.
type RequestOption func(*requestConfig)

type requestConfig struct {
	query   url.Values
	headers http.Header
	binary  bool
}

// Query adds query parameters to the request.
func Query(values url.Values) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = url.Values{}
		}
		for k, vs := range values {
			for _, v := range vs {
				rc.query.Add(k, v)
			}
		}
	}
}

// Header sets a header on the request.
func Header(key, value string) RequestOption {
	return func(rc *requestConfig) {
		if rc.headers == nil {
			rc.headers = http.Header{}
		}
		rc.headers.Set(key, value)
	}
}

// Get sends a GET to endpoint. When no options are given and the ledger has
// a fresh entry for endpoint, nothing is sent and ErrCacheFresh is returned.
// A successful uncached-by-options GET records the time it was issued.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error) {
	cacheable := len(opts) == 0
	if cacheable && c.ledger.Fresh(endpoint) {
		c.log.Debug("skipping fresh GET", "endpoint", endpoint)
		return nil, ErrCacheFresh
	}

	issuedAt := c.ledger.Now()
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, opts)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.ledger.TouchAt(endpoint, issuedAt)
	}
	return resp, nil
}

// Post sends data as JSON to endpoint. It is never cached.
func (c *Client) Post(ctx context.Context, endpoint string, data any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, data, opts)
}

// Delete sends a DELETE to endpoint. It is never cached.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, opts)
}

// resolve turns endpoint into an absolute URL. Absolute endpoints are used as is.
func (c *Client) resolve(endpoint string, query url.Values) (string, error) {
	var raw string
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		raw = endpoint
	} else {
		raw = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	if len(query) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, data any, opts []RequestOption) (*Response, error) {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	target, err := c.resolve(endpoint, rc.query)
	if err != nil {
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}

	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range rc.headers {
		req.Header[k] = append([]string(nil), vs...)
	}

	c.runRequestMiddleware(req)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
		Request:    req,
		Endpoint:   endpoint,
		Binary:     rc.binary,
	}
	c.log.Debug("request completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Response: resp}
		c.runErrorMiddleware(se)
		return nil, se
	}

	c.runResponseMiddleware(resp)
	return resp, nil
}
