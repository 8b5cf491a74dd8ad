package httpclient

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID sets a random X-Request-ID on requests that do not carry one.
func RequestID() RequestMiddleware {
	return func(req *http.Request) {
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
	}
}

// BearerToken sets "Authorization: Bearer <token>" using the current value
// of token, so the credential can change between requests.
func BearerToken(token func() string) RequestMiddleware {
	return func(req *http.Request) {
		if t := token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}
}

// RateLimit blocks each request until limiter admits it or the request
// context ends. A cancelled wait is left for the transport to report.
func RateLimit(limiter *rate.Limiter) RequestMiddleware {
	return func(req *http.Request) {
		_ = limiter.Wait(req.Context())
	}
}

// RequestLogger logs every outbound request at debug level.
func RequestLogger(logger *slog.Logger) RequestMiddleware {
	return func(req *http.Request) {
		logger.Debug("sending request",
			"method", req.Method,
			"url", req.URL.String(),
			"requestId", req.Header.Get(RequestIDHeader),
		)
	}
}

// ResponseLogger logs every successful response at debug level.
func ResponseLogger(logger *slog.Logger) ResponseMiddleware {
	return func(resp *Response) {
		logger.Debug("received response",
			"endpoint", resp.Endpoint,
			"status", resp.StatusCode,
			"bytes", len(resp.Body),
		)
	}
}

// ValidationErrors collects field errors from 422 responses shaped as
// {"errors": {"field": ["message", ...]}} so forms can display them.
// The collected set is cleared by the next successful response.
type ValidationErrors struct {
	mu     sync.RWMutex
	errors map[string][]string
}

// NewValidationErrors creates an empty collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{errors: make(map[string][]string)}
}

// Install registers the collector on c and returns both handles.
func (v *ValidationErrors) Install(c *Client) (onError, onSuccess *Handle) {
	return c.RegisterResponseErrorMiddleware(v.collect), c.RegisterResponseMiddleware(v.clear)
}

func (v *ValidationErrors) collect(err *StatusError) {
	if err.StatusCode() != http.StatusUnprocessableEntity {
		return
	}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if json.Unmarshal(err.Response.Body, &body) != nil || body.Errors == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errors = body.Errors
}

func (v *ValidationErrors) clear(*Response) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.errors) > 0 {
		v.errors = make(map[string][]string)
	}
}

// Get returns the messages for field.
func (v *ValidationErrors) Get(field string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.errors[field]...)
}

// Fields returns the fields with errors, sorted.
func (v *ValidationErrors) Fields() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.errors))
	for f := range v.errors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether no errors are held.
func (v *ValidationErrors) Empty() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.errors) == 0
}
