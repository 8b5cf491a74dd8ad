package httpclient

import (
	"net/http"
	"sync"
)

// RequestMiddleware runs before a request is sent. It may modify req in place.
type RequestMiddleware func(req *http.Request)

// ResponseMiddleware runs after a 2xx response arrives. It may modify resp in place.
type ResponseMiddleware func(resp *Response)

// ErrorMiddleware runs after a non-2xx response arrives, before the error is
// returned to the caller.
type ErrorMiddleware func(err *StatusError)

// Handle removes a registered middleware. Unregister is idempotent.
type Handle struct {
	once       sync.Once
	unregister func()
}

// Unregister removes the middleware from its pipeline.
func (h *Handle) Unregister() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.unregister != nil {
			h.unregister()
		}
	})
}

// registry is an ordered, lock-protected list of middleware.
type registry[T any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []registryEntry[T]
}

type registryEntry[T any] struct {
	id uint64
	fn T
}

func (r *registry[T]) add(fn T) *Handle {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, registryEntry[T]{id: id, fn: fn})
	r.mu.Unlock()

	return &Handle{unregister: func() { r.remove(id) }}
}

func (r *registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// snapshot returns the middleware in registration order. Middleware
// registered while a pipeline runs applies from the next request on.
func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.fn
	}
	return out
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *registry[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// RegisterRequestMiddleware appends fn to the request pipeline.
func (c *Client) RegisterRequestMiddleware(fn RequestMiddleware) *Handle {
	return c.requestMiddleware.add(fn)
}

// RegisterResponseMiddleware appends fn to the response pipeline.
func (c *Client) RegisterResponseMiddleware(fn ResponseMiddleware) *Handle {
	return c.responseMiddleware.add(fn)
}

// RegisterResponseErrorMiddleware appends fn to the response-error pipeline.
func (c *Client) RegisterResponseErrorMiddleware(fn ErrorMiddleware) *Handle {
	return c.errorMiddleware.add(fn)
}

// MiddlewareCount returns the number of registered request, response and
// response-error middleware.
func (c *Client) MiddlewareCount() (request, response, responseError int) {
	return c.requestMiddleware.len(), c.responseMiddleware.len(), c.errorMiddleware.len()
}

// ResetMiddleware drops every registered middleware from all pipelines.
func (c *Client) ResetMiddleware() {
	c.requestMiddleware.reset()
	c.responseMiddleware.reset()
	c.errorMiddleware.reset()
}

func (c *Client) runRequestMiddleware(req *http.Request) {
	for _, fn := range c.requestMiddleware.snapshot() {
		fn(req)
	}
}

func (c *Client) runResponseMiddleware(resp *Response) {
	for _, fn := range c.responseMiddleware.snapshot() {
		fn(resp)
	}
}

func (c *Client) runErrorMiddleware(err *StatusError) {
	for _, fn := range c.errorMiddleware.snapshot() {
		fn(err)
	}
}
