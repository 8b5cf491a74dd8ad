package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/servkit/restsync/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingServer answers every request with body and counts hits per path.
func countingServer(t *testing.T, status int, body any) (*httptest.Server, *sync.Map) {
	t.Helper()
	hits := &sync.Map{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int64))
		n.(*atomic.Int64).Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, hits
}

func hitCount(hits *sync.Map, path string) int64 {
	n, ok := hits.Load(path)
	if !ok {
		return 0
	}
	return n.(*atomic.Int64).Load()
}

func newClockedClient(t *testing.T, baseURL string) (*Client, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	l := ledger.New(ledger.WithClock(clock.Now))
	return New(baseURL, WithLedger(l)), clock
}

// --- Construction ---

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New("http://localhost:8000/api/")
	assert.Equal(t, "http://localhost:8000/api", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, ledger.DefaultDuration, c.CacheDuration())
	assert.Equal(t, "application/json", c.headers.Get("Accept"))
	assert.Equal(t, "application/json", c.headers.Get("Content-Type"))
}

func TestNew_Options(t *testing.T) {
	t.Parallel()

	hc := &http.Client{}
	c := New("http://x", WithHTTPClient(hc), WithTimeout(5*time.Second), WithHeader("X-App", "restsync"))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, 5*time.Second, hc.Timeout)
	assert.Equal(t, "restsync", c.headers.Get("X-App"))

	c.SetCacheDuration(time.Minute)
	assert.Equal(t, time.Minute, c.CacheDuration())
}

// --- Cache ledger ---

func TestGet_SuppressesFreshRepeat(t *testing.T) {
	t.Parallel()

	ts, hits := countingServer(t, http.StatusOK, map[string]any{"users": []any{}})
	c, clock := newClockedClient(t, ts.URL)
	ctx := context.Background()

	resp, err := c.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	before, ok := c.Ledger().Get("users")
	require.True(t, ok)

	clock.Advance(9 * time.Second)
	resp, err = c.Get(ctx, "users")
	assert.ErrorIs(t, err, ErrCacheFresh)
	assert.Nil(t, resp)
	assert.Equal(t, int64(1), hitCount(hits, "/users"))

	after, _ := c.Ledger().Get("users")
	assert.Equal(t, before, after, "suppressed GET must not touch the ledger")
}

func TestGet_RefetchesAfterDuration(t *testing.T) {
	t.Parallel()

	ts, hits := countingServer(t, http.StatusOK, map[string]any{})
	c, clock := newClockedClient(t, ts.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, "users")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = c.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hitCount(hits, "/users"))

	ts1, _ := c.Ledger().Get("users")
	assert.Equal(t, clock.Now().Unix(), ts1)
}

func TestGet_OptionsBypassLedger(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	c, _ := newClockedClient(t, ts.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, "users", Query(url.Values{"page": {"2"}}))
	require.NoError(t, err)
	assert.Equal(t, "page=2", gotQuery.Load())
	assert.Equal(t, 0, c.Ledger().Len(), "GET with options must not create a ledger entry")

	_, err = c.Get(ctx, "users")
	require.NoError(t, err)
	_, err = c.Get(ctx, "users", Header("X-Force", "1"))
	assert.NoError(t, err, "options skip the freshness check")
}

func TestGet_FailureDoesNotUpdateLedger(t *testing.T) {
	t.Parallel()

	ts, hits := countingServer(t, http.StatusInternalServerError, map[string]string{"error": "boom"})
	c, _ := newClockedClient(t, ts.URL)
	ctx := context.Background()

	_, err := c.Get(ctx, "users")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode())
	assert.Equal(t, 0, c.Ledger().Len())

	_, err = c.Get(ctx, "users")
	require.Error(t, err)
	assert.Equal(t, int64(2), hitCount(hits, "/users"), "a GET after a failure is not suppressed")
}

// --- Post / Delete ---

func TestPostAndDelete_PassThrough(t *testing.T) {
	t.Parallel()

	type seen struct {
		method string
		path   string
		body   string
		ctype  string
	}
	var mu sync.Mutex
	var calls []seen
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, seen{r.Method, r.URL.Path, string(b), r.Header.Get("Content-Type")})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"name":"Ann"}`))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	ctx := context.Background()

	resp, err := c.Post(ctx, "users", map[string]string{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, resp.Decode(&created))
	assert.Equal(t, 1, created.ID)

	_, err = c.Post(ctx, "users", map[string]string{"name": "Ann"})
	require.NoError(t, err, "POST is never suppressed")

	_, err = c.Delete(ctx, "/users/1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.Equal(t, seen{http.MethodPost, "/users", `{"name":"Ann"}`, "application/json"}, calls[0])
	assert.Equal(t, http.MethodDelete, calls[2].method)
	assert.Equal(t, "/users/1", calls[2].path)
	assert.Equal(t, 0, c.Ledger().Len())
}

func TestPost_UnencodableBody(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1")
	_, err := c.Post(context.Background(), "users", map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode request body")
}

// --- Middleware ---

func TestMiddleware_RunInRegistrationOrder(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen", r.Header.Get("X-Order"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	var order []string
	c.RegisterRequestMiddleware(func(req *http.Request) {
		order = append(order, "req1")
		req.Header.Set("X-Order", "1")
	})
	c.RegisterRequestMiddleware(func(req *http.Request) {
		order = append(order, "req2")
		req.Header.Set("X-Order", req.Header.Get("X-Order")+",2")
	})
	c.RegisterResponseMiddleware(func(resp *Response) {
		order = append(order, "resp1")
		resp.Header.Set("X-Touched", "yes")
	})
	c.RegisterResponseMiddleware(func(resp *Response) {
		order = append(order, "resp2:"+resp.Header.Get("X-Touched"))
	})
	c.RegisterResponseErrorMiddleware(func(*StatusError) {
		order = append(order, "error")
	})

	resp, err := c.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "1,2", resp.Header.Get("X-Seen"))
	assert.Equal(t, []string{"req1", "req2", "resp1", "resp2:yes"}, order)
}

func TestMiddleware_ErrorPipelineOnlyWithResponse(t *testing.T) {
	t.Parallel()

	ts, _ := countingServer(t, http.StatusUnprocessableEntity, map[string]any{"errors": map[string][]string{"name": {"required"}}})
	c := New(ts.URL)

	var errorCalls, responseCalls int
	c.RegisterResponseErrorMiddleware(func(err *StatusError) {
		errorCalls++
		assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode())
	})
	c.RegisterResponseMiddleware(func(*Response) { responseCalls++ })

	_, err := c.Post(context.Background(), "users", map[string]string{})
	require.Error(t, err)
	assert.Equal(t, 1, errorCalls)
	assert.Equal(t, 0, responseCalls)

	// No response at all: the error pipeline is skipped.
	dead := New("http://127.0.0.1:1", WithTimeout(time.Second))
	deadCalls := 0
	dead.RegisterResponseErrorMiddleware(func(*StatusError) { deadCalls++ })
	_, err = dead.Get(context.Background(), "users")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, deadCalls)
	assert.Equal(t, 0, dead.Ledger().Len())
}

func TestMiddleware_Unregister(t *testing.T) {
	t.Parallel()

	ts, _ := countingServer(t, http.StatusOK, nil)
	c := New(ts.URL)

	calls := 0
	h := c.RegisterResponseMiddleware(func(*Response) { calls++ })
	c.RegisterResponseMiddleware(func(*Response) {})

	req, resp, errs := c.MiddlewareCount()
	assert.Equal(t, [3]int{0, 2, 0}, [3]int{req, resp, errs})

	_, err := c.Post(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	h.Unregister()
	h.Unregister()
	_, err = c.Post(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, resp, _ = c.MiddlewareCount()
	assert.Equal(t, 1, resp)

	c.ResetMiddleware()
	req, resp, errs = c.MiddlewareCount()
	assert.Equal(t, [3]int{0, 0, 0}, [3]int{req, resp, errs})

	var nilHandle *Handle
	assert.NotPanics(t, nilHandle.Unregister)
}

// --- Errors ---

func TestStatusError_Message(t *testing.T) {
	t.Parallel()

	ts, _ := countingServer(t, http.StatusNotFound, map[string]string{"error": "missing"})
	c := New(ts.URL)

	_, err := c.Delete(context.Background(), "users/9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransport(err))
	assert.Contains(t, err.Error(), "DELETE users/9: status 404")
	assert.Contains(t, err.Error(), "missing")
}

func TestTransportError_Unwraps(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ts, _ := countingServer(t, http.StatusOK, nil)
	c := New(ts.URL)
	_, err := c.Get(ctx, "users")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, IsTransport(err))
}

// --- Response ---

func TestResponse_ObjectKeepsNumbers(t *testing.T) {
	t.Parallel()

	r := &Response{Body: []byte(`{"users":[{"id":12345678901234567}]}`)}
	obj, ok := r.Object()
	require.True(t, ok)
	users := obj["users"].([]any)
	assert.Equal(t, json.Number("12345678901234567"), users[0].(map[string]any)["id"])

	_, ok = (&Response{Body: []byte(`[1,2]`)}).Object()
	assert.False(t, ok)
	_, ok = (&Response{Body: []byte(`  `)}).Object()
	assert.False(t, ok)
	_, ok = (&Response{Body: []byte(`<html>`)}).Data()
	assert.False(t, ok)
	assert.Error(t, (&Response{}).Decode(&struct{}{}))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	c := New("http://api.test/api")
	got, err := c.resolve("users", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api/users", got)

	got, err = c.resolve("/users/1", url.Values{"with": {"roles"}})
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api/users/1?with=roles", got)

	got, err = c.resolve("https://other.test/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://other.test/x", got)
}
