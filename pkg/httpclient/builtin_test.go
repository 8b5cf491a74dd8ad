package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/servkit/restsync/pkg/logging"
)

// headerEcho records the last value of each listed request header.
func headerEcho(t *testing.T, names ...string) (*httptest.Server, func(string) string) {
	t.Helper()
	var mu sync.Mutex
	seen := map[string]string{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		for _, n := range names {
			seen[n] = r.Header.Get(n)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)
	return ts, func(n string) string {
		mu.Lock()
		defer mu.Unlock()
		return seen[n]
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	ts, seen := headerEcho(t, RequestIDHeader)
	c := New(ts.URL)
	c.RegisterRequestMiddleware(RequestID())

	_, err := c.Post(context.Background(), "a", nil)
	require.NoError(t, err)
	_, err = uuid.Parse(seen(RequestIDHeader))
	assert.NoError(t, err)

	_, err = c.Post(context.Background(), "a", nil, Header(RequestIDHeader, "fixed"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", seen(RequestIDHeader))
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	ts, seen := headerEcho(t, "Authorization")
	c := New(ts.URL)
	token := ""
	c.RegisterRequestMiddleware(BearerToken(func() string { return token }))

	_, err := c.Post(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Empty(t, seen("Authorization"))

	token = "secret"
	_, err = c.Post(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", seen("Authorization"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	ts, _ := headerEcho(t)
	c := New(ts.URL)
	c.RegisterRequestMiddleware(RateLimit(rate.NewLimiter(rate.Every(50*time.Millisecond), 1)))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Post(context.Background(), "a", nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLoggers(t *testing.T) {
	t.Parallel()

	ts, _ := headerEcho(t)
	c := New(ts.URL)
	c.RegisterRequestMiddleware(RequestLogger(logging.Nop()))
	c.RegisterResponseMiddleware(ResponseLogger(logging.Nop()))

	_, err := c.Get(context.Background(), "a")
	assert.NoError(t, err)
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	fail.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"name":["is required"],"email":["is invalid","is taken"]}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL)
	v := NewValidationErrors()
	onError, onSuccess := v.Install(c)
	require.NotNil(t, onError)
	require.NotNil(t, onSuccess)
	assert.True(t, v.Empty())

	_, err := c.Post(context.Background(), "users", map[string]string{})
	require.Error(t, err)
	assert.Equal(t, []string{"email", "name"}, v.Fields())
	assert.Equal(t, []string{"is invalid", "is taken"}, v.Get("email"))
	assert.Nil(t, v.Get("missing"))

	fail.Store(false)
	_, err = c.Post(context.Background(), "users", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.True(t, v.Empty())

	onError.Unregister()
	fail.Store(true)
	_, err = c.Post(context.Background(), "users", map[string]string{})
	require.Error(t, err)
	assert.True(t, v.Empty(), "collector no longer installed")
}

func TestValidationErrors_IgnoresOtherStatuses(t *testing.T) {
	t.Parallel()

	ts, _ := countingServer(t, http.StatusBadRequest, map[string]any{"errors": map[string][]string{"x": {"bad"}}})
	c := New(ts.URL)
	v := NewValidationErrors()
	v.Install(c)

	_, err := c.Post(context.Background(), "users", nil)
	require.Error(t, err)
	assert.True(t, v.Empty())
}
