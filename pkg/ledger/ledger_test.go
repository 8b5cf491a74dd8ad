package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStorage fails every operation.
type failingStorage struct{}

func (failingStorage) GetItem(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStorage) SetItem(string, string) error         { return errors.New("disk gone") }
func (failingStorage) RemoveItem(string) error              { return errors.New("disk gone") }

func TestLedger_Freshness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		fresh   bool
	}{
		{"immediately", 0, true},
		{"just inside window", 9 * time.Second, true},
		{"sub-second before expiry", 9*time.Second + 900*time.Millisecond, true},
		{"exactly at duration", 10 * time.Second, false},
		{"after duration", 25 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			l := New(WithClock(clock.Now))

			l.Touch("users")
			clock.Advance(tt.elapsed)
			assert.Equal(t, tt.fresh, l.Fresh("users"))
		})
	}
}

func TestLedger_UnknownEndpointIsNotFresh(t *testing.T) {
	t.Parallel()

	l := New()
	assert.False(t, l.Fresh("never-fetched"))
}

func TestLedger_NonPositiveDurationDisablesSuppression(t *testing.T) {
	t.Parallel()

	l := New(WithDuration(0))
	l.Touch("users")
	assert.False(t, l.Fresh("users"))
}

func TestLedger_PersistsWholeDocument(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	storage := NewMemoryStorage()
	l := New(WithClock(clock.Now), WithStorage(storage))

	l.Touch("users")
	clock.Advance(3 * time.Second)
	l.Touch("posts")

	raw, ok, err := storage.GetItem(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var persisted map[string]int64
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, map[string]int64{
		"users": 1_700_000_000,
		"posts": 1_700_000_003,
	}, persisted)

	// A new ledger over the same storage sees the same entries.
	reloaded := New(WithClock(clock.Now), WithStorage(storage))
	assert.True(t, reloaded.Fresh("users"))
	assert.Equal(t, 2, reloaded.Len())
}

func TestLedger_CorruptDocumentStartsEmpty(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	require.NoError(t, storage.SetItem(StorageKey, "{not json"))

	l := New(WithStorage(storage))
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Fresh("users"))
}

func TestLedger_PersistenceFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	l := New(WithStorage(failingStorage{}))
	assert.NotPanics(t, func() {
		l.Touch("users")
		l.Forget("users")
		l.Touch("users")
		l.Clear()
	})
	assert.Equal(t, 0, l.Len())
}

func TestLedger_ForgetAndClear(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	l := New(WithStorage(storage))
	l.Touch("users")
	l.Touch("posts")

	l.Forget("users")
	assert.False(t, l.Fresh("users"))
	assert.True(t, l.Fresh("posts"))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "posts", entries[0].Endpoint)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	_, ok, err := storage.GetItem(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_TouchAtOverwrites(t *testing.T) {
	t.Parallel()

	l := New()
	l.TouchAt("users", 100)
	l.TouchAt("users", 250)

	ts, ok := l.Get("users")
	require.True(t, ok)
	assert.Equal(t, int64(250), ts)
}

func TestFileStorage_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "http_cache.json")
	s := NewFileStorage(path)

	_, ok, err := s.GetItem(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem(StorageKey, `{"users":1}`))
	require.NoError(t, s.SetItem("other", "x"))

	v, ok, err := s.GetItem(StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"users":1}`, v)

	require.NoError(t, s.RemoveItem(StorageKey))
	require.NoError(t, s.RemoveItem(StorageKey))
	_, ok, err = s.GetItem(StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFileStorage_ReplacesCorruptFileOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "http_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s := NewFileStorage(path)
	_, _, err := s.GetItem(StorageKey)
	assert.Error(t, err)

	require.NoError(t, s.SetItem(StorageKey, "{}"))
	v, ok, err := s.GetItem(StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", v)
}

func TestLedger_FileStorageAcrossInstances(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	path := filepath.Join(t.TempDir(), "http_cache.json")

	first := New(WithClock(clock.Now), WithStorage(NewFileStorage(path)))
	first.Touch("users")

	second := New(WithClock(clock.Now), WithStorage(NewFileStorage(path)))
	assert.True(t, second.Fresh("users"))
}
