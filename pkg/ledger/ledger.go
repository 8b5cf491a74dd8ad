// Package ledger implements the cache ledger: a map from request endpoint to
// the Unix second of its last successful fetch. A fresh entry tells the HTTP
// client to skip a repeat GET.
//
// The whole ledger is persisted as one JSON document under StorageKey in a
// client-local Storage. Persistence is best-effort: failures are logged and
// never surface to the request that triggered them.
package ledger

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/servkit/restsync/pkg/logging"
)

// StorageKey is the key the ledger document is stored under.
const StorageKey = "HTTP_CACHE"

// DefaultDuration is how long an entry stays fresh.
const DefaultDuration = 10 * time.Second

// Entry is one ledger record.
type Entry struct {
	Endpoint  string `json:"endpoint"`
	FetchedAt int64  `json:"fetchedAt"`
}

// Ledger tracks last-fetch timestamps per endpoint. It is safe for
// concurrent use.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]int64
	duration time.Duration
	now      func() time.Time
	storage  Storage
	log      *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDuration sets the freshness window. Non-positive values disable
// suppression entirely.
func WithDuration(d time.Duration) Option {
	return func(l *Ledger) {
		l.duration = d
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithStorage sets the persistent storage. Defaults to a MemoryStorage.
func WithStorage(s Storage) Option {
	return func(l *Ledger) {
		l.storage = s
	}
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = logger
	}
}

// New creates a ledger and loads any previously persisted entries.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		entries:  make(map[string]int64),
		duration: DefaultDuration,
		now:      time.Now,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.storage == nil {
		l.storage = NewMemoryStorage()
	}
	l.load()
	return l
}

// load reads the persisted document. Missing or unreadable data leaves the
// ledger empty, so every endpoint starts as a cache miss.
func (l *Ledger) load() {
	raw, ok, err := l.storage.GetItem(StorageKey)
	if err != nil {
		l.log.Warn("failed to read cache ledger", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}
	entries := make(map[string]int64)
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.log.Warn("discarding unreadable cache ledger", "error", err)
		return
	}
	l.entries = entries
}

// Duration returns the freshness window.
func (l *Ledger) Duration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.duration
}

// SetDuration changes the freshness window.
func (l *Ledger) SetDuration(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.duration = d
}

// Now returns the ledger clock's current Unix second.
func (l *Ledger) Now() int64 {
	return l.now().Unix()
}

// Fresh reports whether endpoint was fetched less than Duration ago.
// Ages are compared in whole seconds.
func (l *Ledger) Fresh(endpoint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts, ok := l.entries[endpoint]
	if !ok || l.duration <= 0 {
		return false
	}
	return l.now().Unix()-ts < int64(l.duration/time.Second)
}

// Touch records a successful fetch of endpoint at the current time.
func (l *Ledger) Touch(endpoint string) {
	l.TouchAt(endpoint, l.now().Unix())
}

// TouchAt records a successful fetch of endpoint at the given Unix second and
// persists the whole ledger.
func (l *Ledger) TouchAt(endpoint string, unix int64) {
	l.mu.Lock()
	l.entries[endpoint] = unix
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(snapshot)
}

// Get returns the timestamp stored for endpoint.
func (l *Ledger) Get(endpoint string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts, ok := l.entries[endpoint]
	return ts, ok
}

// Entries returns all entries sorted by endpoint.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for endpoint, ts := range l.entries {
		out = append(out, Entry{Endpoint: endpoint, FetchedAt: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Forget removes the entry for endpoint, forcing the next GET through.
func (l *Ledger) Forget(endpoint string) {
	l.mu.Lock()
	if _, ok := l.entries[endpoint]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.entries, endpoint)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(snapshot)
}

// Clear removes every entry and the persisted document.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = make(map[string]int64)
	l.mu.Unlock()

	if err := l.storage.RemoveItem(StorageKey); err != nil {
		l.log.Warn("failed to clear persisted cache ledger", "error", err)
	}
}

func (l *Ledger) snapshotLocked() map[string]int64 {
	out := make(map[string]int64, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

func (l *Ledger) persist(entries map[string]int64) {
	data, err := json.Marshal(entries)
	if err != nil {
		l.log.Warn("failed to encode cache ledger", "error", err)
		return
	}
	if err := l.storage.SetItem(StorageKey, string(data)); err != nil {
		l.log.Warn("failed to persist cache ledger", "error", err)
	}
}
