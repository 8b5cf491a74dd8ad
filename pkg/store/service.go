package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/servkit/restsync/pkg/conventions"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/logging"
)

// Extension adds resource-specific state, actions, getters and mutations to
// a generated module. Entries reusing a default suffix replace the default.
type Extension struct {
	State     map[string]any
	Actions   map[string]ActionFunc
	Getters   map[string]GetterFunc
	Mutations map[string]MutationFunc

	// Schema is an optional JSON Schema that create and update payloads
	// must satisfy before a request is sent.
	Schema []byte
}

// Service owns every registered module and routes all lookups through them.
type Service struct {
	factory  *Factory
	client   *httpclient.Client
	log      *slog.Logger
	observer Observer

	mu      sync.RWMutex
	modules map[string]*Module
	names   []string
	rules   []compiledRule

	where      whereCache
	syncHandle *httpclient.Handle
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// WithObserver sets the observer notified of every operation.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewService creates a service around factory and installs the sync
// middleware on the factory's HTTP client.
func NewService(factory *Factory, opts ...Option) *Service {
	s := &Service{
		factory:  factory,
		client:   factory.Client(),
		log:      logging.Nop(),
		observer: NoopObserver{},
		modules:  make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.syncHandle = s.client.RegisterResponseMiddleware(s.sync)
	return s
}

// Close removes the sync middleware from the HTTP client.
func (s *Service) Close() {
	s.syncHandle.Unregister()
}

// Factory returns the factory modules are built with.
func (s *Service) Factory() *Factory {
	return s.factory
}

// Conventions returns the naming table shared by every module.
func (s *Service) Conventions() conventions.Table {
	return s.factory.Table()
}

// Register attaches m under name and adds the default sync rule for it.
// Registering a name twice fails with ErrAlreadyRegistered.
func (s *Service) Register(name string, m *Module) error {
	if name == "" {
		return errors.New("store: module name cannot be empty")
	}
	if m == nil {
		return fmt.Errorf("store: module %q cannot be nil", name)
	}
	if m.Name() != name {
		return fmt.Errorf("store: module %q cannot be registered as %q", m.Name(), name)
	}
	rule, err := compileRule(DefaultSyncRule(name))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	s.modules[name] = m
	s.names = append(s.names, name)
	s.rules = append(s.rules, rule)
	s.log.Debug("registered store module", "resource", name, "endpoint", m.Endpoint())
	return nil
}

// GenerateAndRegister builds the default module for name, merges ext into
// it when given and registers it. An empty endpoint defaults to name.
func (s *Service) GenerateAndRegister(name, endpoint string, ext *Extension) (*Module, error) {
	m := s.factory.Build(name, endpoint)
	if ext != nil {
		if err := m.extend(*ext); err != nil {
			return nil, err
		}
	}
	if err := s.Register(name, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Module returns the module registered under name.
func (s *Service) Module(name string) (*Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, &ModuleNotFoundError{Resource: name, Known: append([]string(nil), s.names...)}
	}
	return m, nil
}

// Has reports whether name is registered.
func (s *Service) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modules[name]
	return ok
}

// Names returns the registered names in registration order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Get evaluates a built-in getter of module name.
func (s *Service) Get(name string, op conventions.Operation, args ...any) (any, error) {
	m, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	return m.Get(op, args...)
}

// GetNamed evaluates a getter added through an Extension.
func (s *Service) GetNamed(name, getter string, args ...any) (any, error) {
	m, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	return m.GetNamed(getter, args...)
}

// Dispatch runs a built-in action of module name. A read suppressed by the
// cache ledger returns a nil response and a nil error.
func (s *Service) Dispatch(ctx context.Context, name string, op conventions.Operation, payload any) (*httpclient.Response, error) {
	if !op.IsAction() {
		return nil, fmt.Errorf("%w: %s is not an action", ErrUnknownOperation, op)
	}
	m, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	fn, ok := m.action(s.factory.Table().Suffix(op))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, m.Identifier(op))
	}

	start := time.Now()
	resp, err := fn(ctx, m, payload)
	elapsed := time.Since(start)
	if err != nil {
		s.observer.OnError(name, op.String(), err)
		s.log.Debug("store action failed", "resource", name, "action", op.String(), "error", err)
		return nil, err
	}

	switch op {
	case conventions.Read:
		s.observer.OnRead(name, m.Len(), resp == nil, elapsed)
	case conventions.Create:
		s.observer.OnCreate(name, elapsed)
	case conventions.Update:
		s.observer.OnUpdate(name, payloadID(payload), elapsed)
	case conventions.Destroy:
		s.observer.OnDestroy(name, payloadID(payload), elapsed)
	}
	return resp, nil
}

// DispatchExtra runs an action added through an Extension.
func (s *Service) DispatchExtra(ctx context.Context, name, action string, payload any) (*httpclient.Response, error) {
	m, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	fn, ok := m.action(action)
	if !ok {
		return nil, fmt.Errorf("%w: action %s%s%s", ErrUnknownOperation, name, s.factory.Table().Separator, action)
	}
	resp, err := fn(ctx, m, payload)
	if err != nil {
		s.observer.OnError(name, action, err)
		return nil, err
	}
	return resp, nil
}

// All returns every item of module name.
func (s *Service) All(name string) ([]Item, error) {
	v, err := s.Get(name, conventions.ReadAll)
	if err != nil {
		return nil, err
	}
	items, _ := v.([]Item)
	return items, nil
}

// ByID returns the item of module name whose id equals id. ok is false when
// no such item is held.
func (s *Service) ByID(name, id string) (Item, bool, error) {
	v, err := s.Get(name, conventions.ReadByID, id)
	if err != nil {
		return nil, false, err
	}
	item, ok := v.(Item)
	return item, ok, nil
}

// Create sends item to the server. Local state is not changed.
func (s *Service) Create(ctx context.Context, name string, item any) (*httpclient.Response, error) {
	return s.Dispatch(ctx, name, conventions.Create, item)
}

// Update sends item to endpoint/id.
func (s *Service) Update(ctx context.Context, name string, item any) (*httpclient.Response, error) {
	return s.Dispatch(ctx, name, conventions.Update, item)
}

// Destroy deletes id on the server and, on success, locally.
func (s *Service) Destroy(ctx context.Context, name, id string) (*httpclient.Response, error) {
	return s.Dispatch(ctx, name, conventions.Destroy, id)
}

// Read fetches the resource list.
func (s *Service) Read(ctx context.Context, name string) (*httpclient.Response, error) {
	return s.Dispatch(ctx, name, conventions.Read, nil)
}

// Show fetches endpoint/id. The item is stored through the read response or
// a sync rule.
func (s *Service) Show(ctx context.Context, name, id string) (*httpclient.Response, error) {
	if _, err := s.Module(name); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &ValidationError{Resource: name, Field: "id", Message: "show requires an id"}
	}
	return s.Dispatch(ctx, name, conventions.Read, id)
}

// SetAll replaces the items of module name with data.
func (s *Service) SetAll(name string, data any) error {
	_, err := s.Dispatch(context.Background(), name, conventions.SetAll, data)
	return err
}

// ReadMany reads several resources concurrently. Every name is checked
// before any request is sent; the first failure cancels the rest.
func (s *Service) ReadMany(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, err := s.Module(name); err != nil {
			return err
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if _, err := s.Read(ctx, name); err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Query filters, sorts and pages the items of module name locally.
func (s *Service) Query(name string, q QueryFilter) (QueryResult, error) {
	m, err := s.Module(name)
	if err != nil {
		return QueryResult{}, err
	}
	return runQuery(m.Items(), q), nil
}

// Where returns the items of module name for which expression holds, e.g.
// `age >= 18 && role == "admin"`.
func (s *Service) Where(name, expression string) ([]Item, error) {
	m, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	return s.where.filter(m.Items(), expression)
}

// AddSyncRule adds a rule evaluated against every successful response.
// Rules may name resources that are registered later.
func (s *Service) AddSyncRule(rule SyncRule) error {
	compiled, err := compileRule(rule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, compiled)
	return nil
}

// SyncRules returns every rule in evaluation order.
func (s *Service) SyncRules() []SyncRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SyncRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.rule
	}
	return out
}

// sync is the response middleware: every rule whose resource is registered
// and whose path yields items replaces that resource's items. Downloads are
// never synced.
func (s *Service) sync(resp *httpclient.Response) {
	if resp.Binary {
		return
	}
	data, ok := resp.Data()
	if !ok {
		return
	}

	s.mu.RLock()
	rules := append([]compiledRule(nil), s.rules...)
	s.mu.RUnlock()

	for _, r := range rules {
		m, err := s.Module(r.rule.Resource)
		if err != nil || !r.appliesTo(resp.Endpoint) {
			continue
		}
		v, ok := r.extract(data)
		if !ok {
			continue
		}
		if err := m.Commit(conventions.MutationSetAll, v); err != nil {
			s.log.Warn("sync rule produced unusable items", "resource", m.Name(), "path", r.rule.Path, "endpoint", resp.Endpoint, "error", err)
			s.observer.OnError(m.Name(), "sync", err)
			continue
		}
		count := m.Len()
		s.log.Debug("synced resource from response", "resource", m.Name(), "endpoint", resp.Endpoint, "count", count)
		s.observer.OnSync(m.Name(), resp.Endpoint, count)
	}
}
