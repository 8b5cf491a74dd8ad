package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/servkit/restsync/pkg/conventions"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/util"
)

// State is the mutable state of one module. Mutations receive it with the
// module's write lock held; getters with the read lock held and must not
// modify it.
type State struct {
	Items  []Item
	Values map[string]any
}

// ActionFunc performs an asynchronous operation for a module, usually a
// request. Actions change state only through Module.Commit.
type ActionFunc func(ctx context.Context, m *Module, payload any) (*httpclient.Response, error)

// GetterFunc derives a value from module state.
type GetterFunc func(s *State, args ...any) any

// MutationFunc changes module state.
type MutationFunc func(s *State, payload any) error

// Module is the CRUD state unit for one resource. Every entry is keyed by
// the suffix the naming table assigns to it, so extensions can replace a
// default by reusing its suffix.
type Module struct {
	name     string
	endpoint string
	table    conventions.Table

	mu        sync.RWMutex
	state     State
	actions   map[string]ActionFunc
	getters   map[string]GetterFunc
	mutations map[string]MutationFunc
	schema    *jsonschema.Schema
}

func newModule(name, endpoint string, table conventions.Table) *Module {
	return &Module{
		name:      name,
		endpoint:  endpoint,
		table:     table,
		state:     State{Items: []Item{}, Values: map[string]any{}},
		actions:   make(map[string]ActionFunc),
		getters:   make(map[string]GetterFunc),
		mutations: make(map[string]MutationFunc),
	}
}

// Name returns the resource name.
func (m *Module) Name() string {
	return m.name
}

// Endpoint returns the list endpoint of the resource.
func (m *Module) Endpoint() string {
	return m.endpoint
}

// ItemEndpoint returns the endpoint of one item, endpoint/id.
func (m *Module) ItemEndpoint(id string) string {
	return util.JoinEndpoint(m.endpoint, id)
}

// Identifier renders the namespaced name of op, e.g. "users/read".
func (m *Module) Identifier(op conventions.Operation) string {
	return m.table.Identifier(m.name, op)
}

// Commit applies a built-in mutation.
func (m *Module) Commit(op conventions.Operation, payload any) error {
	if !op.IsMutation() {
		return fmt.Errorf("%w: %s is not a mutation", ErrUnknownOperation, op)
	}
	return m.CommitNamed(m.table.Suffix(op), payload)
}

// CommitNamed applies the mutation registered under name.
func (m *Module) CommitNamed(name string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn, ok := m.mutations[name]
	if !ok {
		return fmt.Errorf("%w: mutation %s%s%s", ErrUnknownOperation, m.name, m.table.Separator, name)
	}
	return fn(&m.state, payload)
}

// Get evaluates a built-in getter.
func (m *Module) Get(op conventions.Operation, args ...any) (any, error) {
	if !op.IsGetter() {
		return nil, fmt.Errorf("%w: %s is not a getter", ErrUnknownOperation, op)
	}
	return m.GetNamed(m.table.Suffix(op), args...)
}

// GetNamed evaluates the getter registered under name.
func (m *Module) GetNamed(name string, args ...any) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: getter %s%s%s", ErrUnknownOperation, m.name, m.table.Separator, name)
	}
	return fn(&m.state, args...), nil
}

// action returns the action registered under name.
func (m *Module) action(name string) (ActionFunc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.actions[name]
	return fn, ok
}

// Items returns a deep copy of the module's items.
func (m *Module) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneItems(m.state.Items)
}

// Item returns a copy of the item whose id equals id.
func (m *Module) Item(id string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if it := findItem(m.state.Items, id); it != nil {
		return it.Clone(), true
	}
	return nil, false
}

// Value returns an extension state value. The items slot is reachable under
// the table's items name.
func (m *Module) Value(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key == m.table.Items {
		return cloneItems(m.state.Items), true
	}
	v, ok := m.state.Values[key]
	return deepCopy(v), ok
}

// Len returns the number of items held.
func (m *Module) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.Items)
}

// Actions returns the namespaced identifiers of every action, sorted.
func (m *Module) Actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return identifiers(m, m.actions)
}

// Getters returns the namespaced identifiers of every getter, sorted.
func (m *Module) Getters() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return identifiers(m, m.getters)
}

// Mutations returns the namespaced identifiers of every mutation, sorted.
func (m *Module) Mutations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return identifiers(m, m.mutations)
}

func identifiers[T any](m *Module, entries map[string]T) []string {
	out := make([]string, 0, len(entries))
	for k := range entries {
		out = append(out, m.name+m.table.Separator+k)
	}
	sort.Strings(out)
	return out
}

// Validate checks item against the module schema. Modules without a schema
// accept everything.
func (m *Module) Validate(item Item) error {
	m.mu.RLock()
	schema := m.schema
	m.mu.RUnlock()
	if schema == nil {
		return nil
	}
	return validateItem(m.name, schema, item)
}

// extend merges ext into the module. Entries with an existing name replace
// the default.
func (m *Module) extend(ext Extension) error {
	var schema *jsonschema.Schema
	if len(ext.Schema) > 0 {
		s, err := compileSchema(m.name, ext.Schema)
		if err != nil {
			return err
		}
		schema = s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range ext.State {
		m.state.Values[k] = deepCopy(v)
	}
	for k, fn := range ext.Actions {
		m.actions[k] = fn
	}
	for k, fn := range ext.Getters {
		m.getters[k] = fn
	}
	for k, fn := range ext.Mutations {
		m.mutations[k] = fn
	}
	if schema != nil {
		m.schema = schema
	}
	return nil
}

func findItem(items []Item, id string) Item {
	if id == "" {
		return nil
	}
	for _, it := range items {
		if it.ID() == id {
			return it
		}
	}
	return nil
}

// setAll replaces the item list with a list payload. A single object is
// stored in place of the item with the same id, or appended; it must carry an
// id so that repeating the commit changes nothing.
func setAll(s *State, payload any) error {
	items, single, err := toItems(payload)
	if err != nil {
		return err
	}
	if !single {
		s.Items = items
		return nil
	}
	item := items[0]
	if item.ID() == "" {
		return fmt.Errorf("single %T item requires an id", payload)
	}
	for i, existing := range s.Items {
		if existing.ID() == item.ID() {
			s.Items[i] = item
			return nil
		}
	}
	s.Items = append(s.Items, item)
	return nil
}

// deleteByID removes every item whose id equals the payload's id form.
func deleteByID(s *State, payload any) error {
	id := idString(payload)
	if id == "" {
		return fmt.Errorf("delete requires an id, got %T", payload)
	}
	kept := make([]Item, 0, len(s.Items))
	for _, it := range s.Items {
		if it.ID() != id {
			kept = append(kept, it)
		}
	}
	s.Items = kept
	return nil
}

func allItems(s *State, _ ...any) any {
	return cloneItems(s.Items)
}

// itemByID returns the matching item or nil (an untyped nil, so callers can
// compare against nil).
func itemByID(s *State, args ...any) any {
	if len(args) == 0 {
		return nil
	}
	if it := findItem(s.Items, idString(args[0])); it != nil {
		return it.Clone()
	}
	return nil
}
