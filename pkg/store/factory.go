package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/servkit/restsync/pkg/conventions"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/logging"
	"github.com/servkit/restsync/pkg/util"
)

// Factory builds store modules. Every module it builds shares the same
// naming table and HTTP client.
type Factory struct {
	client *httpclient.Client
	table  conventions.Table
	log    *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryLogger sets the logger used by generated actions.
func WithFactoryLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.log = logger
	}
}

// NewFactory creates a factory bound to client and table.
func NewFactory(client *httpclient.Client, table conventions.Table, opts ...FactoryOption) (*Factory, error) {
	if client == nil {
		return nil, errors.New("store: factory requires an HTTP client")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	f := &Factory{client: client, table: table, log: logging.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Table returns the naming table used for every module.
func (f *Factory) Table() conventions.Table {
	return f.table
}

// Client returns the HTTP client the generated actions use.
func (f *Factory) Client() *httpclient.Client {
	return f.client
}

// Build creates the default module for name. An empty endpoint defaults to
// the resource name.
func (f *Factory) Build(name, endpoint string) *Module {
	if endpoint == "" {
		endpoint = name
	}
	m := newModule(name, endpoint, f.table)
	t := f.table

	m.actions[t.Suffix(conventions.Read)] = f.readAction
	m.actions[t.Suffix(conventions.Create)] = f.createAction
	m.actions[t.Suffix(conventions.Update)] = f.updateAction
	m.actions[t.Suffix(conventions.Destroy)] = f.destroyAction
	m.actions[t.Suffix(conventions.SetAll)] = setAllAction

	m.getters[t.Suffix(conventions.ReadAll)] = allItems
	m.getters[t.Suffix(conventions.ReadByID)] = itemByID

	m.mutations[t.Suffix(conventions.MutationSetAll)] = setAll
	m.mutations[t.Suffix(conventions.MutationDelete)] = deleteByID
	return m
}

// readAction GETs the list endpoint, or endpoint/id when payload carries an
// id, and stores what the response holds for the module. A GET suppressed by
// the cache ledger succeeds with a nil response.
func (f *Factory) readAction(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
	return f.read(ctx, m, payload, nil)
}

// ReadWith returns a read action that passes opts to every GET, e.g. a
// query string. Like any call with options it bypasses the cache ledger.
// Use it in an Extension under the read suffix to replace the default read.
func (f *Factory) ReadWith(opts ...httpclient.RequestOption) ActionFunc {
	return func(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
		return f.read(ctx, m, payload, opts)
	}
}

func (f *Factory) read(ctx context.Context, m *Module, payload any, opts []httpclient.RequestOption) (*httpclient.Response, error) {
	endpoint := m.Endpoint()
	if id := payloadID(payload); id != "" {
		endpoint = m.ItemEndpoint(id)
	}
	resp, err := f.client.Get(ctx, endpoint, opts...)
	if errors.Is(err, httpclient.ErrCacheFresh) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data, ok := f.extract(m, resp); ok {
		if err := m.Commit(conventions.MutationSetAll, data); err != nil {
			f.log.Warn("ignoring unusable read payload", "resource", m.Name(), "endpoint", endpoint, "error", err)
		}
	}
	return resp, nil
}

// extract finds the module's data in a read response: a top-level array, the
// value under the resource name, the value under the items name, or a bare
// object carrying an id. Values under a key follow the same rule as sync
// rules: arrays, or objects carrying an id.
func (f *Factory) extract(m *Module, resp *httpclient.Response) (any, bool) {
	data, ok := resp.Data()
	if !ok {
		return nil, false
	}
	switch d := data.(type) {
	case []any:
		return d, true
	case map[string]any:
		for _, key := range []string{m.Name(), f.table.Items} {
			if v, ok := d[key]; ok && isItemPayload(v) {
				return v, true
			}
		}
		if isItemPayload(d) {
			return d, true
		}
	}
	return nil, false
}

// createAction POSTs the item to the list endpoint. State is left alone; the
// created item arrives through a later read or a sync rule.
func (f *Factory) createAction(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
	item, err := toItem(m.Name(), payload)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(item); err != nil {
		return nil, err
	}
	return f.client.Post(ctx, m.Endpoint(), item)
}

// updateAction POSTs the item to endpoint/id.
func (f *Factory) updateAction(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
	item, err := toItem(m.Name(), payload)
	if err != nil {
		return nil, err
	}
	id := item.ID()
	if id == "" {
		return nil, &ValidationError{Resource: m.Name(), Field: "id", Message: "update requires an id"}
	}
	if err := m.Validate(item); err != nil {
		return nil, err
	}
	return f.client.Post(ctx, m.ItemEndpoint(id), item)
}

// destroyAction DELETEs endpoint/id and removes the item locally on success.
func (f *Factory) destroyAction(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
	id := payloadID(payload)
	if id == "" {
		return nil, &ValidationError{Resource: m.Name(), Field: "id", Message: "destroy requires an id"}
	}
	resp, err := f.client.Delete(ctx, m.ItemEndpoint(id))
	if err != nil {
		return nil, err
	}
	if err := m.Commit(conventions.MutationDelete, id); err != nil {
		return resp, err
	}
	return resp, nil
}

func setAllAction(_ context.Context, m *Module, payload any) (*httpclient.Response, error) {
	return nil, m.Commit(conventions.MutationSetAll, payload)
}

// ExtraGetAction returns an action that GETs endpoint, or endpoint/<payload>
// when a payload is given. Options are passed to the client, so an action
// with options always reaches the network.
func (f *Factory) ExtraGetAction(endpoint string, opts ...httpclient.RequestOption) ActionFunc {
	return func(ctx context.Context, _ *Module, payload any) (*httpclient.Response, error) {
		target := endpoint
		if id := payloadID(payload); id != "" {
			target = util.JoinEndpoint(endpoint, id)
		}
		resp, err := f.client.Get(ctx, target, opts...)
		if errors.Is(err, httpclient.ErrCacheFresh) {
			return nil, nil
		}
		return resp, err
	}
}

// ExtraPostAction returns an action that POSTs its payload to
// endpoint/<id>/actionName, or endpoint/actionName when the payload has no id.
func (f *Factory) ExtraPostAction(endpoint, actionName string) ActionFunc {
	return func(ctx context.Context, m *Module, payload any) (*httpclient.Response, error) {
		var id string
		var body any
		if payload != nil {
			item, err := toItem(m.Name(), payload)
			if err != nil {
				return nil, err
			}
			id, body = item.ID(), item
		}
		return f.client.Post(ctx, util.JoinEndpoint(endpoint, id, actionName), body)
	}
}

// toItem converts an action payload into an Item. Structs are converted
// through their JSON form.
func toItem(resource string, payload any) (Item, error) {
	switch p := payload.(type) {
	case Item:
		return p, nil
	case map[string]any:
		return Item(p), nil
	case nil:
		return nil, &ValidationError{Resource: resource, Message: "item payload is required"}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Resource: resource, Message: fmt.Sprintf("item is not JSON encodable: %v", err)}
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &ValidationError{Resource: resource, Message: fmt.Sprintf("item must be a JSON object, got %T", payload)}
	}
	return item, nil
}

// payloadID returns the id a payload addresses: the id field of an item or
// the payload itself for scalars.
func payloadID(payload any) string {
	switch p := payload.(type) {
	case Item:
		return p.ID()
	case map[string]any:
		return Item(p).ID()
	}
	return idString(payload)
}

// isItemPayload reports whether v can be committed with SET_ALL: a list, or
// a single object carrying an id.
func isItemPayload(v any) bool {
	switch val := v.(type) {
	case []any:
		return true
	case map[string]any:
		return Item(val).ID() != ""
	}
	return false
}
