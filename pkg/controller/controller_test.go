package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servkit/restsync/pkg/conventions"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/store"
	"github.com/servkit/restsync/pkg/translator"
)

type navigation struct {
	Name  string
	ID    string
	Query url.Values
}

type fakeRouter struct {
	mu      sync.Mutex
	current string
	visited []navigation
}

func (r *fakeRouter) GoToRoute(name, id string, query url.Values) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited = append(r.visited, navigation{Name: name, ID: id, Query: query})
	return nil
}

func (r *fakeRouter) CurrentRouteID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func newService(t *testing.T, handler http.HandlerFunc) *store.Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	factory, err := store.NewFactory(httpclient.New(server.URL), conventions.Default())
	require.NoError(t, err)
	svc := store.NewService(factory)
	t.Cleanup(svc.Close)
	return svc
}

func usersAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /users":
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "Ada"}, {"id": 2, "name": "Linus"}})
	case "GET /users/3":
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "name": "Grace"})
	case "DELETE /users/1":
		w.WriteHeader(http.StatusNoContent)
	case "POST /users", "POST /users/2":
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	default:
		http.NotFound(w, r)
	}
}

func TestNew_RegistersEagerly(t *testing.T) {
	t.Parallel()

	svc := newService(t, usersAPI)
	c, err := New(svc, "users")
	require.NoError(t, err)

	assert.True(t, svc.Has("users"))
	assert.Equal(t, "users", c.Name())
	assert.Equal(t, "users", c.Module().Endpoint())
	assert.Empty(t, c.All())

	_, err = New(svc, "users")
	assert.ErrorIs(t, err, store.ErrAlreadyRegistered)
}

func TestNew_Endpoint(t *testing.T) {
	t.Parallel()

	svc := newService(t, usersAPI)
	c, err := New(svc, "admins", WithEndpoint("users"))
	require.NoError(t, err)

	_, err = c.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.All(), 2)
}

func TestController_CRUD(t *testing.T) {
	t.Parallel()

	svc := newService(t, usersAPI)
	c, err := New(svc, "users")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Read(ctx)
	require.NoError(t, err)
	require.Len(t, c.All(), 2)

	item, ok := c.ByID("2")
	require.True(t, ok)
	assert.Equal(t, "Linus", item["name"])

	_, err = c.Create(ctx, map[string]any{"name": "Ken"})
	require.NoError(t, err)
	assert.Len(t, c.All(), 2, "create leaves local state alone")

	_, err = c.Update(ctx, map[string]any{"id": 2, "name": "Linus T."})
	require.NoError(t, err)

	_, err = c.Destroy(ctx, "1")
	require.NoError(t, err)
	_, ok = c.ByID("1")
	assert.False(t, ok)

	_, err = c.Show(ctx, "3")
	require.NoError(t, err)
	item, ok = c.ByID("3")
	require.True(t, ok)
	assert.Equal(t, "Grace", item["name"])
}

func TestController_GettersFromExtension(t *testing.T) {
	t.Parallel()

	svc := newService(t, usersAPI)
	ext := &store.Extension{Getters: map[string]store.GetterFunc{
		"all": func(s *store.State, _ ...any) any {
			var adults []store.Item
			for _, it := range s.Items {
				if it["adult"] == true {
					adults = append(adults, it.Clone())
				}
			}
			return adults
		},
		"byId": func(*store.State, ...any) any { return nil },
	}}
	c, err := New(svc, "users", WithExtension(ext))
	require.NoError(t, err)
	require.NoError(t, svc.SetAll("users", []any{
		map[string]any{"id": 1, "adult": true},
		map[string]any{"id": 2, "adult": false},
	}))

	all := c.All()
	require.Len(t, all, 1)
	assert.Equal(t, "1", all[0].ID())
	_, ok := c.ByID("1")
	assert.False(t, ok, "byId getter replaced")
}

func TestController_CurrentRoute(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{current: "3"}
	svc := newService(t, usersAPI)
	c, err := New(svc, "users", WithRouter(router))
	require.NoError(t, err)

	_, ok := c.ByCurrentRouteID()
	assert.False(t, ok)

	_, err = c.ShowByCurrentRouteID(context.Background())
	require.NoError(t, err)
	item, ok := c.ByCurrentRouteID()
	require.True(t, ok)
	assert.Equal(t, "Grace", item["name"])

	router.mu.Lock()
	router.current = ""
	router.mu.Unlock()
	_, err = c.ShowByCurrentRouteID(context.Background())
	assert.ErrorIs(t, err, ErrNoRouteID)
}

func TestController_Navigation(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{}
	svc := newService(t, usersAPI)
	c, err := New(svc, "users", WithRouter(router))
	require.NoError(t, err)

	query := url.Values{"tab": {"roles"}}
	require.NoError(t, c.GoToOverviewPage())
	require.NoError(t, c.GoToShowPage("7"))
	require.NoError(t, c.GoToEditPage("7", query))
	require.NoError(t, c.GoToCreatePage(nil))

	assert.Equal(t, []navigation{
		{Name: "users.overview"},
		{Name: "users.show", ID: "7"},
		{Name: "users.edit", ID: "7", Query: query},
		{Name: "users.create"},
	}, router.visited)
	assert.Equal(t, RouteNames{
		Overview: "users.overview",
		Create:   "users.create",
		Edit:     "users.edit",
		Show:     "users.show",
	}, c.RouteNames())
}

func TestController_NoRouter(t *testing.T) {
	t.Parallel()

	svc := newService(t, usersAPI)
	c, err := New(svc, "users")
	require.NoError(t, err)

	assert.ErrorIs(t, c.GoToOverviewPage(), ErrNoRouter)
	_, err = c.ShowByCurrentRouteID(context.Background())
	assert.ErrorIs(t, err, ErrNoRouter)
	_, ok := c.ByCurrentRouteID()
	assert.False(t, ok)
}

func TestController_Labels(t *testing.T) {
	t.Parallel()

	labels := translator.New()
	svc := newService(t, usersAPI)
	c, err := New(svc, "users",
		WithTranslator(labels),
		WithTranslation(translator.Translation{Singular: "user", Plural: "users"}),
	)
	require.NoError(t, err)

	assert.Equal(t, "user", c.Singular())
	assert.Equal(t, "users", c.Plural())
	assert.Equal(t, "User", labels.CapitalizedSingular("users"))
	assert.Equal(t, "Are you sure you want to delete this user?", c.DestroyConfirmation())

	other, err := New(svc, "roles")
	require.NoError(t, err)
	assert.Equal(t, "roles", other.Singular())
}
