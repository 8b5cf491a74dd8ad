// Package controller provides per-resource controllers: a registered store
// module plus route navigation and labels for one resource name.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/store"
	"github.com/servkit/restsync/pkg/translator"
)

// ErrNoRouter is returned by navigation calls on a controller built without
// a Router.
var ErrNoRouter = errors.New("controller: no router configured")

// ErrNoRouteID is returned when the current route carries no id.
var ErrNoRouteID = errors.New("controller: current route has no id")

// Router is the routing collaborator.
type Router interface {
	GoToRoute(name, id string, query url.Values) error
	CurrentRouteID() string
}

// RouteNames are the page route names of one resource.
type RouteNames struct {
	Overview string
	Create   string
	Edit     string
	Show     string
}

// NewRouteNames returns the route names for resource name.
func NewRouteNames(name string) RouteNames {
	return RouteNames{
		Overview: name + ".overview",
		Create:   name + ".create",
		Edit:     name + ".edit",
		Show:     name + ".show",
	}
}

// Controller binds one resource name to its store module.
type Controller struct {
	name   string
	svc    *store.Service
	module *store.Module
	router Router
	labels *translator.Translator
	routes RouteNames
}

type options struct {
	endpoint    string
	extension   *store.Extension
	router      Router
	labels      *translator.Translator
	translation *translator.Translation
}

// Option configures a Controller.
type Option func(*options)

// WithEndpoint sets the API endpoint when it differs from the resource name.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithExtension merges ext into the generated store module.
func WithExtension(ext *store.Extension) Option {
	return func(o *options) {
		o.extension = ext
	}
}

// WithRouter sets the routing collaborator.
func WithRouter(r Router) Option {
	return func(o *options) {
		o.router = r
	}
}

// WithTranslator sets where labels are looked up.
func WithTranslator(t *translator.Translator) Option {
	return func(o *options) {
		o.labels = t
	}
}

// WithTranslation stores tr as the resource's labels on construction.
func WithTranslation(tr translator.Translation) Option {
	return func(o *options) {
		o.translation = &tr
	}
}

// New registers the store module for name and returns its controller. The
// module exists before any request is issued.
func New(svc *store.Service, name string, opts ...Option) (*Controller, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := svc.GenerateAndRegister(name, o.endpoint, o.extension)
	if err != nil {
		return nil, fmt.Errorf("controller %s: %w", name, err)
	}

	labels := o.labels
	if labels == nil {
		labels = translator.New()
	}
	if o.translation != nil {
		labels.Set(name, *o.translation)
	}

	return &Controller{
		name:   name,
		svc:    svc,
		module: m,
		router: o.router,
		labels: labels,
		routes: NewRouteNames(name),
	}, nil
}

// Name returns the resource name.
func (c *Controller) Name() string {
	return c.name
}

// Module returns the registered store module.
func (c *Controller) Module() *store.Module {
	return c.module
}

// RouteNames returns the page route names.
func (c *Controller) RouteNames() RouteNames {
	return c.routes
}

// Labels returns the translator the controller reads its labels from.
func (c *Controller) Labels() *translator.Translator {
	return c.labels
}

// Singular returns the singular label.
func (c *Controller) Singular() string {
	return c.labels.Singular(c.name)
}

// Plural returns the plural label.
func (c *Controller) Plural() string {
	return c.labels.Plural(c.name)
}

// DestroyConfirmation is the message shown before deleting an item.
func (c *Controller) DestroyConfirmation() string {
	return fmt.Sprintf("Are you sure you want to delete this %s?", c.Singular())
}

// Read fetches the resource list.
func (c *Controller) Read(ctx context.Context) (*httpclient.Response, error) {
	return c.svc.Read(ctx, c.name)
}

// Create sends item to the server.
func (c *Controller) Create(ctx context.Context, item any) (*httpclient.Response, error) {
	return c.svc.Create(ctx, c.name, item)
}

// Update sends item to the item endpoint.
func (c *Controller) Update(ctx context.Context, item any) (*httpclient.Response, error) {
	return c.svc.Update(ctx, c.name, item)
}

// Destroy deletes id.
func (c *Controller) Destroy(ctx context.Context, id string) (*httpclient.Response, error) {
	return c.svc.Destroy(ctx, c.name, id)
}

// Show fetches one item.
func (c *Controller) Show(ctx context.Context, id string) (*httpclient.Response, error) {
	return c.svc.Show(ctx, c.name, id)
}

// ShowByCurrentRouteID fetches the item named by the current route.
func (c *Controller) ShowByCurrentRouteID(ctx context.Context) (*httpclient.Response, error) {
	id, err := c.currentRouteID()
	if err != nil {
		return nil, err
	}
	return c.Show(ctx, id)
}

// All returns the items the module's all getter yields, so an extension
// that replaces the getter is honoured.
func (c *Controller) All() []store.Item {
	// The module was registered by New; the lookup cannot miss.
	items, _ := c.svc.All(c.name)
	return items
}

// ByID returns the item the module's byId getter yields for id.
func (c *Controller) ByID(id string) (store.Item, bool) {
	item, ok, _ := c.svc.ByID(c.name, id)
	return item, ok
}

// ByCurrentRouteID returns the stored item named by the current route.
func (c *Controller) ByCurrentRouteID() (store.Item, bool) {
	id, err := c.currentRouteID()
	if err != nil {
		return nil, false
	}
	return c.ByID(id)
}

// GoToOverviewPage navigates to the overview page.
func (c *Controller) GoToOverviewPage() error {
	return c.goTo(c.routes.Overview, "", nil)
}

// GoToShowPage navigates to the show page of id.
func (c *Controller) GoToShowPage(id string) error {
	return c.goTo(c.routes.Show, id, nil)
}

// GoToEditPage navigates to the edit page of id.
func (c *Controller) GoToEditPage(id string, query url.Values) error {
	return c.goTo(c.routes.Edit, id, query)
}

// GoToCreatePage navigates to the create page.
func (c *Controller) GoToCreatePage(query url.Values) error {
	return c.goTo(c.routes.Create, "", query)
}

func (c *Controller) goTo(route, id string, query url.Values) error {
	if c.router == nil {
		return ErrNoRouter
	}
	return c.router.GoToRoute(route, id, query)
}

func (c *Controller) currentRouteID() (string, error) {
	if c.router == nil {
		return "", ErrNoRouter
	}
	id := c.router.CurrentRouteID()
	if id == "" {
		return "", ErrNoRouteID
	}
	return id, nil
}
