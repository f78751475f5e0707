// Package router assembles the import API: the gin engine with its
// middleware stack and the versioned route groups.
package router

import (
	"github.com/gin-gonic/gin"
)

// Group is a prefixed set of routes of one functional area. Middleware
// given to NewGroup runs before every route of the group.
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewGroup creates an empty group mounted at prefix
func NewGroup(prefix string, middleware ...gin.HandlerFunc) *Group {
	return &Group{prefix: prefix, middleware: middleware}
}

// Handle adds a route; handlers run in order, route guards first
func (g *Group) Handle(method, path string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// Prefix returns the mount prefix
func (g *Group) Prefix() string {
	return g.prefix
}

// Mount registers the group on rg
func (g *Group) Mount(rg *gin.RouterGroup) {
	sub := rg.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		sub.Handle(r.method, r.path, r.handlers...)
	}
}

// API mounts groups under /api/{version}
type API struct {
	engine  *gin.Engine
	version string
	groups  []*Group
}

// APIOption configures an API
type APIOption func(*API)

// WithVersion sets the version segment of the prefix, "v1" by default
func WithVersion(version string) APIOption {
	return func(a *API) {
		a.version = version
	}
}

// NewAPI creates an API on engine
func NewAPI(engine *gin.Engine, opts ...APIOption) *API {
	a := &API{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add queues groups for Mount
func (a *API) Add(groups ...*Group) *API {
	a.groups = append(a.groups, groups...)
	return a
}

// Mount registers every queued group on the engine
func (a *API) Mount() {
	api := a.engine.Group("/api/" + a.version)
	for _, g := range a.groups {
		g.Mount(api)
	}
}
