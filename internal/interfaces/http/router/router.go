// Package router mounts the API's route groups under a versioned prefix.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// Router mounts DomainGroups under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	groups     []*DomainGroup
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion overrides the default "v1" prefix segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues groups for Setup
func (r *Router) Register(groups ...*DomainGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup mounts every registered group on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath())
	for _, g := range r.groups {
		g.mount(api)
	}
}

func (r *Router) BasePath() string { return "/api/" + r.apiVersion }

// RouteInfo is a mounted method and full path
type RouteInfo struct {
	Method string
	Path   string
}

// Routes lists the registered routes in registration order
func (r *Router) Routes() []RouteInfo {
	var out []RouteInfo
	for _, g := range r.groups {
		for _, rt := range g.routes {
			out = append(out, RouteInfo{Method: rt.method, Path: path.Join(r.BasePath(), g.prefix, rt.path)})
		}
	}
	return out
}

// DomainGroup is one API area: a prefix, its middleware and its routes
type DomainGroup struct {
	name       string
	prefix     string
	middleware gin.HandlersChain
	routes     []route
}

type route struct {
	method string
	path   string
	chain  gin.HandlersChain
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use appends middleware that runs before every route of the group
func (g *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

func (g *DomainGroup) GET(p string, chain ...gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodGet, p, chain)
}

func (g *DomainGroup) POST(p string, chain ...gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodPost, p, chain)
}

func (g *DomainGroup) DELETE(p string, chain ...gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodDelete, p, chain)
}

func (g *DomainGroup) add(method, p string, chain gin.HandlersChain) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: p, chain: chain})
	return g
}

func (g *DomainGroup) mount(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		rg.Handle(rt.method, rt.path, rt.chain...)
	}
}

func (g *DomainGroup) Name() string { return g.name }
