package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"volt/internal/infrastructure/ratelimit"
	"volt/internal/interfaces/http/middleware"
	sharedConfig "volt/internal/shared/config"
	"volt/internal/shared/logger"
)

// Router owns the gin engine, the route table, and the per-route
// dispatch chain. Every endpoint is registered through Handle so the
// table stays the single source of truth for what exists.
type Router struct {
	engine     *gin.Engine
	table      *RouteTable
	errorPages *ErrorPages
	gate       *middleware.AuthGate
	limiter    ratelimit.Limiter
	server     sharedConfig.ServerConfig
	rateLimit  sharedConfig.RateLimitConfig
	log        logger.Interface
}

func NewRouter(
	server sharedConfig.ServerConfig,
	rateLimit sharedConfig.RateLimitConfig,
	gate *middleware.AuthGate,
	limiter ratelimit.Limiter,
	log logger.Interface,
) *Router {
	switch server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := &Router{
		engine:     gin.New(),
		table:      NewRouteTable(),
		errorPages: NewErrorPages(log),
		gate:       gate,
		limiter:    limiter,
		server:     server,
		rateLimit:  rateLimit,
		log:        log.Named("http"),
	}

	render500 := func(c *gin.Context, status int) {
		r.errorPages.Render(c, status, wantsJSON(c), "")
	}

	r.engine.Use(
		middleware.Logging(r.log),
		middleware.Recovery(r.log, render500),
		middleware.SecurityHeaders(),
		middleware.CORS(server.AllowedOrigins),
		middleware.BodyLimit(server.MaxBodyBytes),
	)

	r.engine.NoRoute(r.dispatchUnrouted)
	return r
}

// Engine exposes the underlying handler for the HTTP server and tests.
func (r *Router) Engine() *gin.Engine { return r.engine }

// Table exposes the route table for sitemap and robots rendering.
func (r *Router) Table() *RouteTable { return r.table }

// ErrorPages exposes the error-page registry so the application can
// install custom renderers.
func (r *Router) ErrorPages() *ErrorPages { return r.errorPages }

// Handle registers a route in the table and mounts its dispatch chain.
// A duplicate (method, path) registration is a conflict and nothing is
// mounted.
func (r *Router) Handle(method, path string, meta RouteMeta, handler gin.HandlerFunc) error {
	if _, err := r.table.Register(method, path, meta); err != nil {
		return err
	}

	// Rate limiting only bites in release mode; debug and test runs
	// stay unthrottled.
	chain := make([]gin.HandlerFunc, 0, 3)
	if r.server.Mode == "release" && r.rateLimit.Enabled && r.limiter != nil && len(meta.RateLimitGroups) > 0 {
		chain = append(chain, middleware.RateLimit(r.limiter, meta.RateLimitGroups, r.log))
	}
	chain = append(chain, r.gate.Gate(meta.RequiresAuth, meta.Page), handler)

	r.engine.Handle(method, path, chain...)
	return nil
}

// ServeStatic mounts a file tree under prefix and records it in the
// table so preflight answers and robots generation see it.
func (r *Router) ServeStatic(prefix, dir string) error {
	if _, err := r.table.Register("GET", prefix+"/*filepath", RouteMeta{HideFromRobots: true}); err != nil {
		return err
	}
	r.engine.Static(prefix, dir)
	return nil
}

// MustHandle is Handle for startup wiring, where a duplicate route is a
// programming error.
func (r *Router) MustHandle(method, path string, meta RouteMeta, handler gin.HandlerFunc) {
	if err := r.Handle(method, path, meta, handler); err != nil {
		panic(err)
	}
}

// dispatchUnrouted answers everything gin found no handler for.
// Preflight requests succeed when the method the browser announced in
// Access-Control-Request-Method is registered for the path, or, absent
// that header, when any method is. Everything else is the terminal 404.
func (r *Router) dispatchUnrouted(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		if r.preflightTargetExists(c) {
			c.Status(http.StatusNoContent)
			return
		}
		r.errorPages.Render(c, http.StatusNotFound, wantsJSON(c), "")
		return
	}
	r.errorPages.Render(c, http.StatusNotFound, wantsJSON(c), "")
}

func (r *Router) preflightTargetExists(c *gin.Context) bool {
	if method := c.GetHeader("Access-Control-Request-Method"); method != "" {
		_, ok := r.table.Match(strings.ToUpper(method), c.Request.URL.Path)
		return ok
	}
	return r.table.HasPath(c.Request.URL.Path)
}

// wantsJSON picks the error-body shape from the Accept header. API
// clients that don't ask for HTML get JSON.
func wantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return !strings.Contains(accept, "text/html")
}
