package http

import (
	"fmt"
	"strings"
	"sync"

	"volt/internal/shared/errors"
)

// RouteMeta is the registration metadata the dispatcher consults before
// a handler runs.
type RouteMeta struct {
	// RequiresAuth short-circuits unauthenticated requests before the
	// handler.
	RequiresAuth bool
	// RateLimitGroups name the request budgets this route draws from.
	// Any exhausted group denies the request.
	RateLimitGroups []string
	// Page marks a browser-navigation route: auth failures redirect to
	// the sign-in page instead of answering 401 JSON.
	Page bool
	// Sitemap includes the route in the generated sitemap.xml.
	Sitemap bool
	// HideFromRobots lists the path as disallowed in robots.txt.
	HideFromRobots bool
}

// Route is one registered endpoint.
type Route struct {
	Method string
	Path   string
	Meta   RouteMeta

	segments []string
	pattern  bool
}

// RouteTable maps (method, path) to registration metadata. Exact
// routes resolve with a single map lookup; pattern routes (segments
// starting with ':' or '*') are scanned in registration order after an
// exact miss.
type RouteTable struct {
	mu       sync.RWMutex
	exact    map[string]*Route
	patterns []*Route
	ordered  []*Route
}

func NewRouteTable() *RouteTable {
	return &RouteTable{exact: make(map[string]*Route)}
}

// Register adds a route. Registering the same (method, literal path)
// twice is a conflict.
func (t *RouteTable) Register(method, path string, meta RouteMeta) (*Route, error) {
	if method == "" || !strings.HasPrefix(path, "/") {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid route %s %s", method, path))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := method + ":" + path
	if _, dup := t.exact[key]; dup {
		return nil, errors.NewConflictError(fmt.Sprintf("route already registered: %s %s", method, path))
	}

	r := &Route{
		Method:   method,
		Path:     path,
		Meta:     meta,
		segments: splitPath(path),
	}
	for _, seg := range r.segments {
		if strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			r.pattern = true
			break
		}
	}

	t.exact[key] = r
	if r.pattern {
		t.patterns = append(t.patterns, r)
	}
	t.ordered = append(t.ordered, r)
	return r, nil
}

// Match resolves a request path: exact lookup first, then the pattern
// routes in registration order.
func (t *RouteTable) Match(method, path string) (*Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if r, ok := t.exact[method+":"+path]; ok && !r.pattern {
		return r, true
	}

	segments := splitPath(path)
	for _, r := range t.patterns {
		if r.Method == method && matchSegments(r.segments, segments) {
			return r, true
		}
	}
	return nil, false
}

// HasPath reports whether any method is registered for the path. Used
// for preflight requests that name no method.
func (t *RouteTable) HasPath(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	segments := splitPath(path)
	for _, r := range t.ordered {
		if r.pattern {
			if matchSegments(r.segments, segments) {
				return true
			}
		} else if r.Path == path {
			return true
		}
	}
	return false
}

// Routes returns all routes in registration order.
func (t *RouteTable) Routes() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Route(nil), t.ordered...)
}

// Sitemap renders sitemap.xml from routes registered with Sitemap set.
// Only GET page routes are eligible; pattern routes are skipped since
// they have no single URL.
func (t *RouteTable) Sitemap(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, r := range t.Routes() {
		if !r.Meta.Sitemap || r.pattern || r.Method != "GET" {
			continue
		}
		b.WriteString("  <url><loc>" + baseURL + r.Path + "</loc></url>\n")
	}
	b.WriteString("</urlset>\n")
	return b.String()
}

// Robots renders robots.txt, disallowing routes marked hidden.
func (t *RouteTable) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	disallowed := map[string]bool{}
	for _, r := range t.Routes() {
		if !r.Meta.HideFromRobots || disallowed[r.Path] {
			continue
		}
		disallowed[r.Path] = true
		b.WriteString("Disallow: " + r.Path + "\n")
	}
	if len(disallowed) == 0 {
		b.WriteString("Disallow:\n")
	}
	return b.String()
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// matchSegments matches a pattern segment list against a concrete one.
// ':' segments match exactly one segment, '*' segments match the rest.
func matchSegments(pattern, actual []string) bool {
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "*") {
			return true
		}
		if i >= len(actual) {
			return false
		}
		if strings.HasPrefix(seg, ":") {
			continue
		}
		if seg != actual[i] {
			return false
		}
	}
	return len(pattern) == len(actual)
}
