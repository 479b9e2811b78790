package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volt/internal/shared/errors"
)

func TestRouteTableDuplicateIsConflict(t *testing.T) {
	table := NewRouteTable()

	_, err := table.Register("GET", "/user", RouteMeta{})
	require.NoError(t, err)

	_, err = table.Register("GET", "/user", RouteMeta{})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// Same path under a different method is a distinct route.
	_, err = table.Register("POST", "/user", RouteMeta{})
	assert.NoError(t, err)
}

func TestRouteTableRejectsInvalidRegistration(t *testing.T) {
	table := NewRouteTable()

	_, err := table.Register("GET", "no-leading-slash", RouteMeta{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = table.Register("", "/x", RouteMeta{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRouteTableExactMatchBeatsPatterns(t *testing.T) {
	table := NewRouteTable()

	_, err := table.Register("GET", "/files/:name", RouteMeta{})
	require.NoError(t, err)
	exact, err := table.Register("GET", "/files/readme", RouteMeta{RequiresAuth: true})
	require.NoError(t, err)

	got, ok := table.Match("GET", "/files/readme")
	require.True(t, ok)
	assert.Same(t, exact, got, "literal route wins over the earlier pattern")

	got, ok = table.Match("GET", "/files/other")
	require.True(t, ok)
	assert.Equal(t, "/files/:name", got.Path)
}

func TestRouteTablePatternsMatchInRegistrationOrder(t *testing.T) {
	table := NewRouteTable()

	first, err := table.Register("GET", "/a/:x/b", RouteMeta{})
	require.NoError(t, err)
	_, err = table.Register("GET", "/a/*rest", RouteMeta{})
	require.NoError(t, err)

	got, ok := table.Match("GET", "/a/1/b")
	require.True(t, ok)
	assert.Same(t, first, got)

	got, ok = table.Match("GET", "/a/1/2/3")
	require.True(t, ok)
	assert.Equal(t, "/a/*rest", got.Path)

	_, ok = table.Match("POST", "/a/1/b")
	assert.False(t, ok, "method must match")
}

func TestRouteTableHasPathIgnoresMethod(t *testing.T) {
	table := NewRouteTable()

	_, err := table.Register("POST", "/auth/signin", RouteMeta{})
	require.NoError(t, err)
	_, err = table.Register("GET", "/files/:name", RouteMeta{})
	require.NoError(t, err)

	assert.True(t, table.HasPath("/auth/signin"))
	assert.True(t, table.HasPath("/files/anything"))
	assert.False(t, table.HasPath("/missing"))
}

func TestRouteTableSitemapAndRobots(t *testing.T) {
	table := NewRouteTable()

	_, err := table.Register("GET", "/pricing", RouteMeta{Sitemap: true})
	require.NoError(t, err)
	_, err = table.Register("GET", "/admin", RouteMeta{HideFromRobots: true})
	require.NoError(t, err)
	_, err = table.Register("GET", "/files/:name", RouteMeta{Sitemap: true})
	require.NoError(t, err)
	_, err = table.Register("POST", "/pricing", RouteMeta{Sitemap: true})
	require.NoError(t, err)

	sitemap := table.Sitemap("https://volt.example/")
	assert.Contains(t, sitemap, "<loc>https://volt.example/pricing</loc>")
	assert.NotContains(t, sitemap, "/files/", "pattern routes have no single URL")
	assert.Equal(t, 1, strings.Count(sitemap, "<loc>"), "POST routes are not pages")

	robots := table.Robots()
	assert.Contains(t, robots, "Disallow: /admin\n")
	assert.NotContains(t, robots, "/pricing")
}

func TestRouteTableRobotsEmptyDisallow(t *testing.T) {
	table := NewRouteTable()
	_, err := table.Register("GET", "/", RouteMeta{})
	require.NoError(t, err)

	assert.Contains(t, table.Robots(), "Disallow:\n")
}
