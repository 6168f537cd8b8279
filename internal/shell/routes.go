// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package shell

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/decouple-mfe/mfeshell/internal/rebase"
)

// Route assigns a base path to a plugin.
type Route struct {
	Name     string `koanf:"name" yaml:"name"`
	BasePath string `koanf:"base-path" yaml:"base-path"`
}

// DefaultRoutes returns the routes of the three built-in plugins.
func DefaultRoutes() []Route {
	return []Route{
		{Name: "mfeA", BasePath: "/mfe-a"},
		{Name: "mfeB", BasePath: "/mfe-b"},
		{Name: "mfeC", BasePath: "/mfe-c"},
	}
}

var basePathPattern = regexp.MustCompile(`^(/[A-Za-z0-9._~-]+)+$`)

// RouteTable selects at most one route for a path.
type RouteTable struct {
	routes []Route
	// byLength is ordered longest base path first for matching.
	byLength []Route
}

// NewRouteTable validates routes and builds a table.
//
// Base paths must start with "/", must not end with "/" and must be unique.
// Nested base paths are allowed; the longest match wins.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		if r.Name == "" {
			return nil, errInvalidRoute(r, "plugin name is required")
		}
		if !strings.HasPrefix(r.BasePath, "/") {
			return nil, errInvalidRoute(r, "base path must start with /")
		}
		if strings.HasSuffix(r.BasePath, "/") {
			return nil, errInvalidRoute(r, "base path must not end with /")
		}
		if !basePathPattern.MatchString(r.BasePath) {
			return nil, errInvalidRoute(r, "base path contains invalid characters")
		}
		if _, dup := seen[r.BasePath]; dup {
			return nil, errInvalidRoute(r, "base path is already routed")
		}
		seen[r.BasePath] = struct{}{}
	}

	t := &RouteTable{
		routes:   slices.Clone(routes),
		byLength: slices.Clone(routes),
	}
	slices.SortStableFunc(t.byLength, func(a, b Route) int {
		return cmp.Compare(len(b.BasePath), len(a.BasePath))
	})
	return t, nil
}

// Match returns the route owning path.
func (t *RouteTable) Match(path string) (Route, bool) {
	for _, r := range t.byLength {
		if rebase.Under(path, r.BasePath) {
			return r, true
		}
	}
	return Route{}, false
}

// Routes returns the routes in declaration order.
func (t *RouteTable) Routes() []Route {
	return slices.Clone(t.routes)
}

// Names returns the distinct plugin names in declaration order.
func (t *RouteTable) Names() []string {
	names := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		if !slices.Contains(names, r.Name) {
			names = append(names, r.Name)
		}
	}
	return names
}
