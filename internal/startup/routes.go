package startup

import (
	"sort"
	"strings"

	"photoshelf/internal/logging"

	"github.com/gorilla/mux"
)

// RouteInfo is one method and path pair registered on the router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes lists the router's routes in registration order. Routes without
// a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes summarizes the router. The full route table is only
// printed at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP ROUTES")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("  Could not walk routes: %v", err)
	}
	logging.Info("  %d routes registered", len(routes))
	if !logHealthChecks {
		logging.Info("  Health checks are not access-logged (LOG_HEALTH_CHECKS=true to enable)")
	}

	if !logging.IsDebugEnabled() {
		return
	}
	sorted := append([]RouteInfo(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return getRouteGroup(sorted[i].Path) < getRouteGroup(sorted[j].Path)
	})
	group := "\x00"
	for _, r := range sorted {
		if g := getRouteGroup(r.Path); g != group {
			group = g
			logging.Debug("  [%s]", orRoot(g))
		}
		logging.Debug("    %-6s %s", r.Method, r.Path)
	}
}

// getRouteGroup names the group a path is listed under: its first segment,
// or the first two for /api paths.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		sub, _, _ := strings.Cut(rest, "/")
		return "api/" + sub
	}
	return first
}

func orRoot(group string) string {
	if group == "" {
		return "root"
	}
	return group
}
