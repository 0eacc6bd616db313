package authz

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

// Redirect targets.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Route is a view of the application.
type Route struct {
	Name string

	// Path is a gorilla/mux path template (eg. /posts/{id}).
	Path string

	// RequiresAuth marks routes that need a session.
	// Public routes are only available without one (eg. login).
	RequiresAuth bool
}

// DefaultRoutes lists the views of the feed application.
var DefaultRoutes = []Route{
	{Name: "login", Path: "/login", RequiresAuth: false},
	{Name: "signup", Path: "/signup", RequiresAuth: false},
	{Name: "home", Path: "/", RequiresAuth: true},
	{Name: "shorts", Path: "/shorts", RequiresAuth: true},
	{Name: "create", Path: "/create", RequiresAuth: true},
	{Name: "search", Path: "/search", RequiresAuth: true},
	{Name: "profile", Path: "/profile", RequiresAuth: true},
	{Name: "post-detail", Path: "/posts/{id}", RequiresAuth: true},
}

// Decision is the outcome of a navigation check.
type Decision struct {
	// Route is the matched route. Unknown paths yield a zero Route.
	Route Route

	// Vars are the path variables of the matched route.
	Vars map[string]string

	// Redirect is the path to navigate to instead. Empty if navigation is allowed.
	Redirect string
}

// Allowed reports whether navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Guard decides whether a navigation is allowed based on the session state.
type Guard struct {
	router *mux.Router
	routes map[string]Route
}

// NewGuard returns a new Guard for routes.
func NewGuard(routes []Route) Guard {
	g := Guard{
		router: mux.NewRouter(),
		routes: make(map[string]Route, len(routes)),
	}

	for _, route := range routes {
		g.router.Path(route.Path).Name(route.Name)
		g.routes[route.Name] = route
	}

	return g
}

// Authorize decides about navigating to path.
//
// Unauthenticated navigation to a protected route redirects to LoginPath,
// authenticated navigation to a public route redirects to HomePath.
// Paths matching no route are treated as protected.
func (g Guard) Authorize(path string, authenticated bool) Decision {
	decision := Decision{
		Route: Route{Path: path, RequiresAuth: true},
	}

	var match mux.RouteMatch
	if g.router.Match(&http.Request{Method: http.MethodGet, URL: &url.URL{Path: path}}, &match) && match.Route != nil {
		decision.Route = g.routes[match.Route.GetName()]
		decision.Vars = match.Vars
	}

	switch {
	case decision.Route.RequiresAuth && !authenticated:
		decision.Redirect = LoginPath
	case !decision.Route.RequiresAuth && authenticated:
		decision.Redirect = HomePath
	}

	return decision
}
