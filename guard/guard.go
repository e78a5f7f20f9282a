// Package guard maps a session and a path to a render-or-redirect decision.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/rotiminicol/ijeuwa/types"
)

// Page identifies what the client renders.
type Page string

const (
	PageLoading  Page = "loading"
	PageNotFound Page = "not-found"

	PageHome           Page = "home"
	PageLanding        Page = "landing"
	PageNotifications  Page = "notifications"
	PageMessages       Page = "messages"
	PageProfile        Page = "profile"
	PageJobs           Page = "jobs"
	PageLists          Page = "lists"
	PageMonetization   Page = "monetization"
	PagePurchases      Page = "purchases"
	PageCommunities    Page = "communities"
	PageSpace          Page = "space"
	PageSearch         Page = "search"
	PageMiamour        Page = "miamour"
	PageVerification   Page = "verification"
	PageLogin          Page = "login"
	PageSignup         Page = "signup"
	PageForgotPassword Page = "forgot-password"
)

// Access says which sessions may see a route.
type Access int

const (
	// Unconditional routes render for everyone.
	Unconditional Access = iota
	// Protected routes need an identity.
	Protected
	// PublicOnly routes are for visitors without an identity.
	PublicOnly
)

// LoginPath is where protected routes send visitors without an identity.
const LoginPath = "/login"

// Route binds a path template to a page.
type Route struct {
	Path   string
	Page   Page
	Access Access
	// SignedInTarget is where a PublicOnly route sends a signed-in user.
	SignedInTarget string
}

// DefaultRoutes is the client's route table.
var DefaultRoutes = []Route{
	{Path: "/", Page: PageHome},
	{Path: "/landing", Page: PageLanding},

	{Path: "/home", Page: PageHome, Access: Protected},
	{Path: "/transaction-history", Page: PageNotifications, Access: Protected},
	{Path: "/messages", Page: PageMessages, Access: Protected},
	{Path: "/profile/{username}", Page: PageProfile, Access: Protected},
	{Path: "/jobs", Page: PageJobs, Access: Protected},
	{Path: "/lists", Page: PageLists, Access: Protected},
	{Path: "/monetization", Page: PageMonetization, Access: Protected},
	{Path: "/purchases", Page: PagePurchases, Access: Protected},
	{Path: "/communities", Page: PageCommunities, Access: Protected},
	{Path: "/space", Page: PageSpace, Access: Protected},
	{Path: "/search", Page: PageSearch, Access: Protected},
	{Path: "/miamour", Page: PageMiamour, Access: Protected},
	{Path: "/verification", Page: PageVerification, Access: Protected},

	{Path: "/login", Page: PageLogin, Access: PublicOnly, SignedInTarget: "/home"},
	{Path: "/signup", Page: PageSignup, Access: PublicOnly, SignedInTarget: "/verification"},
	{Path: "/forgot-password", Page: PageForgotPassword, Access: PublicOnly, SignedInTarget: "/home"},
}

// Decision is either a page to render or a path to redirect to.
type Decision struct {
	Page       Page
	RedirectTo string
	Params     map[string]string
}

// Redirect reports whether the decision sends the user elsewhere.
func (d Decision) Redirect() bool {
	return d.RedirectTo != ""
}

// Guard is safe for concurrent use. Decide has no side effects.
type Guard struct {
	router *mux.Router
	routes map[string]Route
}

// New compiles a route table. Duplicate paths and PublicOnly routes without a
// target are rejected.
func New(routes []Route) (*Guard, error) {
	g := &Guard{
		router: mux.NewRouter(),
		routes: make(map[string]Route, len(routes)),
	}
	for _, r := range routes {
		if _, dup := g.routes[r.Path]; dup {
			return nil, errors.Errorf("guard: duplicate route %q", r.Path)
		}
		if r.Access == PublicOnly && r.SignedInTarget == "" {
			return nil, errors.Errorf("guard: public-only route %q has no signed-in target", r.Path)
		}
		route := g.router.Path(strings.ToLower(r.Path)).Name(r.Path)
		if err := route.GetError(); err != nil {
			return nil, errors.Wrapf(err, "guard: route %q", r.Path)
		}
		g.routes[r.Path] = r
	}
	return g, nil
}

// Default returns a Guard over DefaultRoutes.
func Default() *Guard {
	g, err := New(DefaultRoutes)
	if err != nil {
		panic(err)
	}
	return g
}

/*
Decide applies, in order:

 1. Idle or Loading session: render PageLoading, never redirect.
 2. Protected route without identity (Failed included): redirect to LoginPath.
 3. PublicOnly route with identity: redirect to the route's SignedInTarget.
 4. Otherwise render the bound page, PageNotFound for unknown paths.
*/
func (g *Guard) Decide(s types.Session, path string) Decision {
	if !s.Resolved() {
		return Decision{Page: PageLoading}
	}

	r, params, ok := g.match(path)
	if !ok {
		return Decision{Page: PageNotFound}
	}

	signedIn := s.Authenticated()
	switch {
	case r.Access == Protected && !signedIn:
		return Decision{RedirectTo: LoginPath}
	case r.Access == PublicOnly && signedIn:
		return Decision{RedirectTo: r.SignedInTarget}
	}
	return Decision{Page: r.Page, Params: params}
}

// IsProtected reports whether path needs an identity.
func (g *Guard) IsProtected(path string) bool {
	r, _, ok := g.match(path)
	return ok && r.Access == Protected
}

// IsPublicOnly reports whether path is only for visitors without an identity.
func (g *Guard) IsPublicOnly(path string) bool {
	r, _, ok := g.match(path)
	return ok && r.Access == PublicOnly
}

// match is case-insensitive like the client's router. Params keep the case
// of the requested path.
func (g *Guard) match(path string) (Route, map[string]string, bool) {
	path = normalize(path)
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: strings.ToLower(path)}}

	var m mux.RouteMatch
	if !g.router.Match(req, &m) || m.Route == nil {
		return Route{}, nil, false
	}
	r, ok := g.routes[m.Route.GetName()]
	if !ok {
		return Route{}, nil, false
	}
	if len(m.Vars) == 0 {
		return r, nil, true
	}
	return r, params(r.Path, path), true
}

// params reads the {name} segments of template out of path.
func params(template, path string) map[string]string {
	tseg := strings.Split(template, "/")
	pseg := strings.Split(path, "/")
	out := make(map[string]string)
	for i, seg := range tseg {
		if i >= len(pseg) || !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
		if j := strings.IndexByte(name, ':'); j >= 0 {
			name = name[:j]
		}
		out[name] = pseg[i]
	}
	return out
}

// normalize drops the query, fragment and trailing slash.
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
