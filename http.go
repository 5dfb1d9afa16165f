package authsync

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard protects routes with synchronized auth state instead of
// re-validating tokens per request: the Synchronizer already mirrors the
// provider's truth, so the guard only reads snapshots.
type RouteGuard struct {
	sync             *Synchronizer
	Logger           Logger
	LoginPath        string
	RejectedRouteKey string
	ErrorHandler     func(c router.Context, err error) error
}

func NewRouteGuard(sync *Synchronizer) *RouteGuard {
	g := &RouteGuard{
		sync:             sync,
		Logger:           defLogger{},
		LoginPath:        "/login",
		RejectedRouteKey: "rejected_route",
	}
	g.ErrorHandler = g.defaultErrHandler

	return g
}

// Protected returns middleware that rejects requests while no session is
// mirrored. With optional set, unauthenticated requests proceed without
// state injected.
func (g *RouteGuard) Protected(optional bool) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			state := g.sync.State()

			if state.IsLoading {
				// Initial fetch still pending: the mirror cannot vouch for
				// either outcome yet.
				return g.ErrorHandler(c, ErrSessionMissing.Clone())
			}

			if !state.IsAuthenticated {
				if optional {
					g.Logger.Debug("optional auth: no session, proceeding")
					return hf(c)
				}

				g.SetRedirect(c)
				return g.ErrorHandler(c, ErrSessionMissing.Clone())
			}

			c.Locals("auth_user", state.User)
			c.SetContext(WithStateContext(c.Context(), state))
			return hf(c)
		}
	}
}

// GetRedirect pops the rejected-route cookie, falling back to def.
func (g *RouteGuard) GetRedirect(c router.Context, def ...string) string {
	r := c.Cookies(g.RejectedRouteKey)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return "/"
	}
	g.cookieDel(c, g.RejectedRouteKey)
	return r
}

// SetRedirect remembers the rejected route so the login flow can return
// the user where they were headed.
func (g *RouteGuard) SetRedirect(c router.Context) {
	g.Logger.Info("setting redirect cookie", "key", g.RejectedRouteKey, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     g.RejectedRouteKey,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "authentication required").
			WithCode(goerrors.CodeUnauthorized)
	}

	g.Logger.Info(
		"route guard rejection",
		"error", richErr.Message,
		"details", print.MaybePrettyJSON(richErr.Metadata),
		"path", c.OriginalURL(),
	)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(g.LoginPath, statusCode)
}
