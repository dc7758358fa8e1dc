// Package guard decides whether a protected view may be entered.
//
// Decisions are navigation hints for the local client. The remote API enforces access on
// its own; nothing here is a security boundary.
package guard

import (
	"context"
	"net/http"
	"net/url"

	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/and161185/gastroguide/internal/session"
	"go.uber.org/zap"
)

// Default navigation targets.
const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/home2"
	RedirectParam    = "redirectTo"
)

// Decision is either "proceed" (Allow) or a redirect target.
type Decision struct {
	Allow    bool
	Redirect string
}

// Proceed is the allowing decision.
var Proceed = Decision{Allow: true}

// Guard evaluates session and role requirements against a session.
type Guard struct {
	sess  *session.Session
	login string
	home  string
	log   *zap.Logger
}

// Option customizes a Guard.
type Option func(*Guard)

// WithLoginPath overrides the login surface path.
func WithLoginPath(p string) Option { return func(g *Guard) { g.login = p } }

// WithHomePath overrides the default authenticated landing page.
func WithHomePath(p string) Option { return func(g *Guard) { g.home = p } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(g *Guard) { g.log = l } }

// New constructs a guard over sess.
func New(sess *session.Session, opts ...Option) *Guard {
	g := &Guard{sess: sess, login: DefaultLoginPath, home: DefaultHomePath}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	return g
}

// RequireSession allows entry when a token is present and a usable profile can be loaded.
// Without a token it redirects to login carrying requested for resumption; with a token but
// no profile the token is treated as stale and the session is cleared first.
func (g *Guard) RequireSession(ctx context.Context, requested string) Decision {
	if !g.sess.Tokens().Has(ctx) {
		return Decision{Redirect: g.loginWith(requested)}
	}
	if p := g.sess.EnsureProfileLoaded(ctx); p != nil {
		return Proceed
	}
	g.log.Info("token without profile, clearing session")
	metrics.SessionEvents.WithLabelValues(metrics.EventUnauthorized).Inc()
	g.sess.ClearSession(ctx)
	return Decision{Redirect: g.loginWith(requested)}
}

// RequireRole allows entry when the effective role is one of allowed (case-insensitive).
// An empty allow-list always proceeds. A missing profile clears the session and redirects
// to login; a role outside the list redirects to the landing page.
func (g *Guard) RequireRole(ctx context.Context, allowed ...string) Decision {
	if len(allowed) == 0 {
		return Proceed
	}
	p := g.sess.EnsureProfileLoaded(ctx)
	if p == nil {
		g.sess.ClearSession(ctx)
		return Decision{Redirect: g.login}
	}
	if g.sess.HasRole(ctx, p, allowed...) {
		return Proceed
	}
	g.log.Debug("role denied",
		zap.String("role", g.sess.GetRole(ctx, p)),
		zap.Strings("allowed", allowed),
	)
	return Decision{Redirect: g.home}
}

func (g *Guard) loginWith(requested string) string {
	if requested == "" {
		return g.login
	}
	return g.login + "?" + url.Values{RedirectParam: {requested}}.Encode()
}

// Session is RequireSession as HTTP middleware.
func (g *Guard) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.RequireSession(r.Context(), r.URL.RequestURI())
		if !d.Allow {
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Role returns RequireRole(allowed...) as HTTP middleware.
func (g *Guard) Role(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.RequireRole(r.Context(), allowed...)
			if !d.Allow {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
