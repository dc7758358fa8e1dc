// Package authattach attaches the session bearer token to outgoing calls and turns an
// authorization failure from the remote API into a session invalidation.
package authattach

import (
	"context"
	"net/http"
	"strings"

	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Defaults for the authentication endpoint family and the login surface.
const (
	DefaultAuthPrefix = "/api/v1/auth"
	DefaultLoginPath  = "/login"
	RequestIDHeader   = "X-Request-ID"
)

// Session is the part of the session the attachment needs.
type Session interface {
	Token(ctx context.Context) string
	ClearSession(ctx context.Context)
}

// Option customizes Transport and the gRPC helpers.
type Option func(*options)

type options struct {
	authPrefix     string
	loginPath      string
	onUnauthorized func(redirect string)
	log            *zap.Logger
	viaCredentials bool
}

// WithAuthPrefix sets the path fragment identifying authentication endpoints,
// which never get a bearer header.
func WithAuthPrefix(p string) Option { return func(o *options) { o.authPrefix = p } }

// WithLoginPath sets the login surface the redirect points to.
func WithLoginPath(p string) Option { return func(o *options) { o.loginPath = p } }

// OnUnauthorized registers the navigation callback invoked after a 401.
func OnUnauthorized(fn func(redirect string)) Option {
	return func(o *options) { o.onUnauthorized = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// CredentialsAttached tells UnaryClientInterceptor that BearerCredentials already supply
// the token on the connection; the interceptor then only watches for Unauthenticated.
func CredentialsAttached() Option { return func(o *options) { o.viaCredentials = true } }

func newOptions(opts []Option) options {
	o := options{authPrefix: DefaultAuthPrefix, loginPath: DefaultLoginPath}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// expiredRedirect is the login target announced after an authorization failure.
func (o options) expiredRedirect() string { return o.loginPath + "?expired=1" }

func (o options) unauthorized(ctx context.Context, sess Session, target string) {
	o.log.Info("authorization rejected, clearing session", zap.String("target", target))
	metrics.SessionEvents.WithLabelValues(metrics.EventUnauthorized).Inc()
	sess.ClearSession(ctx)
	if o.onUnauthorized != nil {
		o.onUnauthorized(o.expiredRedirect())
	}
}

// Transport is an http.RoundTripper that attaches "Authorization: Bearer <token>" to
// requests outside the authentication endpoint family that carry no Authorization header
// yet. Every response passes through unchanged; a 401 additionally clears the session.
type Transport struct {
	base http.RoundTripper
	sess Session
	o    options
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, sess Session, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, sess: sess, o: newOptions(opts)}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	attached := "none"
	if out.Header.Get("Authorization") != "" {
		attached = "caller"
	} else if !strings.Contains(out.URL.String(), t.o.authPrefix) {
		if tok := t.sess.Token(ctx); tok != "" {
			out.Header.Set("Authorization", "Bearer "+tok)
			attached = "bearer"
		}
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.Must(uuid.NewV4()).String())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		metrics.Requests.WithLabelValues(attached, metrics.StatusClass(0)).Inc()
		return nil, err
	}
	metrics.Requests.WithLabelValues(attached, metrics.StatusClass(resp.StatusCode)).Inc()
	if resp.StatusCode == http.StatusUnauthorized {
		t.o.unauthorized(ctx, t.sess, out.URL.Path)
	}
	return resp, nil
}
