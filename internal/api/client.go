// Package api is the client of the remote GastroGuide API. Auth responses flow into the
// session; every other call goes through the authorization attachment transport.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/gastroguide/internal/authattach"
	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/store"
	"go.uber.org/zap"
)

const maxBody = 4 << 20

// StatusError is a non-2xx answer other than 401. It is meant for display.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
}

// Client talks to the remote API on behalf of one session.
type Client struct {
	base  string
	http  *http.Client
	sess  *session.Session
	users *store.Users
	log   *zap.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	base    http.RoundTripper
	timeout time.Duration
	users   *store.Users
	log     *zap.Logger
	attach  []authattach.Option
}

// WithTransport sets the transport under the authorization attachment.
func WithTransport(rt http.RoundTripper) Option { return func(o *clientOptions) { o.base = rt } }

// WithTimeout bounds every call.
func WithTimeout(d time.Duration) Option { return func(o *clientOptions) { o.timeout = d } }

// WithUsers records successful registrations in the local user list.
func WithUsers(u *store.Users) Option { return func(o *clientOptions) { o.users = u } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *clientOptions) { o.log = l } }

// WithAttachOptions configures the authorization attachment.
func WithAttachOptions(opts ...authattach.Option) Option {
	return func(o *clientOptions) { o.attach = append(o.attach, opts...) }
}

// New returns a client for baseURL and registers it as the session's remote profile API.
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	o := clientOptions{timeout: 30 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	attach := append([]authattach.Option{authattach.WithLogger(o.log)}, o.attach...)
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: authattach.NewTransport(o.base, sess, attach...),
			Timeout:   o.timeout,
		},
		sess:  sess,
		users: o.users,
		log:   o.log,
	}
	sess.SetRemote(c)
	return c
}

// do sends body as JSON and returns the raw response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read: %w", method, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s %s: %w", method, path, errs.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Message: serverMessage(raw)}
	}
	return raw, nil
}

// serverMessage pulls a human-readable message out of an error body.
func serverMessage(raw []byte) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		for _, k := range []string{"message", "error", "detail"} {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

func decodeObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// IsUnauthorized reports whether err came from a 401 answer.
func IsUnauthorized(err error) bool { return errors.Is(err, errs.ErrUnauthorized) }
