package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/gastroguide/internal/claims"
	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/token"
	"go.uber.org/zap"
)

// RoleCreator is the role granted by a promotion.
const RoleCreator = "CREATOR"

// ErrEmailRequired is returned when an operation needs an email and got a blank one.
var ErrEmailRequired = errors.New("api: email is required")

// Login authenticates and applies the response to the session.
func (c *Client) Login(ctx context.Context, email, password string) (session.AuthResult, error) {
	t := c.sess.Begin()
	raw, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return session.AuthResult{}, fmt.Errorf("login: %w", err)
	}
	res, err := c.sess.ApplyAuthResponse(ctx, t, raw)
	if err != nil {
		return session.AuthResult{}, fmt.Errorf("login: %w", err)
	}
	if res.Token == "" {
		return res, fmt.Errorf("login: %w", errs.ErrNoToken)
	}
	c.log.Info("logged in", zap.String("role", c.sess.GetRole(ctx, res.Profile)))
	return res, nil
}

// Logout forgets the session locally.
func (c *Client) Logout(ctx context.Context) { c.sess.ClearSession(ctx) }

// Registration is the sign-up form.
type Registration struct {
	Username string
	Email    string
	Password string
	// Role is the requested user type, e.g. STUDENT or CREATOR.
	Role string
}

// Register creates an account. On success the entered name, email and role are cached in
// the session and the user is recorded in the local user list. A token in the response is
// applied like a login.
func (c *Client) Register(ctx context.Context, r Registration) (*model.Profile, error) {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	role := claims.NormalizeRole(r.Role)
	t := c.sess.Begin()
	raw, err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username":        r.Username,
		"email":           email,
		"password":        r.Password,
		"confirmPassword": r.Password,
		"userType":        role,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	local := model.Patch{"name": r.Username, "email": email}
	if role != "" {
		local["role"] = role
		local["roles"] = []string{role}
	}
	p, err := c.sess.PersistUserAt(ctx, t, local)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if token.FromJSON(raw) != "" {
		res, err := c.sess.ApplyAuthResponse(ctx, t, raw)
		if err != nil {
			return nil, fmt.Errorf("register: %w", err)
		}
		p = res.Profile
	}

	if c.users != nil {
		u := model.AppUser{
			Name:      r.Username,
			Email:     email,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
			Role:      role,
		}
		if role != "" {
			u.Roles = []string{role}
		}
		c.users.Add(ctx, u)
	}
	return p, nil
}

// Promotion is the outcome of PromoteToCreator.
type Promotion struct {
	Username string
	// Self is set when the promoted account is the signed-in one.
	Self bool
}

// PromoteToCreator grants the creator role to the account with email. When that account
// is the signed-in one the session role is updated right away, and a token in the response
// replaces the current one.
func (c *Client) PromoteToCreator(ctx context.Context, email string) (Promotion, error) {
	promoted := strings.ToLower(strings.TrimSpace(email))
	if promoted == "" {
		return Promotion{}, ErrEmailRequired
	}
	t := c.sess.Begin()
	raw, err := c.do(ctx, http.MethodPost, "/api/v1/auth/promote-to-creator", map[string]string{"email": promoted})
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}
	payload, err := decodeObject(raw)
	if err != nil {
		return Promotion{}, fmt.Errorf("promote: %w", err)
	}
	out := Promotion{}
	if s, ok := payload["username"].(string); ok {
		out.Username = s
	}

	cur := c.sess.Snapshot()
	if cur == nil || cur.Email == "" || strings.ToLower(strings.TrimSpace(cur.Email)) != promoted {
		return out, nil
	}
	out.Self = true
	if token.FromMap(payload) != "" {
		if _, err := c.sess.ApplyAuthResponse(ctx, t, raw); err != nil {
			return out, fmt.Errorf("promote: %w", err)
		}
	}
	if _, err := c.sess.PersistUserAt(ctx, t, model.Patch{"role": RoleCreator, "roles": []string{RoleCreator}}); err != nil {
		return out, fmt.Errorf("promote: %w", err)
	}
	return out, nil
}

// ForgotPassword asks the server to send a reset link to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrEmailRequired
	}
	raw, err := c.do(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": strings.TrimSpace(email)})
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	return messageOr(raw, "Si el correo existe, enviamos un enlace."), nil
}

// ResetPassword completes a reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, "/auth/reset-password", map[string]string{
		"token":    resetToken,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return messageOr(raw, "Contraseña actualizada correctamente."), nil
}

func messageOr(raw []byte, fallback string) string {
	m, err := decodeObject(raw)
	if err != nil {
		return fallback
	}
	if s, ok := m["message"].(string); ok && s != "" {
		return s
	}
	return fallback
}
