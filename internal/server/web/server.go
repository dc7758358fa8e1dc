// Package web serves the local GastroGuide views as JSON over HTTP. Each protected route
// is gated by the session and role guards; a denied request is answered with a redirect.
package web

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/gastroguide/internal/api"
	"github.com/and161185/gastroguide/internal/app"
	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/guard"
	"github.com/and161185/gastroguide/internal/limiter"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/store"
)

// Roles allowed on the creator and admin views.
const (
	RoleCreator = "CREATOR"
	RoleAdmin   = "ADMIN"
)

// keyResume is the scratch key holding the view to resume after login.
const keyResume = "gg_resume"

// Server exposes an App over HTTP.
type Server struct {
	app *app.App
	lim limiter.Limiter
	log *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithLimiter replaces the default login throttle.
func WithLimiter(l limiter.Limiter) Option { return func(s *Server) { s.lim = l } }

// New returns a server for a. Five failed logins within 15 minutes lock the
// (email, client) pair for 15 minutes unless WithLimiter says otherwise.
func New(a *app.App, opts ...Option) *Server {
	s := &Server{app: a, log: a.Log.Named("web")}
	for _, o := range opts {
		o(s)
	}
	if s.lim == nil {
		s.lim = limiter.NewMemory(15*time.Minute, 5, 15*time.Minute)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	g := s.app.Guard
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Handle("/metrics", promhttp.Handler())

	r.Get(s.app.Config.LoginPath, s.loginPage)
	r.Post(s.app.Config.LoginPath, s.login)
	r.Post("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(g.Session)
		r.Get("/me", s.me)
		r.Patch("/me", s.updateMe)
		r.Get("/courses", s.courses)
		r.Get("/cart", s.cart)
		r.Post("/cart", s.addToCart)
		r.Delete("/cart/{id}", s.removeFromCart)
		r.Post("/cart/checkout", s.checkout)
		r.Get("/library", s.library)
		r.Get("/reels", s.reels)
		r.Post("/reels/{id}/{action:view|like|comment}", s.reelEvent)
		r.Get(s.app.Config.HomePath, s.me)

		r.Group(func(r chi.Router) {
			r.Use(g.Role(RoleCreator, RoleAdmin))
			r.Post("/reels", s.createReel)
			r.Get("/studio/stats", s.stats)
		})
		r.Group(func(r chi.Router) {
			r.Use(g.Role(RoleAdmin))
			r.Get("/admin/users", s.users)
		})
	})
	return r
}

// loginPage remembers where to go after a successful login.
func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	to := safePath(r.URL.Query().Get(guard.RedirectParam))
	if to != "" {
		if err := s.app.Scratch.Set(r.Context(), keyResume, to); err != nil {
			s.log.Warn("remember redirect", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redirectTo": to,
		"expired":    r.URL.Query().Get("expired") == "1",
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	client := limiter.HashClient(clientHost(r))
	if ok, retry := s.lim.Allow(r.Context(), in.Email, client); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}

	// read before Login: a successful login does not clear scratch, a 401 does
	resume, _ := s.app.Scratch.Get(r.Context(), keyResume)
	res, err := s.app.API.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if api.IsUnauthorized(err) {
			if blocked, d := s.lim.Failure(r.Context(), in.Email, client); blocked {
				s.log.Info("login locked", zap.Duration("for", d))
			}
		}
		s.fail(w, err)
		return
	}
	s.lim.Success(r.Context(), in.Email, client)
	_ = s.app.Scratch.Remove(r.Context(), keyResume)
	if resume == "" {
		resume = s.app.Config.HomePath
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redirect": resume,
		"role":     s.app.Session.GetRole(r.Context(), res.Profile),
		"profile":  res.Profile,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.app.API.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p := s.app.Session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": p,
		"role":    s.app.Session.GetRole(r.Context(), p),
	})
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var patch model.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p, err := s.app.Session.UpdateProfile(r.Context(), patch)
	if err != nil {
		if p != nil {
			// kept locally, the server did not confirm
			writeJSON(w, http.StatusAccepted, map[string]any{"profile": p, "error": err.Error()})
			return
		}
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) courses(w http.ResponseWriter, r *http.Request) {
	list, err := s.app.API.Courses(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) cart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.app.Cart.Items(),
		"total": s.app.Cart.Total(),
	})
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var c model.Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.ID == "" {
		writeError(w, http.StatusBadRequest, "course id required")
		return
	}
	if !s.app.Cart.Add(r.Context(), c) {
		writeError(w, http.StatusConflict, "already in cart")
		return
	}
	writeJSON(w, http.StatusCreated, s.app.Cart.Items())
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	s.app.Cart.Remove(r.Context(), model.ID(chi.URLParam(r, "id")))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	if len(s.app.Cart.Items()) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}
	order, bought := s.app.Cart.Checkout(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"order": order, "courses": bought})
}

func (s *Server) library(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Purchased.Items())
}

func (s *Server) reels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Reels.Items())
}

func (s *Server) createReel(w http.ResponseWriter, r *http.Request) {
	var in store.NewReel
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Src) == "" {
		writeError(w, http.StatusBadRequest, "src required")
		return
	}
	writeJSON(w, http.StatusCreated, s.app.Reels.Add(r.Context(), in))
}

func (s *Server) reelEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reel id")
		return
	}
	var m model.ReelMetric
	switch chi.URLParam(r, "action") {
	case "view":
		m = s.app.Stats.RegisterView(r.Context(), id)
	case "like":
		m = s.app.Stats.RegisterLike(r.Context(), id)
	default:
		m = s.app.Stats.RegisterComment(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"totals":  s.app.Stats.Totals(),
		"perReel": s.app.Stats.PerReel(),
		"top":     s.app.Stats.Top(5),
	})
}

func (s *Server) users(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Users.Items())
}

// fail maps a remote or session error onto a response.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var se *api.StatusError
	switch {
	case api.IsUnauthorized(err):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrStale):
		writeError(w, http.StatusConflict, "session changed")
	case errors.As(err, &se):
		writeError(w, http.StatusBadGateway, se.Error())
	default:
		s.log.Warn("request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream unavailable")
	}
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// safePath accepts only same-origin absolute paths.
func safePath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
