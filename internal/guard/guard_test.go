package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) (*storage.Memory, *session.Session, *Guard) {
	t.Helper()
	st := storage.NewMemory()
	log := zaptest.NewLogger(t)
	sess := session.New(context.Background(), st, session.WithLogger(log))
	return st, sess, New(sess, WithLogger(log))
}

func TestRequireSession_NoToken(t *testing.T) {
	t.Parallel()
	_, _, g := setup(t)

	d := g.RequireSession(context.Background(), "/courses/7?tab=1")
	require.False(t, d.Allow)
	require.Equal(t, "/login?redirectTo=%2Fcourses%2F7%3Ftab%3D1", d.Redirect)

	require.Equal(t, "/login", g.RequireSession(context.Background(), "").Redirect)
}

func TestRequireSession_TokenWithoutProfileIsStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, sess, g := setup(t)
	require.NoError(t, sess.Tokens().Save(ctx, "abc"))

	d := g.RequireSession(ctx, "/me")
	require.False(t, d.Allow)
	require.Equal(t, "/login?redirectTo=%2Fme", d.Redirect)

	_, err := st.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRequireSession_Allows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, sess, g := setup(t)
	require.NoError(t, sess.Tokens().Save(ctx, "abc"))
	sess.PersistUser(ctx, model.Patch{"email": "a@b.com"})

	require.Equal(t, Proceed, g.RequireSession(ctx, "/me"))
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty allow-list", func(t *testing.T) {
		_, _, g := setup(t)
		require.Equal(t, Proceed, g.RequireRole(ctx))
	})

	t.Run("no profile", func(t *testing.T) {
		st, _, g := setup(t)
		require.NoError(t, st.Set(ctx, storage.KeyToken, "abc"))
		d := g.RequireRole(ctx, "CREATOR")
		require.Equal(t, Decision{Redirect: "/login"}, d)
		_, err := st.Get(ctx, storage.KeyToken)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("wrong role goes home", func(t *testing.T) {
		_, sess, g := setup(t)
		sess.PersistUser(ctx, model.Patch{"email": "a@b", "role": "STUDENT"})
		require.Equal(t, Decision{Redirect: "/home2"}, g.RequireRole(ctx, "CREATOR"))
		require.NotNil(t, sess.Snapshot(), "a denied role keeps the session")
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		_, sess, g := setup(t)
		sess.PersistUser(ctx, model.Patch{"email": "a@b", "role": "role_creator"})
		require.Equal(t, Proceed, g.RequireRole(ctx, "student", "Creator"))
	})
}

func TestOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	sess := session.New(ctx, st)
	g := New(sess, WithLoginPath("/signin"), WithHomePath("/dashboard"))

	require.Equal(t, "/signin?redirectTo=%2Fx", g.RequireSession(ctx, "/x").Redirect)
	sess.PersistUser(ctx, model.Patch{"email": "a@b", "role": "STUDENT"})
	require.Equal(t, "/dashboard", g.RequireRole(ctx, "ADMIN").Redirect)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, sess, g := setup(t)

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(g.Session)
		pr.Get("/me", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		pr.With(g.Role("CREATOR")).Get("/studio", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	do := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := do("/me")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login?redirectTo=%2Fme", rec.Header().Get("Location"))

	require.NoError(t, sess.Tokens().Save(ctx, "abc"))
	sess.PersistUser(ctx, model.Patch{"email": "a@b", "role": "STUDENT"})

	require.Equal(t, http.StatusNoContent, do("/me").Code)

	rec = do("/studio")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/home2", rec.Header().Get("Location"))

	sess.PersistUser(ctx, model.Patch{"role": "CREATOR"})
	require.Equal(t, http.StatusNoContent, do("/studio").Code)
}
