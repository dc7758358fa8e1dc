package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/session"
	"github.com/and161185/gastroguide/internal/storage"
	"github.com/and161185/gastroguide/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	st    *storage.Memory
	sess  *session.Session
	users *store.Users
	c     *Client
	mux   *chi.Mux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	f := &fixture{st: storage.NewMemory(), mux: chi.NewRouter()}
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	f.sess = session.New(ctx, f.st, session.WithLogger(log))
	f.users = store.NewUsers(ctx, f.st, log)
	f.c = New(srv.URL+"/", f.sess, WithUsers(f.users), WithLogger(log))
	return f
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func mint(t *testing.T, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.mux.Post("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		body := readJSON(t, r)
		require.Equal(t, "a@b.com", body["email"])
		writeJSON(w, http.StatusOK, map[string]any{"token": "abc", "user": map[string]any{"email": "a@b.com"}})
	})

	res, err := f.c.Login(ctx, " a@b.com ", "pw")
	require.NoError(t, err)
	require.Equal(t, "abc", res.Token)

	snap := f.sess.Snapshot()
	require.Equal(t, "a@b.com", snap.Email)
	require.Equal(t, "a", snap.Username)
	require.Equal(t, "a", snap.Name)
	require.Equal(t, "abc", f.sess.Token(ctx))
}

func TestLogin_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	calls := 0
	f.mux.Post("/api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		switch calls {
		case 1:
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad credentials"})
		case 2:
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"email": "x@y"}})
		}
	})

	_, err := f.c.Login(ctx, "a@b", "pw")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.Code)
	require.Equal(t, "bad credentials", se.Message)
	require.Equal(t, "api: status 400: bad credentials", se.Error())

	_, err = f.c.Login(ctx, "a@b", "pw")
	require.ErrorIs(t, err, errs.ErrNoToken)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.sess.Tokens().Save(ctx, "old"))
	f.sess.PersistUser(ctx, model.Patch{"email": "a@b"})
	f.mux.Get("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer old", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "expired"})
	})

	_, err := f.sess.Refresh(ctx)
	require.True(t, IsUnauthorized(err))
	require.Nil(t, f.sess.Snapshot())
	require.Equal(t, "", f.sess.Token(ctx))
}

func TestUpdateProfile_ServerWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.sess.Tokens().Save(ctx, "tok"))
	f.sess.PersistUser(ctx, model.Patch{"email": "a@b", "bio": "old"})
	f.mux.Put("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		require.Equal(t, "typed", body["bio"])
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": map[string]any{
			"email": "a@b", "bio": "trimmed by server", "phoneNumber": "+1",
		}}})
	})

	got, err := f.sess.UpdateProfile(ctx, model.Patch{"bio": "typed"})
	require.NoError(t, err)
	require.Equal(t, "trimmed by server", got.Bio)
	require.Equal(t, "+1", got.Phone)
	require.Equal(t, session.Confirmed, f.sess.FieldState("bio"))
}

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.mux.Post("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		require.Equal(t, "chef", body["username"])
		require.Equal(t, "CREATOR", body["userType"])
		require.Equal(t, body["password"], body["confirmPassword"])
		writeJSON(w, http.StatusCreated, map[string]any{"success": true})
	})

	p, err := f.c.Register(ctx, Registration{Username: "chef", Email: "chef@x.io", Password: "Secret1!", Role: "creator"})
	require.NoError(t, err)
	require.Equal(t, "chef", p.Name)
	require.Equal(t, "CREATOR", p.Role)
	require.Equal(t, []string{"CREATOR"}, p.Roles)
	require.Equal(t, "", f.sess.Token(ctx))

	users := f.users.Items()
	require.Len(t, users, 1)
	require.Equal(t, "chef@x.io", users[0].Email)
	require.Equal(t, model.ID("1"), users[0].ID)

	_, err = f.c.Register(ctx, Registration{Username: "x"})
	require.ErrorIs(t, err, ErrEmailRequired)
}

func TestRegister_WithToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	tok := mint(t, jwt.MapClaims{"role": "student"})
	f.mux.Post("/api/v1/auth/register", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"token": tok, "user": map[string]any{"id": 12}}})
	})

	p, err := f.c.Register(ctx, Registration{Username: "s", Email: "s@x"})
	require.NoError(t, err)
	require.Equal(t, tok, f.sess.Token(ctx))
	require.Equal(t, model.ID("12"), p.ID)
	require.Equal(t, "STUDENT", p.Role)
}

func TestPromoteToCreator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.sess.PersistUser(ctx, model.Patch{"email": "Me@X.io", "role": "STUDENT"})
	f.mux.Post("/api/v1/auth/promote-to-creator", func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		writeJSON(w, http.StatusOK, map[string]any{"username": body["email"]})
	})

	other, err := f.c.PromoteToCreator(ctx, "friend@x.io")
	require.NoError(t, err)
	require.False(t, other.Self)
	require.Equal(t, "STUDENT", f.sess.Snapshot().Role)

	self, err := f.c.PromoteToCreator(ctx, "  me@x.io ")
	require.NoError(t, err)
	require.True(t, self.Self)
	require.Equal(t, "me@x.io", self.Username)
	require.Equal(t, "CREATOR", f.sess.Snapshot().Role)
	require.Equal(t, []string{"CREATOR"}, f.sess.Snapshot().Roles)

	_, err = f.c.PromoteToCreator(ctx, " ")
	require.ErrorIs(t, err, ErrEmailRequired)
}

func TestPromoteToCreator_NewToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.sess.Tokens().Save(ctx, mint(t, jwt.MapClaims{"role": "student"})))
	f.sess.PersistUser(ctx, model.Patch{"email": "me@x.io"})
	fresh := mint(t, jwt.MapClaims{"role": "creator"})
	f.mux.Post("/api/v1/auth/promote-to-creator", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"username": "me", "accessToken": fresh})
	})

	_, err := f.c.PromoteToCreator(ctx, "me@x.io")
	require.NoError(t, err)
	require.Equal(t, fresh, f.sess.Token(ctx))
	require.Equal(t, "CREATOR", f.sess.GetRole(ctx, nil))
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.mux.Post("/auth/forgot-password", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	f.mux.Post("/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		body := readJSON(t, r)
		if body["token"] != "t1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "done"})
	})

	msg, err := f.c.ForgotPassword(ctx, "a@b")
	require.NoError(t, err)
	require.Equal(t, "Si el correo existe, enviamos un enlace.", msg)

	msg, err = f.c.ResetPassword(ctx, "t1", "pw")
	require.NoError(t, err)
	require.Equal(t, "done", msg)

	_, err = f.c.ResetPassword(ctx, "bad", "pw")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "invalid token", se.Message)
}

func TestCourses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cases := map[string]string{
		"data":    `{"data":[{"id":1,"title":"A","price":9.5},{"_id":"x2","name":"B"},{"courseId":3}]}`,
		"courses": `{"courses":[{"id":1,"title":"A","price":"9.5"},{"_id":"x2","name":"B"},{"courseId":3}]}`,
		"bare":    `[{"id":1,"title":"A","price":9.5},{"_id":"x2","name":"B"},{"courseId":3}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.mux.Get("/api/v1/courses/all", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			got, err := f.c.Courses(ctx)
			require.NoError(t, err)
			require.Equal(t, []model.Course{
				{ID: "1", Title: "A", Price: 9.5},
				{ID: "x2", Title: "B"},
				{ID: "3", Title: untitled},
			}, got)
		})
	}

	f := newFixture(t)
	f.mux.Get("/api/v1/courses/all", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"message":"none"}`)
	})
	got, err := f.c.Courses(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
