package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	base []string
}

func newHarness(t *testing.T, h http.Handler) *harness {
	t.Helper()
	t.Chdir(t.TempDir())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &harness{t: t, base: []string{"-api", srv.URL, "-storage", "file", "-dir", t.TempDir()}}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), append(append([]string{}, h.base...), args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func apiStub(t *testing.T) http.Handler {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "ROLE_STUDENT", "exp": 4102444800}).SignedString([]byte("k"))
	require.NoError(t, err)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": tok, "user": map[string]any{"email": "cook@gg.io"}})
	})
	mux.HandleFunc("GET /api/v1/courses/all", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{"_id": "c1", "name": "Paella"}}})
	})
	return mux
}

func TestRun_Usage(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler())

	code, _, errOut := h.run()
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "Commands:")

	code, _, _ = h.run("fly")
	require.Equal(t, 2, code)

	code, _, errOut = h.run("login", "-email", "a@b")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "-password")

	code, _, errOut = h.run("ping")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "-grpc")

	code, out, _ := h.run("version")
	require.Equal(t, 0, code)
	require.True(t, strings.HasPrefix(out, "gg "))
}

func TestRun_SessionAcrossInvocations(t *testing.T) {
	h := newHarness(t, apiStub(t))

	code, out, errOut := h.run("guard", "-path", "/courses")
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, `"Redirect": "/login?redirectTo=%2Fcourses"`)

	code, out, errOut = h.run("login", "-email", "cook@gg.io", "-password", "pw")
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "ok cook@gg.io (STUDENT)\n", out)

	code, out, _ = h.run("whoami")
	require.Equal(t, 0, code)
	var who struct {
		Profile  model.Profile `json:"profile"`
		Role     string        `json:"role"`
		HasToken bool          `json:"hasToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	require.Equal(t, "cook", who.Profile.Username)
	require.Equal(t, "STUDENT", who.Role)
	require.True(t, who.HasToken)

	code, out, _ = h.run("guard", "-path", "/studio", "-roles", "CREATOR")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"Redirect": "/home2"`)

	code, out, _ = h.run("courses")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"Paella"`)

	code, out, _ = h.run("decode")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"role": "STUDENT"`)
	require.Contains(t, out, `"expires": "2100-01-01T00:00:00Z"`)

	code, _, _ = h.run("logout")
	require.Equal(t, 0, code)
	code, out, _ = h.run("whoami")
	require.Equal(t, 0, code)
	require.Contains(t, out, `"profile": null`)

	code, _, errOut = h.run("courses")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "session expired")
}

func TestRun_LocalCollections(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler())

	code, out, _ := h.run("cart", "add", "-id", "1", "-title", "Knife skills", "-price", "12.5")
	require.Equal(t, 0, code)
	require.Equal(t, "ok\n", out)
	_, out, _ = h.run("cart", "add", "-id", "1")
	require.Contains(t, out, "already there")
	_, out, _ = h.run("cart", "total")
	require.Equal(t, "12.50\n", out)
	_, out, _ = h.run("cart", "checkout")
	require.Contains(t, out, `"order"`)
	_, out, _ = h.run("cart", "purchases")
	require.Contains(t, out, "Knife skills")
	_, out, _ = h.run("cart")
	require.Equal(t, "[]\n", out)

	code, _, _ = h.run("library", "add", "-id", "7", "-title", "Bread")
	require.Equal(t, 0, code)
	code, _, _ = h.run("library", "progress", "-id", "7", "-value", "50")
	require.Equal(t, 0, code)
	_, out, _ = h.run("library", "has", "-id", "7")
	require.Equal(t, "true\n", out)
	code, _, _ = h.run("library", "progress", "-id", "8", "-value", "1")
	require.Equal(t, 1, code)

	_, out, _ = h.run("reels", "add", "-title", "Mise en place", "-src", "/a.mp4")
	require.Contains(t, out, `"id": 1`)
	_, out, _ = h.run("reels", "add", "-src", "/b.mp4")
	require.Contains(t, out, `"id": 2`)

	_, out, _ = h.run("users", "add", "-name", "Ann", "-email", "ann@x")
	require.Contains(t, out, `"id": "1"`)

	h.run("stats", "view", "-id", "2")
	h.run("stats", "like", "-id", "1")
	_, out, _ = h.run("stats", "totals")
	require.Contains(t, out, `"views": 1`)
	require.Contains(t, out, `"likes": 1`)
	code, _, _ = h.run("stats", "view")
	require.Equal(t, 2, code)
}
