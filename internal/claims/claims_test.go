package claims

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func mint(t *testing.T, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestNormalizeRole(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"creator":         "CREATOR",
		"ROLE_student":    "STUDENT",
		"role_Admin":      "ADMIN",
		"  Role_creator ": "CREATOR",
		"ROLE_ROLE_x":     "X",
		"":                "",
		"ROLE_":           "",
	}
	for in, want := range cases {
		got := NormalizeRole(in)
		require.Equal(t, want, got, "in=%q", in)
		require.Equal(t, got, NormalizeRole(got), "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeRoles_DropsEmpty(t *testing.T) {
	t.Parallel()
	require.Nil(t, NormalizeRoles(nil))
	require.Equal(t, []string{"CREATOR", "STUDENT"}, NormalizeRoles([]string{"role_creator", "", " ", "student"}))
}

func TestExtractRole_ClaimPriority(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		c    jwt.MapClaims
		want string
	}{
		{"role", jwt.MapClaims{"role": "creator", "rol": "student"}, "CREATOR"},
		{"rol", jwt.MapClaims{"rol": "ROLE_student", "roles": []string{"admin"}}, "STUDENT"},
		{"authorities", jwt.MapClaims{"authorities": []string{"ROLE_CREATOR", "ROLE_STUDENT"}, "roles": []string{"admin"}}, "CREATOR"},
		{"roles", jwt.MapClaims{"roles": []string{"admin"}}, "ADMIN"},
		{"nested", jwt.MapClaims{"claims": map[string]any{"role": "student"}}, "STUDENT"},
		{"non-string skipped", jwt.MapClaims{"role": 7, "rol": "creator"}, "CREATOR"},
		{"none", jwt.MapClaims{"sub": "42"}, ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ExtractRole(mint(t, tc.c)), tc.name)
	}
}

func TestExtractRole_FailureTolerant(t *testing.T) {
	t.Parallel()
	require.Equal(t, "", ExtractRole(""))
	require.Equal(t, "", ExtractRole("not-a-token"))
	require.Equal(t, "", ExtractRole("a.b"))
	require.Equal(t, "", ExtractRole("a.!!!.c"))

	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	notJSON := base64.RawURLEncoding.EncodeToString([]byte(`role=creator`))
	require.Equal(t, "", ExtractRole(hdr+"."+notJSON+".sig"))

	null := base64.RawURLEncoding.EncodeToString([]byte(`null`))
	require.Equal(t, "", ExtractRole(hdr+"."+null+".sig"))
	require.Equal(t, "", ExtractRole(hdr+"."+hdr+".sig.extra"))
}

func TestExtractRole_HeaderIgnored(t *testing.T) {
	t.Parallel()
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"role":"ROLE_creator"}`))
	require.Equal(t, "CREATOR", ExtractRole("x."+body+".sig"))
	require.Equal(t, "CREATOR", ExtractRole("."+body+"."))

	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	require.Equal(t, "CREATOR", ExtractRole(hdr+"."+body+".sig"))
}

func TestExtractRole_UnsignedAndExpiredStillRead(t *testing.T) {
	t.Parallel()
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none-such"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"role":"creator","exp":1}`))
	require.Equal(t, "CREATOR", ExtractRole(hdr+"."+body+"."))

	padded := base64.URLEncoding.EncodeToString([]byte(`{"rol":"student"}`))
	require.Equal(t, "STUDENT", ExtractRole(hdr+"."+padded+".x"))
}

func TestExpiry(t *testing.T) {
	t.Parallel()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := Expiry(mint(t, jwt.MapClaims{"exp": exp.Unix()}))
	require.True(t, ok)
	require.True(t, got.Time.Equal(exp))

	_, ok = Expiry(mint(t, jwt.MapClaims{"sub": "1"}))
	require.False(t, ok)
}
