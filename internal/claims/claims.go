// Package claims reads display hints out of a bearer token payload.
//
// Nothing here verifies a signature or an expiry. The decoded role only decides which
// screens the client offers; the remote API enforces authorization on every call, and
// no security-sensitive decision may rest on these values.
package claims

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Payload decodes the claims segment of token. It returns nil for anything that is not
// a three-segment token with a JSON object payload. Header and signature are never read.
func Payload(token string) jwt.MapClaims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	raw, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}
	var mc jwt.MapClaims
	if err := json.Unmarshal(raw, &mc); err != nil || mc == nil {
		return nil
	}
	return mc
}

// ExtractRole returns the normalized role claim of token or "" when none can be read.
// Claims are probed in order: role, rol, authorities[0], roles[0], claims.role.
func ExtractRole(token string) string {
	mc := Payload(token)
	if mc == nil {
		return ""
	}
	candidates := []any{
		mc["role"],
		mc["rol"],
		first(mc["authorities"]),
		first(mc["roles"]),
		nested(mc["claims"], "role"),
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok {
			if r := NormalizeRole(s); r != "" {
				return r
			}
		}
	}
	return ""
}

// Expiry returns the exp claim of token, if present.
func Expiry(token string) (*jwt.NumericDate, bool) {
	mc := Payload(token)
	if mc == nil {
		return nil, false
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, false
	}
	return exp, true
}

// NormalizeRole upper-cases role and strips any leading ROLE_ authority prefix.
// NormalizeRole(NormalizeRole(r)) == NormalizeRole(r) for every r.
func NormalizeRole(role string) string {
	r := strings.TrimSpace(role)
	for len(r) >= len(rolePrefix) && strings.EqualFold(r[:len(rolePrefix)], rolePrefix) {
		r = strings.TrimSpace(r[len(rolePrefix):])
	}
	return strings.ToUpper(r)
}

const rolePrefix = "ROLE_"

// NormalizeRoles normalizes each entry and drops empty ones.
func NormalizeRoles(roles []string) []string {
	if roles == nil {
		return nil
	}
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if n := NormalizeRole(r); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func first(v any) any {
	if list, ok := v.([]any); ok && len(list) > 0 {
		return list[0]
	}
	return nil
}

func nested(v any, key string) any {
	if m, ok := v.(map[string]any); ok {
		return m[key]
	}
	return nil
}
