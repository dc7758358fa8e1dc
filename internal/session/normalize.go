package session

import (
	"context"
	"slices"
	"strings"

	"github.com/and161185/gastroguide/internal/claims"
	"github.com/and161185/gastroguide/internal/model"
)

// normalize applies the profile invariants to a freshly merged profile:
// avatar/image and alias back-fill, derived username and name, normalized roles,
// and the token role taking over the cached one.
func (s *Session) normalize(ctx context.Context, p *model.Profile) {
	normalizeAliases(p)

	p.Roles = claims.NormalizeRoles(p.Roles)
	tokenRole := claims.ExtractRole(s.tokens.Get(ctx))
	switch {
	case tokenRole != "":
		p.Role = tokenRole
		if p.Roles == nil {
			p.Roles = []string{tokenRole}
		} else if !slices.Contains(p.Roles, tokenRole) {
			p.Roles = append(p.Roles, tokenRole)
		}
	case p.Role != "":
		p.Role = claims.NormalizeRole(p.Role)
	case len(p.Roles) > 0:
		p.Role = p.Roles[0]
	}
}

// normalizeRestored normalizes a profile read back from storage. The cached role wins
// here; the token role only fills a missing one.
func (s *Session) normalizeRestored(ctx context.Context, p *model.Profile) {
	normalizeAliases(p)
	p.Roles = claims.NormalizeRoles(p.Roles)
	if p.Role != "" {
		p.Role = claims.NormalizeRole(p.Role)
		return
	}
	if r := claims.ExtractRole(s.tokens.Get(ctx)); r != "" {
		p.Role = r
	}
}

// patchAliases makes a patch move both names of an aliased field together, so a new avatar
// also replaces a cached image and a new phoneNumber replaces a cached phone. patch itself
// is not modified.
func patchAliases(patch model.Patch) model.Patch {
	out := make(model.Patch, len(patch)+2)
	for k, v := range patch {
		out[k] = v
	}
	copyAlias := func(from, to string) {
		if _, set := patch[to]; set {
			return
		}
		if v, ok := patch[from].(string); ok && v != "" {
			out[to] = v
		}
	}
	copyAlias("avatar", "image")
	copyAlias("image", "avatar")
	copyAlias("phoneNumber", "phone")
	copyAlias("dateOfBirth", "birthDate")
	return out
}

func normalizeAliases(p *model.Profile) {
	switch {
	case p.Avatar != "" && p.Image == "":
		p.Image = p.Avatar
	case p.Image != "" && p.Avatar == "":
		p.Avatar = p.Image
	}
	if p.Phone == "" && p.PhoneNumber != "" {
		p.Phone = p.PhoneNumber
	}
	if p.BirthDate == "" && p.DateOfBirth != "" {
		p.BirthDate = p.DateOfBirth
	}
	if p.Username == "" && p.Email != "" {
		p.Username = localPart(p.Email)
	}
	if p.Name == "" {
		switch {
		case p.Username != "":
			p.Name = p.Username
		case p.Email != "":
			p.Name = localPart(p.Email)
		}
	}
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// GetRole resolves the effective role of p (or of the current profile when p is nil).
//
// Precedence: a token role that differs from the stored role wins; then the stored role;
// then a token role that differs from the first stored roles entry; then that entry;
// then whatever the token carries. A promotion can rewrite the token before the cached
// profile catches up, so the token is treated as the fresher signal on disagreement.
func (s *Session) GetRole(ctx context.Context, p *model.Profile) string {
	if p == nil {
		p = s.subject.Value()
	}
	var stored, firstListed string
	if p != nil {
		stored = claims.NormalizeRole(p.Role)
		if len(p.Roles) > 0 {
			firstListed = claims.NormalizeRole(p.Roles[0])
		}
	}
	tokenRole := claims.ExtractRole(s.tokens.Get(ctx))

	if tokenRole != "" && tokenRole != stored {
		return tokenRole
	}
	if stored != "" {
		return stored
	}
	if tokenRole != "" && tokenRole != firstListed {
		return tokenRole
	}
	if firstListed != "" {
		return firstListed
	}
	return tokenRole
}

// HasRole reports whether the effective role is one of allowed (case-insensitive).
func (s *Session) HasRole(ctx context.Context, p *model.Profile, allowed ...string) bool {
	role := s.GetRole(ctx, p)
	if role == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), role) {
			return true
		}
	}
	return false
}
