package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/token"
	"go.uber.org/zap"
)

// AuthResult is what the session kept from a login, registration or promotion response.
type AuthResult struct {
	Token   string
	Profile *model.Profile
}

// envelope keys never copied into the profile when the payload itself is the profile.
var envelopeKeys = []string{
	"token", "accessToken", "access_token", "refreshToken", "refresh_token",
	"tokenType", "token_type", "data", "success", "message",
}

// ProfilePatch extracts the profile fragment of an auth response, probing
// user, profile, data.user, data.profile and finally the bare payload.
func ProfilePatch(payload map[string]any) model.Patch {
	if payload == nil {
		return model.Patch{}
	}
	for _, k := range []string{"user", "profile"} {
		if m, ok := payload[k].(map[string]any); ok {
			return model.Patch(m)
		}
	}
	if data, ok := payload["data"].(map[string]any); ok {
		for _, k := range []string{"user", "profile"} {
			if m, ok := data[k].(map[string]any); ok {
				return model.Patch(m)
			}
		}
	}
	out := make(model.Patch, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, k := range envelopeKeys {
		delete(out, k)
	}
	return out
}

// ApplyAuthResponse stores the token and raw response of an auth call started with t and
// merges the profile it carries. A response from a previous session epoch is discarded
// with errs.ErrStale, so a late login answer cannot resurrect a signed-out session.
func (s *Session) ApplyAuthResponse(ctx context.Context, t Ticket, raw []byte) (AuthResult, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return AuthResult{}, fmt.Errorf("auth response: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Current(t) {
		metrics.SessionEvents.WithLabelValues(metrics.EventStale).Inc()
		s.log.Info("discarding auth response from a previous session")
		return AuthResult{}, errs.ErrStale
	}

	tok := token.FromMap(payload)
	if tok != "" {
		if err := s.tokens.Save(ctx, tok); err != nil {
			s.storageFailed("save token", err)
		}
		if err := s.tokens.SaveAuthBlob(ctx, raw); err != nil {
			s.storageFailed("save auth blob", err)
		}
	}

	patch := patchAliases(ProfilePatch(payload))
	merged := s.mergeLocked(ctx, patch)
	s.markLocked(patch, Confirmed)
	s.log.Debug("auth response applied",
		zap.Bool("token", tok != ""),
		zap.String("role", merged.Role),
	)
	return AuthResult{Token: tok, Profile: merged.Clone()}, nil
}
