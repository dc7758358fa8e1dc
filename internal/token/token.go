// Package token reads and writes the persisted bearer token.
package token

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// Store presents the two persisted token locations (direct key and auth blob) as one.
type Store struct {
	st  storage.Storage
	log *zap.Logger
}

// NewStore constructs a token store over st.
func NewStore(st storage.Storage, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{st: st, log: log}
}

// Get returns the current bearer token or "".
// The direct key wins; otherwise the token is read from the auth blob.
// Unreadable storage and malformed blobs yield "".
func (s *Store) Get(ctx context.Context) string {
	if v, err := s.st.Get(ctx, storage.KeyToken); err == nil && v != "" {
		return v
	} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("token read failed", zap.Error(err))
	}

	raw, err := s.st.Get(ctx, storage.KeyAuth)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Warn("auth blob read failed", zap.Error(err))
		}
		return ""
	}
	return FromJSON([]byte(raw))
}

// Has reports whether a token is present.
func (s *Store) Has(ctx context.Context) bool { return s.Get(ctx) != "" }

// Save writes tok under the direct key.
func (s *Store) Save(ctx context.Context, tok string) error {
	return s.st.Set(ctx, storage.KeyToken, tok)
}

// SaveAuthBlob keeps the raw authentication response.
func (s *Store) SaveAuthBlob(ctx context.Context, raw []byte) error {
	return s.st.Set(ctx, storage.KeyAuth, string(raw))
}

// FromJSON extracts a token from a JSON object; malformed input yields "".
func FromJSON(raw []byte) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return FromMap(m)
}

// FromMap probes token, accessToken, access_token and data.token in that order.
func FromMap(m map[string]any) string {
	if m == nil {
		return ""
	}
	for _, k := range []string{"token", "accessToken", "access_token"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	if data, ok := m["data"].(map[string]any); ok {
		if s, ok := data["token"].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
