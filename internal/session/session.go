// Package session owns the client-side session: the cached profile, its normalization,
// the effective role, and the lifecycle that ties them to the persisted bearer token.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/observable"
	"github.com/and161185/gastroguide/internal/storage"
	"github.com/and161185/gastroguide/internal/token"
	"go.uber.org/zap"
)

// Ticket identifies the session epoch an async operation started in.
// Results carrying an outdated ticket are discarded.
type Ticket uint64

// Session is the process-wide observable profile cache.
//
// Mutations are serialized and each one publishes its result before returning, so a
// Snapshot taken right after a mutator returns reflects that mutator. Subscribers are
// called synchronously; they may read Snapshot but must not mutate the session.
type Session struct {
	st      storage.Storage
	scratch storage.Storage
	tokens  *token.Store
	remote  ProfileAPI
	log     *zap.Logger

	mu      sync.Mutex
	epoch   atomic.Uint64
	fields  map[string]FieldState
	subject *observable.Subject[*model.Profile]
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.log = l } }

// WithScratch sets a session-scoped storage that is wiped on ClearSession.
func WithScratch(st storage.Storage) Option { return func(s *Session) { s.scratch = st } }

// WithRemote enables synchronization with the remote "me" profile endpoint.
func WithRemote(api ProfileAPI) Option { return func(s *Session) { s.remote = api } }

// New constructs a session over st and restores the cached profile, if any.
func New(ctx context.Context, st storage.Storage, opts ...Option) *Session {
	s := &Session{
		st:     st,
		fields: make(map[string]FieldState),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.tokens = token.NewStore(st, s.log)
	s.subject = observable.New(s.restore(ctx))
	return s
}

// SetRemote attaches the remote profile API after construction.
func (s *Session) SetRemote(api ProfileAPI) {
	s.mu.Lock()
	s.remote = api
	s.mu.Unlock()
}

// Tokens returns the token store the session reads the bearer token from.
func (s *Session) Tokens() *token.Store { return s.tokens }

// Token returns the current bearer token or "".
func (s *Session) Token(ctx context.Context) string { return s.tokens.Get(ctx) }

// Snapshot returns a copy of the current profile, or nil when signed out.
func (s *Session) Snapshot() *model.Profile {
	return s.subject.Value().Clone()
}

// Subscribe replays the current profile to fn and then delivers every change.
func (s *Session) Subscribe(fn func(*model.Profile)) (unsubscribe func()) {
	return s.subject.Subscribe(func(p *model.Profile) { fn(p.Clone()) })
}

// Begin returns a ticket for an async operation started now.
func (s *Session) Begin() Ticket { return Ticket(s.epoch.Load()) }

// Current reports whether t still belongs to the live session epoch.
func (s *Session) Current(t Ticket) bool { return Ticket(s.epoch.Load()) == t }

// EnsureProfileLoaded returns the cached profile if it is usable, otherwise tries
// to restore it from storage. It never performs network I/O.
func (s *Session) EnsureProfileLoaded(ctx context.Context) *model.Profile {
	if cur := s.subject.Value(); cur.Usable() {
		return cur.Clone()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.subject.Value(); cur.Usable() {
		return cur.Clone()
	}
	restored := s.restore(ctx)
	if restored != nil {
		s.subject.Publish(restored)
	}
	return restored.Clone()
}

// PersistUser merges patch into the cached profile, normalizes, persists and publishes
// the result. Only the keys present in patch are overwritten.
func (s *Session) PersistUser(ctx context.Context, patch model.Patch) *model.Profile {
	patch = patchAliases(patch)
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.mergeLocked(ctx, patch)
	s.markLocked(patch, Optimistic)
	return merged.Clone()
}

// PersistUserAt is PersistUser for a result of an async call started with t.
// It returns errs.ErrStale without touching the session if the epoch moved.
func (s *Session) PersistUserAt(ctx context.Context, t Ticket, patch model.Patch) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Current(t) {
		metrics.SessionEvents.WithLabelValues(metrics.EventStale).Inc()
		s.log.Info("discarding result from a previous session")
		return nil, errs.ErrStale
	}
	patch = patchAliases(patch)
	merged := s.mergeLocked(ctx, patch)
	s.markLocked(patch, Confirmed)
	return merged.Clone(), nil
}

// ClearSession forgets the profile, removes the persisted token/profile keys and the
// session-scoped scratch storage, and publishes nil. Storage failures are logged only.
func (s *Session) ClearSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch.Add(1)
	s.fields = make(map[string]FieldState)

	for _, k := range []string{storage.KeyUser, storage.KeyToken, storage.KeyAuth} {
		if err := s.st.Remove(ctx, k); err != nil {
			s.storageFailed("remove "+k, err)
		}
	}
	if c, ok := s.scratch.(storage.Clearer); ok {
		if err := c.Clear(ctx); err != nil {
			s.storageFailed("clear scratch", err)
		}
	}
	metrics.SessionEvents.WithLabelValues(metrics.EventClear).Inc()
	s.subject.Publish(nil)
}

// mergeLocked applies patch on top of the current profile; callers hold s.mu.
func (s *Session) mergeLocked(ctx context.Context, patch model.Patch) *model.Profile {
	cur := s.subject.Value()
	merged, err := cur.Merge(patch)
	if err != nil {
		// a patch with ill-typed fields is dropped as a whole
		s.log.Warn("profile patch rejected", zap.Error(err))
		if cur == nil {
			return &model.Profile{}
		}
		return cur.Clone()
	}
	s.normalize(ctx, merged)
	s.save(ctx, merged)
	metrics.SessionEvents.WithLabelValues(metrics.EventPersist).Inc()
	s.subject.Publish(merged)
	return merged
}

func (s *Session) save(ctx context.Context, p *model.Profile) {
	b, err := json.Marshal(p)
	if err != nil {
		s.storageFailed("encode profile", err)
		return
	}
	if err := s.st.Set(ctx, storage.KeyUser, string(b)); err != nil {
		s.storageFailed("save profile", err)
	}
}

// restore reads the cached profile; absence or corruption yields nil.
func (s *Session) restore(ctx context.Context) *model.Profile {
	raw, err := s.st.Get(ctx, storage.KeyUser)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.storageFailed("restore profile", err)
		}
		return nil
	}
	var p model.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.storageFailed("decode profile", err)
		return nil
	}
	s.normalizeRestored(ctx, &p)
	metrics.SessionEvents.WithLabelValues(metrics.EventRestore).Inc()
	return &p
}

func (s *Session) storageFailed(op string, err error) {
	metrics.StorageErrors.WithLabelValues("session").Inc()
	s.log.Warn("session storage failure", zap.String("op", op), zap.Error(err))
}
