package session

import (
	"context"
	"fmt"

	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/and161185/gastroguide/internal/model"
)

// ProfileAPI is the remote "me" endpoint the session reconciles with.
type ProfileAPI interface {
	// FetchMe returns the server's view of the current profile.
	FetchMe(ctx context.Context) (model.Patch, error)
	// UpdateMe sends patch and returns the server's authoritative profile.
	UpdateMe(ctx context.Context, patch model.Patch) (model.Patch, error)
}

// FieldState tracks where the cached value of a profile field came from.
type FieldState int

// Field states. A local edit moves a field to Optimistic; a server response moves it to
// Confirmed and always overwrites an optimistic value; ClearSession resets to Unknown.
const (
	Unknown FieldState = iota
	Optimistic
	Confirmed
)

func (f FieldState) String() string {
	switch f {
	case Optimistic:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// FieldState returns the state of profile field key.
func (s *Session) FieldState(key string) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields[key]
}

func (s *Session) markLocked(patch model.Patch, st FieldState) {
	for k := range patch {
		s.fields[k] = st
	}
}

// UpdateProfile applies patch locally right away and, when a remote API is attached,
// sends it to the server and applies the server's response on top.
// If the remote call fails the optimistic local values stay and the error is returned.
func (s *Session) UpdateProfile(ctx context.Context, patch model.Patch) (*model.Profile, error) {
	t := s.Begin()
	local := s.PersistUser(ctx, patch)

	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()
	if remote == nil {
		return local, nil
	}

	server, err := remote.UpdateMe(ctx, patch)
	if err != nil {
		return local, fmt.Errorf("update profile: %w", err)
	}
	p, err := s.PersistUserAt(ctx, t, server)
	if err != nil {
		return nil, err
	}
	metrics.SessionEvents.WithLabelValues(metrics.EventConfirmed).Inc()
	return p, nil
}

// Refresh fetches the server profile and merges it as confirmed.
// Without a remote API it behaves like EnsureProfileLoaded.
func (s *Session) Refresh(ctx context.Context) (*model.Profile, error) {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()
	if remote == nil {
		return s.EnsureProfileLoaded(ctx), nil
	}

	t := s.Begin()
	server, err := remote.FetchMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh profile: %w", err)
	}
	p, err := s.PersistUserAt(ctx, t, server)
	if err != nil {
		return nil, err
	}
	metrics.SessionEvents.WithLabelValues(metrics.EventConfirmed).Inc()
	return p, nil
}
