// Package store implements the persisted reactive collections: an in-memory ordered list
// mirrored to storage after every mutation and rehydrated from it at construction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/and161185/gastroguide/internal/errs"
	"github.com/and161185/gastroguide/internal/metrics"
	"github.com/and161185/gastroguide/internal/observable"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// Order is where new entries are placed.
type Order int

const (
	// Append places new entries last.
	Append Order = iota
	// Prepend places new entries first (most recent first).
	Prepend
)

// Codec converts a collection to and from its persisted form.
type Codec[T any] interface {
	Encode(items []T) ([]byte, error)
	Decode(b []byte) ([]T, error)
}

// JSONArray persists a collection as a JSON array.
type JSONArray[T any] struct{}

func (JSONArray[T]) Encode(items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func (JSONArray[T]) Decode(b []byte) ([]T, error) {
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Config describes one collection kind.
type Config[T any] struct {
	// Name labels logs and metrics.
	Name  string
	// Key is the storage key of the collection.
	Key   string
	// ID returns the identity of an entry.
	ID    func(T) string
	// Dedup rejects entries whose identity is already present.
	Dedup bool
	Order Order
	// Seed supplies the collection when nothing usable is persisted. Nil means empty.
	Seed  func() []T
	// Codec defaults to JSONArray.
	Codec Codec[T]
}

// Store is a persisted reactive collection. All methods are safe for concurrent use;
// mutations are serialized and publish before returning.
type Store[T any] struct {
	cfg     Config[T]
	st      storage.Storage
	log     *zap.Logger
	mu      sync.Mutex
	subject *observable.Subject[[]T]
}

// New constructs a store and rehydrates it from st.
func New[T any](ctx context.Context, st storage.Storage, cfg Config[T], log *zap.Logger) *Store[T] {
	if cfg.Codec == nil {
		cfg.Codec = JSONArray[T]{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store[T]{cfg: cfg, st: st, log: log.With(zap.String("store", cfg.Name))}
	s.subject = observable.New(s.load(ctx))
	return s
}

// Items returns a copy of the current collection.
func (s *Store[T]) Items() []T { return slices.Clone(s.subject.Value()) }

// Len returns the number of entries.
func (s *Store[T]) Len() int { return len(s.subject.Value()) }

// Subscribe replays the current collection to fn and then delivers every change.
func (s *Store[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	return s.subject.Subscribe(func(items []T) { fn(slices.Clone(items)) })
}

// Get returns the entry with identity id.
func (s *Store[T]) Get(id string) (T, bool) {
	for _, it := range s.subject.Value() {
		if s.cfg.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Has reports whether an entry with identity id exists.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Add inserts e. With Dedup a repeated identity is rejected and Add returns false.
func (s *Store[T]) Add(ctx context.Context, e T) bool {
	_, ok := s.Insert(ctx, func([]T) T { return e })
	return ok
}

// Insert builds the new entry from the current collection under the store lock, so
// identifiers derived from existing entries cannot collide, and inserts it.
func (s *Store[T]) Insert(ctx context.Context, build func(current []T) T) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.subject.Value()
	e := build(slices.Clone(cur))
	if s.cfg.Dedup && s.indexLocked(s.cfg.ID(e)) >= 0 {
		s.count("add", "rejected")
		return e, false
	}
	next := make([]T, 0, len(cur)+1)
	if s.cfg.Order == Prepend {
		next = append(append(next, e), cur...)
	} else {
		next = append(append(next, cur...), e)
	}
	s.commitLocked(ctx, "add", next)
	return e, true
}

// Remove drops every entry with identity id.
func (s *Store[T]) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]T, 0, len(s.subject.Value()))
	for _, it := range s.subject.Value() {
		if s.cfg.ID(it) != id {
			next = append(next, it)
		}
	}
	s.commitLocked(ctx, "remove", next)
}

// Clear empties the collection.
func (s *Store[T]) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(ctx, "clear", []T{})
}

// Update replaces the entry with identity id by fn(entry). It reports whether one was found;
// the collection is persisted and published either way.
func (s *Store[T]) Update(ctx context.Context, id string, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.Clone(s.subject.Value())
	i := slices.IndexFunc(next, func(it T) bool { return s.cfg.ID(it) == id })
	if i >= 0 {
		next[i] = fn(next[i])
	}
	s.commitLocked(ctx, "update", next)
	return i >= 0
}

// Mutate replaces the collection by fn(copy of current) as one mutation.
func (s *Store[T]) Mutate(ctx context.Context, op string, fn func([]T) []T) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(slices.Clone(s.subject.Value()))
	if next == nil {
		next = []T{}
	}
	s.commitLocked(ctx, op, next)
	return slices.Clone(next)
}

// Reload re-reads the collection from storage, picking up writes made by another process.
func (s *Store[T]) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject.Publish(s.load(ctx))
	s.count("reload", "ok")
}

func (s *Store[T]) indexLocked(id string) int {
	return slices.IndexFunc(s.subject.Value(), func(it T) bool { return s.cfg.ID(it) == id })
}

func (s *Store[T]) commitLocked(ctx context.Context, op string, next []T) {
	s.subject.Publish(next)
	s.persist(ctx, next)
	s.count(op, "ok")
}

func (s *Store[T]) persist(ctx context.Context, items []T) {
	b, err := s.cfg.Codec.Encode(items)
	if err == nil {
		err = s.st.Set(ctx, s.cfg.Key, string(b))
	}
	if err != nil {
		metrics.StorageErrors.WithLabelValues(s.cfg.Name).Inc()
		s.log.Warn("persist failed", zap.Error(err))
	}
}

func (s *Store[T]) load(ctx context.Context) []T {
	raw, err := s.st.Get(ctx, s.cfg.Key)
	if err == nil {
		items, derr := s.cfg.Codec.Decode([]byte(raw))
		if derr == nil {
			if items == nil {
				items = []T{}
			}
			return items
		}
		err = derr
	}
	if !errors.Is(err, errs.ErrNotFound) {
		metrics.StorageErrors.WithLabelValues(s.cfg.Name).Inc()
		s.log.Warn("rehydrate failed", zap.Error(err))
	}
	if s.cfg.Seed != nil {
		return s.cfg.Seed()
	}
	return []T{}
}

func (s *Store[T]) count(op, result string) {
	metrics.StoreMutations.WithLabelValues(s.cfg.Name, op, result).Inc()
}
