package store

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// statsDocument is the persisted form: running totals plus counters keyed by reel id.
type statsDocument struct {
	Totals  model.ReelTotals            `json:"totals"`
	PerReel map[string]model.ReelMetric `json:"perReel"`
}

type statsCodec struct{}

func (statsCodec) Encode(items []model.ReelMetric) ([]byte, error) {
	doc := statsDocument{Totals: sum(items), PerReel: make(map[string]model.ReelMetric, len(items))}
	for _, m := range items {
		doc.PerReel[strconv.FormatInt(m.ID, 10)] = m
	}
	return json.Marshal(doc)
}

// Decode keeps the counters ordered by reel id; totals are recomputed from them.
func (statsCodec) Decode(b []byte) ([]model.ReelMetric, error) {
	var doc statsDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	out := make([]model.ReelMetric, 0, len(doc.PerReel))
	for k, m := range doc.PerReel {
		if m.ID == 0 {
			if id, err := strconv.ParseInt(k, 10, 64); err == nil {
				m.ID = id
			}
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.ReelMetric) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func sum(items []model.ReelMetric) model.ReelTotals {
	var t model.ReelTotals
	for _, m := range items {
		t.Views += m.Views
		t.Likes += m.Likes
		t.Comments += m.Comments
	}
	return t
}

// Stats holds per-reel engagement counters, kept sorted by reel id. Counters change
// only through the Register methods.
type Stats struct {
	items *Store[model.ReelMetric]
}

// NewStats rehydrates the counters from st.
func NewStats(ctx context.Context, st storage.Storage, log *zap.Logger) *Stats {
	return &Stats{items: New(ctx, st, Config[model.ReelMetric]{
		Name:  "reel_stats",
		Key:   storage.KeyStats,
		ID:    func(m model.ReelMetric) string { return strconv.FormatInt(m.ID, 10) },
		Codec: statsCodec{},
	}, log)}
}

// Items returns the counters ordered by reel id.
func (s *Stats) Items() []model.ReelMetric { return s.items.Items() }

// Len returns the number of reels with counters.
func (s *Stats) Len() int { return s.items.Len() }

// Get returns the counters of reel id.
func (s *Stats) Get(id int64) (model.ReelMetric, bool) {
	return s.items.Get(strconv.FormatInt(id, 10))
}

// Subscribe replays the counters to fn and then delivers every change.
func (s *Stats) Subscribe(fn func([]model.ReelMetric)) (unsubscribe func()) {
	return s.items.Subscribe(fn)
}

// Reload re-reads the counters from storage.
func (s *Stats) Reload(ctx context.Context) { s.items.Reload(ctx) }

// RegisterView counts a view of reel id.
func (s *Stats) RegisterView(ctx context.Context, id int64) model.ReelMetric {
	return s.bump(ctx, id, "view", func(m *model.ReelMetric) { m.Views++ })
}

// RegisterLike counts a like of reel id.
func (s *Stats) RegisterLike(ctx context.Context, id int64) model.ReelMetric {
	return s.bump(ctx, id, "like", func(m *model.ReelMetric) { m.Likes++ })
}

// RegisterComment counts a comment on reel id.
func (s *Stats) RegisterComment(ctx context.Context, id int64) model.ReelMetric {
	return s.bump(ctx, id, "comment", func(m *model.ReelMetric) { m.Comments++ })
}

func (s *Stats) bump(ctx context.Context, id int64, op string, inc func(*model.ReelMetric)) model.ReelMetric {
	var out model.ReelMetric
	s.items.Mutate(ctx, op, func(cur []model.ReelMetric) []model.ReelMetric {
		i, found := slices.BinarySearchFunc(cur, id, func(m model.ReelMetric, id int64) int { return cmp.Compare(m.ID, id) })
		if !found {
			cur = slices.Insert(cur, i, model.ReelMetric{ID: id})
		}
		inc(&cur[i])
		out = cur[i]
		return cur
	})
	return out
}

// Totals sums the counters of all reels.
func (s *Stats) Totals() model.ReelTotals { return sum(s.Items()) }

// PerReel returns the counters ordered by views, most viewed first.
func (s *Stats) PerReel() []model.ReelMetric {
	out := s.Items()
	slices.SortStableFunc(out, func(a, b model.ReelMetric) int { return cmp.Compare(b.Views, a.Views) })
	return out
}

// Top returns the n reels with the highest views+likes+comments.
func (s *Stats) Top(n int) []model.ReelMetric {
	out := s.Items()
	slices.SortStableFunc(out, func(a, b model.ReelMetric) int { return cmp.Compare(b.Score(), a.Score()) })
	if n < len(out) {
		out = out[:max(n, 0)]
	}
	return out
}
