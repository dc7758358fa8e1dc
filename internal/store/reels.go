package store

import (
	"context"
	"strconv"
	"time"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// NewReel carries the caller-provided fields of a new short video.
type NewReel struct {
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Src       string   `json:"src"`
	Thumbnail string   `json:"thumbnail"`
	Duration  *float64 `json:"duration"`
}

// Reels is the locally-registered short-video feed, most recent first.
type Reels struct {
	*Store[model.Reel]
	now func() time.Time
}

// ReelsOption customizes Reels.
type ReelsOption func(*reelsOptions)

type reelsOptions struct {
	seed bool
	now  func() time.Time
}

// WithDemoSeed fills an empty or unreadable feed with the demo reels.
func WithDemoSeed() ReelsOption { return func(o *reelsOptions) { o.seed = true } }

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) ReelsOption { return func(o *reelsOptions) { o.now = now } }

// NewReels rehydrates the feed from st.
func NewReels(ctx context.Context, st storage.Storage, log *zap.Logger, opts ...ReelsOption) *Reels {
	o := reelsOptions{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	cfg := Config[model.Reel]{
		Name:  "reels",
		Key:   storage.KeyReels,
		ID:    func(r model.Reel) string { return strconv.FormatInt(r.ID, 10) },
		Order: Prepend,
	}
	if o.seed {
		cfg.Seed = func() []model.Reel { return demoReels(o.now()) }
	}
	return &Reels{Store: New(ctx, st, cfg, log), now: o.now}
}

// Add publishes a new reel with the next free id at the top of the feed.
func (r *Reels) Add(ctx context.Context, in NewReel) model.Reel {
	reel, _ := r.Insert(ctx, func(cur []model.Reel) model.Reel {
		var maxID int64
		for _, it := range cur {
			maxID = max(maxID, it.ID)
		}
		return model.Reel{
			ID:        maxID + 1,
			Title:     or(in.Title, "Nuevo Reel"),
			Author:    or(in.Author, "Autor"),
			Src:       in.Src,
			Thumbnail: in.Thumbnail,
			Duration:  in.Duration,
			CreatedAt: r.now().UTC(),
		}
	})
	return reel
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func demoReels(now time.Time) []model.Reel {
	demo := []struct{ title, author, src, thumb string }{
		{"Demo Reel 1", "GastroGuide", "/video1.mp4", "https://placehold.co/720x1280/FF6028/FFFFFF?text=Video+1"},
		{"Demo Reel 2", "GastroGuide", "/video2.mp4", "https://placehold.co/720x1280/FB8C71/FFFFFF?text=Video+2"},
		{"Introducción a la Plataforma", "GastroGuide", "/video3.mp4", "https://placehold.co/720x1280/FF6028/FFFFFF?text=Intro"},
		{"Tips de Estudio Rápidos", "ChefPro", "/video4.mp4", "https://placehold.co/720x1280/FB8C71/FFFFFF?text=Tips"},
		{"Cuchillos y Seguridad", "ProCocina", "/video5.mp4", "https://placehold.co/720x1280/EDEEE6/333?text=Cuchillos"},
	}
	out := make([]model.Reel, 0, len(demo))
	for i, d := range demo {
		out = append(out, model.Reel{
			ID:        int64(i + 1),
			Title:     d.title,
			Author:    d.author,
			Src:       d.src,
			Thumbnail: d.thumb,
			CreatedAt: now.UTC(),
		})
	}
	return out
}
