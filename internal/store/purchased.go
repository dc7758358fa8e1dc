package store

import (
	"context"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// PurchasedCourses is the purchased-course library with learning progress.
type PurchasedCourses struct {
	*Store[model.PurchasedCourse]
	log *zap.Logger
}

// NewPurchasedCourses rehydrates the library from st.
func NewPurchasedCourses(ctx context.Context, st storage.Storage, log *zap.Logger) *PurchasedCourses {
	if log == nil {
		log = zap.NewNop()
	}
	return &PurchasedCourses{
		Store: New(ctx, st, Config[model.PurchasedCourse]{
			Name:  "purchased_courses",
			Key:   storage.KeyPurchased,
			ID:    func(c model.PurchasedCourse) string { return string(c.ID) },
			Dedup: true,
		}, log),
		log: log,
	}
}

// Add records c. A course that is already purchased is logged and ignored.
func (p *PurchasedCourses) Add(ctx context.Context, c model.PurchasedCourse) {
	if !p.Store.Add(ctx, c) {
		p.log.Warn("course already purchased", zap.String("id", string(c.ID)))
	}
}

// UpdateProgress sets the progress of course id.
func (p *PurchasedCourses) UpdateProgress(ctx context.Context, id model.ID, progress float64) bool {
	return p.Update(ctx, string(id), func(c model.PurchasedCourse) model.PurchasedCourse {
		c.Progress = progress
		return c
	})
}
