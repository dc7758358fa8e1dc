package store

import (
	"context"
	"slices"
	"time"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/storage"
	"go.uber.org/zap"
)

// Users is the list of platform users registered from this client, most recent first.
type Users struct {
	*Store[model.AppUser]
	now func() time.Time
}

// NewUsers rehydrates the user list from st.
func NewUsers(ctx context.Context, st storage.Storage, log *zap.Logger) *Users {
	return &Users{
		Store: New(ctx, st, Config[model.AppUser]{
			Name:  "users",
			Key:   storage.KeyUsers,
			ID:    func(u model.AppUser) string { return string(u.ID) },
			Order: Prepend,
		}, log),
		now: time.Now,
	}
}

// Add records u at the top of the list. An empty id is replaced by the next numeric id
// (non-numeric ids do not count), an empty email by "unknown" and an empty creation
// time by now. A caller-supplied id that is already listed replaces that entry, so ids
// stay unique.
func (u *Users) Add(ctx context.Context, in model.AppUser) model.AppUser {
	u.Mutate(ctx, "add", func(cur []model.AppUser) []model.AppUser {
		if in.ID == "" {
			var maxID int64
			for _, it := range cur {
				if n, ok := it.ID.Int(); ok {
					maxID = max(maxID, n)
				}
			}
			in.ID = model.IntID(maxID + 1)
		}
		if in.Email == "" {
			in.Email = "unknown"
		}
		if in.CreatedAt == "" {
			in.CreatedAt = u.now().UTC().Format(time.RFC3339)
		}
		cur = slices.DeleteFunc(cur, func(it model.AppUser) bool { return it.ID == in.ID })
		return append([]model.AppUser{in}, cur...)
	})
	return in
}
