package store

import (
	"context"
	"slices"

	"github.com/and161185/gastroguide/internal/model"
	"github.com/and161185/gastroguide/internal/storage"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

func courseID(c model.Course) string { return string(c.ID) }

// Cart is the course cart together with the list of courses bought through it.
// Neither collection is ever seeded.
type Cart struct {
	items     *Store[model.Course]
	purchases *Store[model.Course]
	log       *zap.Logger
}

// NewCart rehydrates the cart and purchases from st.
func NewCart(ctx context.Context, st storage.Storage, log *zap.Logger) *Cart {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cart{
		items: New(ctx, st, Config[model.Course]{
			Name: "cart", Key: storage.KeyCart, ID: courseID, Dedup: true,
		}, log),
		purchases: New(ctx, st, Config[model.Course]{
			Name: "purchases", Key: storage.KeyPurchases, ID: courseID, Dedup: true,
		}, log),
		log: log,
	}
}

// Add puts c in the cart. It returns false if the course is already there.
func (c *Cart) Add(ctx context.Context, course model.Course) bool {
	return c.items.Add(ctx, course)
}

// Remove takes a course out of the cart.
func (c *Cart) Remove(ctx context.Context, id model.ID) { c.items.Remove(ctx, string(id)) }

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) { c.items.Clear(ctx) }

// Items returns the cart contents in insertion order.
func (c *Cart) Items() []model.Course { return c.items.Items() }

// Purchases returns the courses bought so far.
func (c *Cart) Purchases() []model.Course { return c.purchases.Items() }

// Subscribe delivers the cart contents on every change.
func (c *Cart) Subscribe(fn func([]model.Course)) func() { return c.items.Subscribe(fn) }

// SubscribePurchases delivers the purchases on every change.
func (c *Cart) SubscribePurchases(fn func([]model.Course)) func() { return c.purchases.Subscribe(fn) }

// Total is the sum of the prices in the cart.
func (c *Cart) Total() float64 {
	var sum float64
	for _, it := range c.items.Items() {
		sum += it.Price
	}
	return sum
}

// Checkout moves the cart into the purchases under a fresh order id, skipping courses
// already purchased, and empties the cart. It returns the order id and the newly bought courses.
func (c *Cart) Checkout(ctx context.Context) (string, []model.Course) {
	orderID := uuid.Must(uuid.NewV4()).String()
	var bought []model.Course
	c.purchases.Mutate(ctx, "checkout", func(cur []model.Course) []model.Course {
		for _, it := range c.items.Items() {
			if slices.ContainsFunc(cur, func(p model.Course) bool { return p.ID == it.ID }) {
				continue
			}
			it.OrderID = orderID
			cur = append(cur, it)
			bought = append(bought, it)
		}
		return cur
	})
	c.items.Clear(ctx)
	c.log.Info("checkout", zap.String("order", orderID), zap.Int("courses", len(bought)))
	return orderID, bought
}

// BuyNow purchases a single course without touching the cart.
// It returns false if the course was already purchased.
func (c *Cart) BuyNow(ctx context.Context, course model.Course) bool {
	if course.OrderID == "" {
		course.OrderID = uuid.Must(uuid.NewV4()).String()
	}
	return c.purchases.Add(ctx, course)
}
