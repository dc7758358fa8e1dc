// Package model defines the client-side entities cached by the session and the local stores.
package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ID is an identifier the remote API may send either as a JSON number or a JSON string.
// It is kept in its textual form so string and numeric ids compare equal.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Int returns the numeric value of the id, if it is an integer.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// IntID formats an integer identifier.
func IntID(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

// Course is an entry of the cart and of the checkout purchases list.
type Course struct {
	ID          ID      `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	OrderID     string  `json:"orderId,omitempty"` // set on checkout
}

// PurchasedCourse is a record of the purchased-courses list with learning progress.
type PurchasedCourse struct {
	ID            ID                `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Image         string            `json:"image"`
	Instructor    string            `json:"instructor,omitempty"`
	Price         *float64          `json:"price,omitempty"`
	DiscountPrice *float64          `json:"discountPrice,omitempty"`
	Language      string            `json:"language,omitempty"`
	PurchaseDate  string            `json:"purchaseDate"`
	Progress      float64           `json:"progress"`
	Rating        *float64          `json:"rating,omitempty"`
	Modules       []json.RawMessage `json:"modules,omitempty"`
	Lessons       []json.RawMessage `json:"lessons,omitempty"`
}

// ReelComment is a comment left on a short video.
type ReelComment struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reel is a locally-registered short-video post.
type Reel struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Author      string        `json:"author"`
	Src         string        `json:"src"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Duration    *float64      `json:"duration,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	Likes       int           `json:"likes"`
	Comments    int           `json:"comments"`
	Saves       int           `json:"saves"`
	Shares      int           `json:"shares"`
	Liked       bool          `json:"liked"`
	CommentList []ReelComment `json:"commentList,omitempty"`
}

// AppUser is a locally-registered platform user.
type AppUser struct {
	ID        ID       `json:"id"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email"`
	CreatedAt string   `json:"createdAt"`
	Role      string   `json:"role,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// ReelMetric holds engagement counters of one reel.
type ReelMetric struct {
	ID       int64 `json:"id"`
	Views    int   `json:"views"`
	Likes    int   `json:"likes"`
	Comments int   `json:"comments"`
}

// Score is the ranking weight used by top-N queries.
func (m ReelMetric) Score() int { return m.Views + m.Likes + m.Comments }

// ReelTotals aggregates counters across all reels.
type ReelTotals struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}
