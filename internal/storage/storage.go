// Package storage defines the string key/value persistence used by the session and local stores,
// and its concrete backends.
package storage

import "context"

// Well-known keys.
const (
	KeyToken     = "token"             // direct bearer token
	KeyAuth      = "auth"              // raw login/registration response (JSON)
	KeyUser      = "user"              // merged session profile (JSON)
	KeyCart      = "gg_cart"           // cart items (JSON array)
	KeyPurchases = "gg_purchases"      // checkout purchases (JSON array)
	KeyPurchased = "purchased_courses" // purchased-course list with progress (JSON array)
	KeyReels     = "gg_reels_v1"       // locally-registered reels (JSON array)
	KeyUsers     = "gg_users_v1"       // locally-registered users (JSON array)
	KeyStats     = "reel_stats_v1"     // engagement counters (JSON array)
	KeySealSalt  = "gg_seal_salt"      // salt of the sealing key (plaintext)
)

// Storage is a string-keyed persistent map.
type Storage interface {
	// Get returns the value stored under key or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key; removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Clearer is implemented by backends that can drop every key they hold.
type Clearer interface {
	Clear(ctx context.Context) error
}
