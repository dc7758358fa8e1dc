// Package limiter throttles repeated failed sign-ins before they reach the remote API.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, clientHash []byte) (bool, time.Duration)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, clientHash []byte)
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email string, clientHash []byte) (bool, time.Duration)
}

// HashClient returns a stable hash for a client address so raw addresses are never kept.
func HashClient(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with a sliding failure window and lockout.
type Memory struct {
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory constructs a limiter that blocks for blockFor after maxFails failures
// within window.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
}

func key(email string, clientHash []byte) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + hex.EncodeToString(clientHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, email string, clientHash []byte) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key(email, clientHash)]
	if !ok {
		return true, 0
	}
	now := l.now()
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now)
	}
	return true, 0
}

// Success resets counters for (email, client).
func (l *Memory) Success(_ context.Context, email string, clientHash []byte) {
	l.mu.Lock()
	delete(l.entries, key(email, clientHash))
	l.mu.Unlock()
}

// Failure records a failed attempt; reaching maxFails inside the window sets a block.
func (l *Memory) Failure(_ context.Context, email string, clientHash []byte) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := key(email, clientHash)
	e, ok := l.entries[k]
	switch {
	case !ok:
		e = &entry{}
		l.entries[k] = e
		fallthrough
	case now.Sub(e.updatedAt) > l.window:
		e.fails = 1
	default:
		e.fails++
	}
	e.updatedAt = now
	if e.fails >= l.maxFails {
		e.blockedUntil = now.Add(l.blockFor)
		return true, l.blockFor
	}
	return false, 0
}
