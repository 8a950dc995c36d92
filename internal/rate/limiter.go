package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter counts hits per key in fixed windows. Allow must decide and record
// a hit as one atomic step: of N concurrent callers at the boundary, exactly
// limit-count are admitted.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type MemoryLimiter struct {
	mu    sync.Mutex
	store map[string]*bucket
	now   func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

const sweepThreshold = 4096

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.store) > sweepThreshold {
		m.sweep(now)
	}

	b, ok := m.store[key]
	if !ok || !now.Before(b.resetAt) || b.window != window {
		b = &bucket{count: 0, resetAt: now.Add(window), window: window}
		m.store[key] = b
	}

	retry := b.resetAt.Sub(now)
	if b.count >= limit {
		return Result{Allowed: false, RetryAfter: retry}, nil
	}

	b.count++
	return Result{Allowed: true, Remaining: limit - b.count, RetryAfter: retry}, nil
}

func (m *MemoryLimiter) sweep(now time.Time) {
	for key, b := range m.store {
		if !now.Before(b.resetAt) {
			delete(m.store, key)
		}
	}
}
