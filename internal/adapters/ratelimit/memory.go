package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count       int
	windowStart time.Time
}

// InMemory is the single-process fallback limiter used when no Redis
// address is configured or Redis is unreachable at startup. Counters
// are per process, so limits multiply across replicas.
type InMemory struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]windowCounter
}

func NewInMemory(window time.Duration) *InMemory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &InMemory{
		window:   window,
		now:      time.Now,
		counters: make(map[string]windowCounter),
	}
}

func (m *InMemory) Allow(_ context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	counter, ok := m.counters[key]
	if !ok || now.Sub(counter.windowStart) >= m.window {
		counter = windowCounter{windowStart: now}
	}
	counter.count++
	m.counters[key] = counter

	return counter.count <= limit, nil
}
