// pkg/memcache/rate_limit_store.go
package mem

import (
	"context"
	"sync"
	"time"
)

// RateLimitEntry is the fixed-window counter kept per identity key.
type RateLimitEntry struct {
	Count         int64
	WindowResetAt time.Time
}

type RateLimitStore interface {
	// Take atomically applies one attempt to key. A missing or elapsed
	// entry restarts at Count=1; otherwise Count is incremented only
	// while it is below max. The returned bool reports acceptance.
	Take(ctx context.Context, key string, window time.Duration, max int) (RateLimitEntry, bool, error)

	// Compact drops entries whose window has elapsed and reports how many.
	Compact(ctx context.Context) (int, error)
}

type MemoryRateLimitStore struct {
	mu   sync.Mutex
	data map[string]RateLimitEntry
	now  func() time.Time

	gcInterval time.Duration
	startOnce  sync.Once
	started    bool
	stopOnce   sync.Once
	stop       chan struct{}
	done       chan struct{}
}

func NewMemoryRateLimitStore(gcInterval time.Duration) *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		data:       make(map[string]RateLimitEntry),
		now:        time.Now,
		gcInterval: gcInterval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// WithClock replaces the time source; used by tests.
func (s *MemoryRateLimitStore) WithClock(now func() time.Time) *MemoryRateLimitStore {
	s.now = now
	return s
}

func (s *MemoryRateLimitStore) Take(_ context.Context, key string, window time.Duration, max int) (RateLimitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.data[key]
	if !ok || !now.Before(e.WindowResetAt) {
		e = RateLimitEntry{Count: 1, WindowResetAt: now.Add(window)}
		s.data[key] = e
		return e, true, nil
	}

	if e.Count < int64(max) {
		e.Count++
		s.data[key] = e
		return e, true, nil
	}

	return e, false, nil
}

func (s *MemoryRateLimitStore) Compact(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.data {
		if !now.Before(e.WindowResetAt) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

// Start launches the janitor goroutine. A zero interval disables it.
func (s *MemoryRateLimitStore) Start() {
	s.startOnce.Do(s.startJanitor)
}

func (s *MemoryRateLimitStore) startJanitor() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	if s.gcInterval <= 0 {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = s.Compact(context.Background())
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor and waits for it. Safe to call more than once.
func (s *MemoryRateLimitStore) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}
