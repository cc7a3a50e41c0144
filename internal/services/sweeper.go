package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Pabby01/studIQ-sub001/pkg/logger"
	mem "github.com/Pabby01/studIQ-sub001/pkg/memcache"
)

// ExpiredTokenSweeper is the part of the reset service the sweeper drives.
type ExpiredTokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired reset tokens and compacts the rate
// limit store.
type Sweeper struct {
	tokens   ExpiredTokenSweeper
	limits   mem.RateLimitStore
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(tokens ExpiredTokenSweeper, limits mem.RateLimitStore, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		limits:   limits,
		interval: interval,
		timeout:  time.Minute,
		log:      log,
	}
}

// RunOnce sweeps tokens and compacts limits concurrently.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		deleted   int64
		compacted int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.tokens.SweepExpired(gctx)
		deleted = n
		return err
	})
	g.Go(func() error {
		n, err := s.limits.Compact(gctx)
		compacted = n
		return err
	})

	if err := g.Wait(); err != nil {
		s.log.Error("sweep run failed", logger.ErrorField(err))
		return err
	}

	s.log.Debug("sweep run finished",
		logger.Int64("tokens_deleted", deleted),
		logger.Int("rate_limit_entries_dropped", compacted),
	)
	return nil
}

// Start launches the ticker loop. A non-positive interval disables it.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 || s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(s.done)

	s.log.Info("reset token sweeper started", logger.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight run.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
