package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiryStore persists the expired state for overdue visitor requests
type ExpiryStore interface {
	ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically persists the expired state for visitor requests
// whose validity window has closed. Correctness never depends on it:
// reads derive expiry lazily, the sweep only keeps stored rows and
// reports consistent.
type Sweeper struct {
	logger   *zap.Logger
	store    ExpiryStore
	interval time.Duration
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewSweeper creates a sweeper with the given interval
func NewSweeper(store ExpiryStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		logger:   logger.Named("scheduler.sweeper"),
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// Start launches the background sweep loop. Calling Start on a running
// sweeper is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("visitor expiry sweeper started",
		zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("visitor expiry sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep(s.ctx)
		}
	}
}

// sweep runs one pass; failures are logged and retried on the next tick
func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.ExpireOverdueRequests(ctx, s.now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired overdue visitor requests", zap.Int64("count", n))
	}
}
