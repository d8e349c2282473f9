package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically runs the expiry cleanup so passively expired grants
// become queryable without a date comparison.
type Sweeper struct {
	access   *AccessService
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewSweeper constructs a sweeper.
func NewSweeper(access *AccessService, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{access: access, interval: interval, logger: logger}
}

// Start launches the background loop. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	s.started = true
	s.logger.Info("access sweeper started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("access sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.access.Cleanup(ctx); err != nil {
				s.logger.Error("access sweep failed", zap.Error(err))
			}
		}
	}
}
