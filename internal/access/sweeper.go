package access

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically runs the full expiry reconciliation so time-based
// transitions happen even when nobody is reading.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSweeper starts a background goroutine reconciling on the given interval.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Shutdown stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.once.Do(s.cancel)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	if err := s.service.Reconcile(ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}

	s.logger.Debug("expiry sweep completed")
}
