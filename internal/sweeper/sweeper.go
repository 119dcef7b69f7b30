package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"supportdesk/internal/config"
)

// Janitor is the slice of the lifecycle orchestrator the sweeper drives.
type Janitor interface {
	// ExpireStale force-ends active sessions older than the cutoff.
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
	// FlagOverruns appends a one-time notice to calls past the standard duration.
	FlagOverruns(ctx context.Context, threshold time.Duration) (int, error)
}

// Sweeper runs the call hygiene passes on a fixed interval. Expiry is the
// safety net for crashed clients that never sent an end; the overrun pass
// only annotates, it never ends a call.
type Sweeper struct {
	janitor  Janitor
	interval time.Duration
	expiry   time.Duration
	standard time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

func New(janitor Janitor, cfg config.SweeperConfig, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		janitor:  janitor,
		interval: cfg.Interval,
		expiry:   cfg.HardExpiry,
		standard: cfg.StandardDuration,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Stop blocks until the in-flight sweep, if any, finishes. Safe to call
// more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.doneCh)
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if n, err := s.janitor.ExpireStale(ctx, s.expiry); err != nil {
		s.log.Error("expire stale calls", "err", err)
	} else if n > 0 {
		s.log.Info("expired stale calls", "count", n)
	}

	if n, err := s.janitor.FlagOverruns(ctx, s.standard); err != nil {
		s.log.Error("flag overrun calls", "err", err)
	} else if n > 0 {
		s.log.Info("flagged overrun calls", "count", n)
	}
}
