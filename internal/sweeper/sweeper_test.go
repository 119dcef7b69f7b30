package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"supportdesk/internal/config"
)

type stubJanitor struct {
	mu       sync.Mutex
	expired  int
	flagged  int
	expireIn []time.Duration
	flagIn   []time.Duration
	err      error
}

func (j *stubJanitor) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.expired++
	j.expireIn = append(j.expireIn, olderThan)
	return 1, j.err
}

func (j *stubJanitor) FlagOverruns(ctx context.Context, threshold time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flagged++
	j.flagIn = append(j.flagIn, threshold)
	return 0, j.err
}

func newTestSweeper(j Janitor) *Sweeper {
	return New(j, config.SweeperConfig{
		Interval:         time.Minute,
		HardExpiry:       2 * time.Hour,
		StandardDuration: 30 * time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSweep_PassesConfiguredCutoffs(t *testing.T) {
	j := &stubJanitor{}
	s := newTestSweeper(j)

	s.sweep()

	if j.expired != 1 || j.flagged != 1 {
		t.Fatalf("expected one pass each, got expire=%d flag=%d", j.expired, j.flagged)
	}
	if j.expireIn[0] != 2*time.Hour {
		t.Fatalf("expected hard expiry cutoff, got %v", j.expireIn[0])
	}
	if j.flagIn[0] != 30*time.Minute {
		t.Fatalf("expected standard duration threshold, got %v", j.flagIn[0])
	}
}

func TestSweep_JanitorErrorDoesNotSkipOverrunPass(t *testing.T) {
	j := &stubJanitor{err: errors.New("store down")}
	s := newTestSweeper(j)

	s.sweep()

	if j.flagged != 1 {
		t.Fatalf("expected overrun pass despite expiry error, got %d", j.flagged)
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	j := &stubJanitor{}
	s := newTestSweeper(j)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
