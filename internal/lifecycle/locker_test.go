package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLocker_AcquireHonorsContext(t *testing.T) {
	l := NewMemoryLocker()

	release, err := l.Acquire(context.Background(), "q1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "q1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while held, got %v", err)
	}

	// Independent keys do not contend.
	r2, err := l.Acquire(context.Background(), "q2")
	if err != nil {
		t.Fatalf("acquire other key: %v", err)
	}
	r2()

	release()
	r3, err := l.Acquire(context.Background(), "q1")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	r3()
}
