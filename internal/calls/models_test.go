package calls

import (
	"context"
	"testing"
	"time"
)

func TestSessionStatus_Active(t *testing.T) {
	if !SessionCreated.Active() || !SessionStarted.Active() {
		t.Fatalf("CREATED and STARTED should be active")
	}
	if SessionEnded.Active() {
		t.Fatalf("ENDED should not be active")
	}
}

func TestMemoryRequestStore_FindPendingPicksMostRecent(t *testing.T) {
	s := NewMemoryRequestStore()
	now := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	_ = s.Create(ctx, Request{ID: "r1", QueryID: "q", Status: RequestPending, CreatedAt: now})
	_ = s.Create(ctx, Request{ID: "r2", QueryID: "q", Status: RequestPending, CreatedAt: now.Add(time.Minute)})
	_ = s.Create(ctx, Request{ID: "r3", QueryID: "q", Status: RequestRejected, CreatedAt: now.Add(2 * time.Minute)})

	r, ok, err := s.FindPendingByQuery(ctx, "q")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ok || r.ID != "r2" {
		t.Fatalf("expected r2, got %+v (ok=%v)", r, ok)
	}
}

func TestMemorySessionStore_ListStaleAndOverrun(t *testing.T) {
	s := NewMemorySessionStore()
	now := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	old := now.Add(-3 * time.Hour)
	_ = s.Create(ctx, Session{ID: "s1", QueryID: "q1", Status: SessionCreated, CreatedAt: old})
	_ = s.Create(ctx, Session{ID: "s2", QueryID: "q2", Status: SessionStarted, StartedAt: &old, CreatedAt: old})
	_ = s.Create(ctx, Session{ID: "s3", QueryID: "q3", Status: SessionEnded, CreatedAt: old})
	_ = s.Create(ctx, Session{ID: "s4", QueryID: "q4", Status: SessionStarted, CreatedAt: now})

	stale, err := s.ListStale(ctx, now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("expected 2 stale sessions, got %d", len(stale))
	}

	over, err := s.ListOverrun(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(over) != 1 || over[0].ID != "s2" {
		t.Fatalf("expected s2 overrun, got %+v", over)
	}
}
