package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportdesk/internal/calls"
	"supportdesk/internal/queries"
)

func TestQueriesSummary(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Queries = []queries.Query{
		{ID: "q1", Status: queries.StatusResolved, CreatedAt: base.Add(time.Hour)},
		{ID: "q2", Status: queries.StatusResolved, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "q3", Status: queries.StatusPendingReply, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "q4", Status: queries.StatusTransferred, CreatedAt: base.Add(4 * time.Hour)},
		// outside the range
		{ID: "q5", Status: queries.StatusResolved, CreatedAt: base.Add(48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.QueriesSummary(context.Background(), SummaryRequest{
		Range: TimeRange{From: base, To: base.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("QueriesSummary: %v", err)
	}
	if out.Total != 4 || out.Resolved != 2 || out.PendingReply != 1 || out.Transferred != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.ResolutionRate != 0.5 {
		t.Fatalf("expected resolution rate 0.5, got %v", out.ResolutionRate)
	}
}

func TestCallsSummary(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	started := base.Add(time.Hour)
	ended := started.Add(10 * time.Minute)

	repo := NewMemoryRepo()
	repo.Sessions = []calls.Session{
		{ID: "s1", Mode: calls.ModeAudio, Status: calls.SessionEnded, StartedAt: &started, EndedAt: &ended, CreatedAt: base.Add(time.Hour)},
		{ID: "s2", Mode: calls.ModeVideo, Status: calls.SessionEnded, CreatedAt: base.Add(2 * time.Hour)}, // never answered
		{ID: "s3", Mode: calls.ModeVideo, Status: calls.SessionStarted, StartedAt: &started, CreatedAt: base.Add(3 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), SummaryRequest{
		Range: TimeRange{From: base, To: base.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("CallsSummary: %v", err)
	}
	if out.TotalSessions != 3 || out.AnsweredSessions != 2 || out.ActiveSessions != 1 {
		t.Fatalf("unexpected summary: %+v", out)
	}
	if out.AudioSessions != 1 || out.VideoSessions != 2 {
		t.Fatalf("unexpected mode split: %+v", out)
	}
	if out.TotalDurationSeconds != 600 || out.AverageDurationSeconds != 300 {
		t.Fatalf("unexpected durations: %+v", out)
	}
}

func TestSummary_InvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.QueriesSummary(context.Background(), SummaryRequest{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
