package reporting

import (
	"context"
	"errors"
	"time"

	"supportdesk/internal/queries"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations should
// query the authoritative query and call-session tables; the aggregates are
// cheap enough to compute on read at support-desk volumes.
type Repository interface {
	CountQueriesByStatus(ctx context.Context, from, to time.Time) (map[queries.Status]int, error)
	SessionStats(ctx context.Context, from, to time.Time) (SessionStats, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func validate(req SummaryRequest) error {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ErrInvalidRequest
	}
	return nil
}

func (s *Service) QueriesSummary(ctx context.Context, req SummaryRequest) (QuerySummary, error) {
	if err := validate(req); err != nil {
		return QuerySummary{}, err
	}
	counts, err := s.repo.CountQueriesByStatus(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return QuerySummary{}, err
	}

	out := QuerySummary{
		InProgress:   counts[queries.StatusInProgress],
		PendingReply: counts[queries.StatusPendingReply],
		Resolved:     counts[queries.StatusResolved],
		Transferred:  counts[queries.StatusTransferred],
	}
	out.Total = out.InProgress + out.PendingReply + out.Resolved + out.Transferred
	if out.Total > 0 {
		out.ResolutionRate = float64(out.Resolved) / float64(out.Total)
	}
	return out, nil
}

func (s *Service) CallsSummary(ctx context.Context, req SummaryRequest) (CallSummary, error) {
	if err := validate(req); err != nil {
		return CallSummary{}, err
	}
	stats, err := s.repo.SessionStats(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CallSummary{}, err
	}

	out := CallSummary{
		TotalSessions:        stats.Total,
		AnsweredSessions:     stats.Answered,
		ActiveSessions:       stats.Active,
		AudioSessions:        stats.Audio,
		VideoSessions:        stats.Video,
		TotalDurationSeconds: stats.TotalDurationSeconds,
	}
	if stats.Answered > 0 {
		out.AverageDurationSeconds = stats.TotalDurationSeconds / stats.Answered
	}
	if stats.Total > 0 {
		out.AnswerRate = float64(stats.Answered) / float64(stats.Total)
	}
	return out, nil
}
