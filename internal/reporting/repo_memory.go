package reporting

import (
	"context"
	"sync"
	"time"

	"supportdesk/internal/calls"
	"supportdesk/internal/queries"
)

// MemoryRepo is an in-memory reporting repository for tests and early
// development. Rows are filtered on CreatedAt against the half-open range.
type MemoryRepo struct {
	mu sync.Mutex

	Queries  []queries.Query
	Sessions []calls.Session
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func inRange(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func (r *MemoryRepo) CountQueriesByStatus(ctx context.Context, from, to time.Time) (map[queries.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[queries.Status]int{}
	for _, q := range r.Queries {
		if inRange(q.CreatedAt, from, to) {
			out[q.Status]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) SessionStats(ctx context.Context, from, to time.Time) (SessionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out SessionStats
	for _, s := range r.Sessions {
		if !inRange(s.CreatedAt, from, to) {
			continue
		}
		out.Total++
		switch s.Mode {
		case calls.ModeAudio:
			out.Audio++
		case calls.ModeVideo:
			out.Video++
		}
		if s.Status.Active() {
			out.Active++
		}
		if s.StartedAt != nil {
			out.Answered++
			if s.EndedAt != nil {
				out.TotalDurationSeconds += int(s.EndedAt.Sub(*s.StartedAt).Seconds())
			}
		}
	}
	return out, nil
}
