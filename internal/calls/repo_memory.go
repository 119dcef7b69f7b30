package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemorySessionStore is an in-memory session store for tests and early development.
type MemorySessionStore struct {
	mu   sync.Mutex
	rows map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{rows: map[string]Session{}}
}

func (s *MemorySessionStore) Create(ctx context.Context, row Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.ID] = row
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return row, nil
}

func (s *MemorySessionStore) GetByRoom(ctx context.Context, roomName string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.RoomName == roomName {
			return row, nil
		}
	}
	return Session{}, ErrNotFound
}

func (s *MemorySessionStore) Update(ctx context.Context, row Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.ID]; !ok {
		return ErrNotFound
	}
	s.rows[row.ID] = row
	return nil
}

func (s *MemorySessionStore) FindActiveByQuery(ctx context.Context, queryID string) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0)
	for _, row := range s.rows {
		if row.QueryID == queryID && row.Status.Active() {
			out = append(out, row)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemorySessionStore) ListStale(ctx context.Context, cutoff time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0)
	for _, row := range s.rows {
		if row.Status.Active() && row.CreatedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemorySessionStore) ListOverrun(ctx context.Context, cutoff time.Time) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0)
	for _, row := range s.rows {
		if row.Status == SessionStarted && row.StartedAt != nil && row.StartedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemorySessionStore) DeleteByQuery(ctx context.Context, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.QueryID == queryID {
			delete(s.rows, id)
		}
	}
	return nil
}

func sortByCreated(rows []Session) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
}

// MemoryRequestStore is an in-memory request store for tests and early development.
type MemoryRequestStore struct {
	mu   sync.Mutex
	rows map[string]Request
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{rows: map[string]Request{}}
}

func (s *MemoryRequestStore) Create(ctx context.Context, row Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.ID] = row
	return nil
}

func (s *MemoryRequestStore) Get(ctx context.Context, id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return row, nil
}

func (s *MemoryRequestStore) Update(ctx context.Context, row Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.ID]; !ok {
		return ErrNotFound
	}
	s.rows[row.ID] = row
	return nil
}

func (s *MemoryRequestStore) FindPendingByQuery(ctx context.Context, queryID string) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Request
	found := false
	for _, row := range s.rows {
		if row.QueryID != queryID || row.Status != RequestPending {
			continue
		}
		if !found || row.CreatedAt.After(best.CreatedAt) {
			best = row
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryRequestStore) FindLatestAcceptedByQuery(ctx context.Context, queryID string) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Request
	found := false
	for _, row := range s.rows {
		if row.QueryID != queryID || row.Status != RequestAccepted {
			continue
		}
		if !found || row.UpdatedAt.After(best.UpdatedAt) {
			best = row
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryRequestStore) ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, 0)
	for _, row := range s.rows {
		if row.QueryID == queryID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Request{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryRequestStore) DeleteByQuery(ctx context.Context, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.QueryID == queryID {
			delete(s.rows, id)
		}
	}
	return nil
}
