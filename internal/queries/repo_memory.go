package queries

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a simple in-memory query store for tests and early development.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Query
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Query{}}
}

func (s *MemoryStore) Create(ctx context.Context, q Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[q.ID] = q
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.rows[id]
	if !ok {
		return Query{}, ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) Update(ctx context.Context, q Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[q.ID]; !ok {
		return ErrNotFound
	}
	s.rows[q.ID] = q
	return nil
}

func (s *MemoryStore) FindActiveByDonor(ctx context.Context, donorID string) (Query, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.rows {
		if q.DonorID == donorID && !q.Status.Terminal() {
			return q, true, nil
		}
	}
	return Query{}, false, nil
}

func (s *MemoryStore) List(ctx context.Context, limit, offset int) ([]Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Query, 0, len(s.rows))
	for _, q := range s.rows {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func paginate(rows []Query, limit, offset int) []Query {
	if offset >= len(rows) {
		return []Query{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
