package messages

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a simple in-memory message store for tests and early development.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Message{}}
}

func (s *MemoryStore) Append(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[m.ID] = m
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) Update(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return ErrNotFound
	}
	s.rows[m.ID] = m
	return nil
}

func (s *MemoryStore) ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range s.rows {
		if m.QueryID == queryID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Message{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FindByCallRequest(ctx context.Context, requestID string) (Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.rows {
		if m.CallRequestID == requestID {
			return m, true, nil
		}
	}
	return Message{}, false, nil
}

func (s *MemoryStore) ListByCallSession(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range s.rows {
		if m.CallSessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteByQuery(ctx context.Context, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.rows {
		if m.QueryID == queryID {
			delete(s.rows, id)
		}
	}
	return nil
}
