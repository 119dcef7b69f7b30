package messages

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("messages: not found")

// Store is the persistence contract for query messages.
//
// Append-only per query, ordered by creation time. Update exists solely for
// the call-request annotation pattern; callers must not rewrite history with it.
type Store interface {
	Append(ctx context.Context, m Message) error
	Get(ctx context.Context, id string) (Message, error)
	Update(ctx context.Context, m Message) error

	ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Message, error)

	// FindByCallRequest returns the system message linked to a call request.
	FindByCallRequest(ctx context.Context, requestID string) (Message, bool, error)

	// ListByCallSession returns every message linked to a call session,
	// oldest first. The sweeper uses this to avoid duplicate notices.
	ListByCallSession(ctx context.Context, sessionID string) ([]Message, error)

	DeleteByQuery(ctx context.Context, queryID string) error
}
