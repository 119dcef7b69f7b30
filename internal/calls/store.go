package calls

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("calls: not found")

// SessionStore is the persistence contract for call sessions.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	GetByRoom(ctx context.Context, roomName string) (Session, error)
	Update(ctx context.Context, s Session) error

	// FindActiveByQuery returns sessions in CREATED or STARTED for a query.
	// The single-active-call invariant means this should return at most one
	// row, but the contract allows more so the resolver cascade can clean up
	// after historical violations.
	FindActiveByQuery(ctx context.Context, queryID string) ([]Session, error)

	// ListStale returns active sessions created before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]Session, error)

	// ListOverrun returns STARTED sessions whose start time is before the cutoff.
	ListOverrun(ctx context.Context, cutoff time.Time) ([]Session, error)

	DeleteByQuery(ctx context.Context, queryID string) error
}

// RequestStore is the persistence contract for call requests.
type RequestStore interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, error)
	Update(ctx context.Context, r Request) error

	// FindPendingByQuery returns the most recent PENDING request for a query.
	FindPendingByQuery(ctx context.Context, queryID string) (Request, bool, error)

	// FindLatestAcceptedByQuery returns the most recently resolved ACCEPTED
	// request for a query, used by the duplicate-announcement guard.
	FindLatestAcceptedByQuery(ctx context.Context, queryID string) (Request, bool, error)

	ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Request, error)

	DeleteByQuery(ctx context.Context, queryID string) error
}
