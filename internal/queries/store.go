package queries

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("queries: not found")

// Store is the persistence contract for queries.
//
// Reads are ordered by creation time, newest first. Implementations must
// treat Update as update-by-id of the full row.
type Store interface {
	Create(ctx context.Context, q Query) error
	Get(ctx context.Context, id string) (Query, error)
	Update(ctx context.Context, q Query) error

	// FindActiveByDonor returns the donor's non-terminal query, if any.
	FindActiveByDonor(ctx context.Context, donorID string) (Query, bool, error)

	List(ctx context.Context, limit, offset int) ([]Query, error)

	// Delete removes a query row. Admin-only, low-frequency path; message and
	// call rows are removed by their own stores.
	Delete(ctx context.Context, id string) error
}
