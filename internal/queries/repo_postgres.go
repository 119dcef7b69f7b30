package queries

import (
	"context"
	"database/sql"
	"errors"

	"supportdesk/pkg/utils"
)

// PostgresStore persists queries via database/sql (pgx stdlib driver).
//
// Assumed table:
//   queries (id, donor_id, donor_name, test_name, stage, device, status,
//            assigned_agent_id, resolved_by_id, transferred_to_id,
//            transferred_to_name, transfer_note, created_at, updated_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const queryColumns = `
id, donor_id, donor_name, test_name, stage, device, status,
assigned_agent_id, resolved_by_id, transferred_to_id, transferred_to_name,
transfer_note, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, q Query) error {
	const stmt = `
INSERT INTO queries (` + queryColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt,
		q.ID,
		q.DonorID,
		q.DonorName,
		q.TestName,
		q.Stage,
		q.Device,
		q.Status,
		q.AssignedAgentID,
		q.ResolvedByID,
		q.TransferredToID,
		q.TransferredToName,
		q.TransferNote,
		q.CreatedAt,
		q.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Query, error) {
	const stmt = `SELECT ` + queryColumns + ` FROM queries WHERE id = $1`
	return scanQuery(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, id))
}

func (s *PostgresStore) Update(ctx context.Context, q Query) error {
	const stmt = `
UPDATE queries SET
  donor_name = $2, test_name = $3, stage = $4, device = $5, status = $6,
  assigned_agent_id = $7, resolved_by_id = $8, transferred_to_id = $9,
  transferred_to_name = $10, transfer_note = $11, updated_at = $12
WHERE id = $1
`
	res, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt,
		q.ID,
		q.DonorName,
		q.TestName,
		q.Stage,
		q.Device,
		q.Status,
		q.AssignedAgentID,
		q.ResolvedByID,
		q.TransferredToID,
		q.TransferredToName,
		q.TransferNote,
		q.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) FindActiveByDonor(ctx context.Context, donorID string) (Query, bool, error) {
	const stmt = `
SELECT ` + queryColumns + `
FROM queries
WHERE donor_id = $1 AND status NOT IN ($2, $3)
ORDER BY created_at DESC
LIMIT 1
`
	q, err := scanQuery(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, donorID, StatusResolved, StatusTransferred))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Query{}, false, nil
		}
		return Query{}, false, err
	}
	return q, true, nil
}

func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]Query, error) {
	const stmt = `
SELECT ` + queryColumns + `
FROM queries
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`
	if limit <= 0 {
		limit = 50
	}
	rows, err := utils.Exec(ctx, s.db).QueryContext(ctx, stmt, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Query, 0)
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := utils.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM queries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(r rowScanner) (Query, error) {
	var q Query
	err := r.Scan(
		&q.ID,
		&q.DonorID,
		&q.DonorName,
		&q.TestName,
		&q.Stage,
		&q.Device,
		&q.Status,
		&q.AssignedAgentID,
		&q.ResolvedByID,
		&q.TransferredToID,
		&q.TransferredToName,
		&q.TransferNote,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Query{}, ErrNotFound
		}
		return Query{}, err
	}
	return q, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
