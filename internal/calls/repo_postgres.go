package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"supportdesk/pkg/utils"
)

// PostgresSessionStore persists call sessions via database/sql (pgx stdlib driver).
//
// Assumed table:
//   call_sessions (id, query_id, agent_id, room_name, mode, status,
//                  agent_token, donor_token, request_id, started_at,
//                  ended_at, created_at, updated_at)
//
// The single-active-call invariant can additionally be backed by a partial
// unique index:
//   CREATE UNIQUE INDEX call_sessions_one_active
//   ON call_sessions (query_id) WHERE status IN ('CREATED','STARTED');
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `
id, query_id, agent_id, room_name, mode, status, agent_token, donor_token,
request_id, started_at, ended_at, created_at, updated_at
`

func (s *PostgresSessionStore) Create(ctx context.Context, row Session) error {
	const stmt = `
INSERT INTO call_sessions (` + sessionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt,
		row.ID,
		row.QueryID,
		row.AgentID,
		row.RoomName,
		row.Mode,
		row.Status,
		row.AgentToken,
		row.DonorToken,
		row.RequestID,
		row.StartedAt,
		row.EndedAt,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (s *PostgresSessionStore) Get(ctx context.Context, id string) (Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM call_sessions WHERE id = $1`
	return scanSession(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, id))
}

func (s *PostgresSessionStore) GetByRoom(ctx context.Context, roomName string) (Session, error) {
	const stmt = `SELECT ` + sessionColumns + ` FROM call_sessions WHERE room_name = $1`
	return scanSession(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, roomName))
}

func (s *PostgresSessionStore) Update(ctx context.Context, row Session) error {
	const stmt = `
UPDATE call_sessions SET
  status = $2, started_at = $3, ended_at = $4, updated_at = $5
WHERE id = $1
`
	res, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt, row.ID, row.Status, row.StartedAt, row.EndedAt, row.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSessionStore) FindActiveByQuery(ctx context.Context, queryID string) ([]Session, error) {
	const stmt = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE query_id = $1 AND status IN ($2, $3)
ORDER BY created_at ASC
`
	return s.list(ctx, stmt, queryID, SessionCreated, SessionStarted)
}

func (s *PostgresSessionStore) ListStale(ctx context.Context, cutoff time.Time) ([]Session, error) {
	const stmt = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE status IN ($1, $2) AND created_at < $3
ORDER BY created_at ASC
`
	return s.list(ctx, stmt, SessionCreated, SessionStarted, cutoff)
}

func (s *PostgresSessionStore) ListOverrun(ctx context.Context, cutoff time.Time) ([]Session, error) {
	const stmt = `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2
ORDER BY created_at ASC
`
	return s.list(ctx, stmt, SessionStarted, cutoff)
}

func (s *PostgresSessionStore) DeleteByQuery(ctx context.Context, queryID string) error {
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM call_sessions WHERE query_id = $1`, queryID)
	return err
}

func (s *PostgresSessionStore) list(ctx context.Context, stmt string, args ...any) ([]Session, error) {
	rows, err := utils.Exec(ctx, s.db).QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var row Session
	err := r.Scan(
		&row.ID,
		&row.QueryID,
		&row.AgentID,
		&row.RoomName,
		&row.Mode,
		&row.Status,
		&row.AgentToken,
		&row.DonorToken,
		&row.RequestID,
		&row.StartedAt,
		&row.EndedAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return row, nil
}

// PostgresRequestStore persists call requests via database/sql.
//
// Assumed table:
//   call_requests (id, query_id, mode, message, status, responded_by_id,
//                  created_at, updated_at)
type PostgresRequestStore struct {
	db *sql.DB
}

func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

const requestColumns = `
id, query_id, mode, message, status, responded_by_id, created_at, updated_at
`

func (s *PostgresRequestStore) Create(ctx context.Context, row Request) error {
	const stmt = `
INSERT INTO call_requests (` + requestColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt,
		row.ID,
		row.QueryID,
		row.Mode,
		row.Message,
		row.Status,
		row.RespondedByID,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

func (s *PostgresRequestStore) Get(ctx context.Context, id string) (Request, error) {
	const stmt = `SELECT ` + requestColumns + ` FROM call_requests WHERE id = $1`
	return scanRequest(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, id))
}

func (s *PostgresRequestStore) Update(ctx context.Context, row Request) error {
	const stmt = `
UPDATE call_requests SET
  status = $2, responded_by_id = $3, updated_at = $4
WHERE id = $1
`
	res, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt, row.ID, row.Status, row.RespondedByID, row.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRequestStore) FindPendingByQuery(ctx context.Context, queryID string) (Request, bool, error) {
	const stmt = `
SELECT ` + requestColumns + `
FROM call_requests
WHERE query_id = $1 AND status = $2
ORDER BY created_at DESC
LIMIT 1
`
	return s.findOne(ctx, stmt, queryID, RequestPending)
}

func (s *PostgresRequestStore) FindLatestAcceptedByQuery(ctx context.Context, queryID string) (Request, bool, error) {
	const stmt = `
SELECT ` + requestColumns + `
FROM call_requests
WHERE query_id = $1 AND status = $2
ORDER BY updated_at DESC
LIMIT 1
`
	return s.findOne(ctx, stmt, queryID, RequestAccepted)
}

func (s *PostgresRequestStore) findOne(ctx context.Context, stmt string, args ...any) (Request, bool, error) {
	row, err := scanRequest(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Request{}, false, nil
		}
		return Request{}, false, err
	}
	return row, true, nil
}

func (s *PostgresRequestStore) ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Request, error) {
	const stmt = `
SELECT ` + requestColumns + `
FROM call_requests
WHERE query_id = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3
`
	if limit <= 0 {
		limit = 50
	}
	rows, err := utils.Exec(ctx, s.db).QueryContext(ctx, stmt, queryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Request, 0)
	for rows.Next() {
		row, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresRequestStore) DeleteByQuery(ctx context.Context, queryID string) error {
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM call_requests WHERE query_id = $1`, queryID)
	return err
}

func scanRequest(r rowScanner) (Request, error) {
	var row Request
	err := r.Scan(
		&row.ID,
		&row.QueryID,
		&row.Mode,
		&row.Message,
		&row.Status,
		&row.RespondedByID,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return row, nil
}
