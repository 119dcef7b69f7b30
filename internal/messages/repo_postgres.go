package messages

import (
	"context"
	"database/sql"
	"errors"

	"supportdesk/pkg/utils"
)

// PostgresStore persists messages via database/sql (pgx stdlib driver).
//
// Assumed table:
//   messages (id, query_id, content, sender, agent_id, donor_id, type,
//             call_session_id, call_request_id, created_at, updated_at)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const messageColumns = `
id, query_id, content, sender, agent_id, donor_id, type,
call_session_id, call_request_id, created_at, updated_at
`

func (s *PostgresStore) Append(ctx context.Context, m Message) error {
	const stmt = `
INSERT INTO messages (` + messageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt,
		m.ID,
		m.QueryID,
		m.Content,
		m.Sender,
		m.AgentID,
		m.DonorID,
		m.Type,
		m.CallSessionID,
		m.CallRequestID,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Message, error) {
	const stmt = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, id))
}

func (s *PostgresStore) Update(ctx context.Context, m Message) error {
	const stmt = `
UPDATE messages SET
  content = $2, call_session_id = $3, updated_at = $4
WHERE id = $1
`
	res, err := utils.Exec(ctx, s.db).ExecContext(ctx, stmt, m.ID, m.Content, m.CallSessionID, m.UpdatedAt)
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

func (s *PostgresStore) ListByQuery(ctx context.Context, queryID string, limit, offset int) ([]Message, error) {
	const stmt = `
SELECT ` + messageColumns + `
FROM messages
WHERE query_id = $1
ORDER BY created_at ASC
LIMIT $2 OFFSET $3
`
	if limit <= 0 {
		limit = 100
	}
	rows, err := utils.Exec(ctx, s.db).QueryContext(ctx, stmt, queryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByCallRequest(ctx context.Context, requestID string) (Message, bool, error) {
	const stmt = `
SELECT ` + messageColumns + `
FROM messages
WHERE call_request_id = $1
ORDER BY created_at ASC
LIMIT 1
`
	m, err := scanMessage(utils.Exec(ctx, s.db).QueryRowContext(ctx, stmt, requestID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	return m, true, nil
}

func (s *PostgresStore) ListByCallSession(ctx context.Context, sessionID string) ([]Message, error) {
	const stmt = `
SELECT ` + messageColumns + `
FROM messages
WHERE call_session_id = $1
ORDER BY created_at ASC
`
	rows, err := utils.Exec(ctx, s.db).QueryContext(ctx, stmt, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteByQuery(ctx context.Context, queryID string) error {
	_, err := utils.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM messages WHERE query_id = $1`, queryID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (Message, error) {
	var m Message
	err := r.Scan(
		&m.ID,
		&m.QueryID,
		&m.Content,
		&m.Sender,
		&m.AgentID,
		&m.DonorID,
		&m.Type,
		&m.CallSessionID,
		&m.CallRequestID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}
