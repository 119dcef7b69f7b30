package lifecycle

import (
	"context"
	"database/sql"
	"errors"

	"supportdesk/pkg/utils"
)

// PostgresDirectory resolves agents from the agents table.
//
// Assumed table:
//   agents (id, name, email, role, device_token)
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Agent(ctx context.Context, id string) (Agent, bool, error) {
	const stmt = `SELECT id, name, email, role, device_token FROM agents WHERE id = $1`
	var a Agent
	err := utils.Exec(ctx, d.db).QueryRowContext(ctx, stmt, id).Scan(
		&a.ID, &a.Name, &a.Email, &a.Role, &a.DeviceToken,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, false, nil
	}
	if err != nil {
		return Agent{}, false, err
	}
	return a, true, nil
}
