package reporting

import (
	"context"
	"database/sql"
	"time"

	"supportdesk/internal/queries"
	"supportdesk/pkg/utils"
)

// PostgresRepo computes summaries with aggregate SQL over the authoritative
// tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) CountQueriesByStatus(ctx context.Context, from, to time.Time) (map[queries.Status]int, error) {
	const stmt = `
SELECT status, COUNT(*)
FROM queries
WHERE created_at >= $1 AND created_at < $2
GROUP BY status
`
	rows, err := utils.Exec(ctx, r.db).QueryContext(ctx, stmt, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[queries.Status]int{}
	for rows.Next() {
		var status queries.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SessionStats(ctx context.Context, from, to time.Time) (SessionStats, error) {
	const stmt = `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE started_at IS NOT NULL),
  COUNT(*) FILTER (WHERE status IN ('CREATED','STARTED')),
  COUNT(*) FILTER (WHERE mode = 'audio'),
  COUNT(*) FILTER (WHERE mode = 'video'),
  COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at)) )
    FILTER (WHERE started_at IS NOT NULL AND ended_at IS NOT NULL), 0)::bigint
FROM call_sessions
WHERE created_at >= $1 AND created_at < $2
`
	var out SessionStats
	err := utils.Exec(ctx, r.db).QueryRowContext(ctx, stmt, from, to).Scan(
		&out.Total, &out.Answered, &out.Active, &out.Audio, &out.Video, &out.TotalDurationSeconds,
	)
	if err != nil {
		return SessionStats{}, err
	}
	return out, nil
}
