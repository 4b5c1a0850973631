package cases

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// GetByID fetches a case by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Case, error) {
	const query = `
SELECT id, status, residency_region, assigned_officer, created_at, updated_at
FROM cases
WHERE id = $1
LIMIT 1`
	var c Case
	var officer sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Status,
		&c.ResidencyRegion,
		&officer,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, err
	}
	if officer.Valid {
		c.AssignedOfficer = officer.String
	}
	return c, nil
}

// ListCompletedBefore returns completed cases untouched since cutoff.
func (r *PGRepo) ListCompletedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Case, error) {
	if limit <= 0 {
		limit = 500
	}
	const query = `
SELECT id, status, residency_region, assigned_officer, created_at, updated_at
FROM cases
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, StatusCompleted, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		var c Case
		var officer sql.NullString
		if err := rows.Scan(&c.ID, &c.Status, &c.ResidencyRegion, &officer, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if officer.Valid {
			c.AssignedOfficer = officer.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
