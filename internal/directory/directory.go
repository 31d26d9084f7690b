// Package directory resolves tenant user and team membership. It is an
// external collaborator of the routing core: the core only needs it to
// expand a rule's team ids into user ids.
package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory expands team ids into member user ids.
type Directory interface {
	ExpandTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Repository is the PostgreSQL-backed directory.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Directory = (*Repository)(nil)

// New creates a directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ExpandTeams returns the distinct member user ids of the given teams, in
// stable (user id) order so candidate lists derived from teams are
// deterministic.
func (r *Repository) ExpandTeams(ctx context.Context, tenantID uuid.UUID, teamIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(teamIDs))
	for _, id := range teamIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT user_id
		FROM team_members
		WHERE tenant_id = $1 AND team_id = ANY($2::uuid[])
		ORDER BY user_id ASC
	`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]uuid.UUID, 0)
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return users, nil
}
