// Package repository persists routing entities in PostgreSQL.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository bundles access to the routing-owned tables: assignment rules,
// user workloads, the routing queue, assignment history, and the lead
// snapshot the core reads and whose owner it updates.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository over the given connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}
