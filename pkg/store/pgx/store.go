// Package pgx implements the knowledge store on Postgres via pgx.
package pgx

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxKnowledgeStore persists hotspots, traces, chunks and the graph in
// Postgres. All writes are idempotent upserts.
type PgxKnowledgeStore struct {
	pool *pgxpool.Pool
}

type NewPgxKnowledgeStoreParams struct {
	Pool *pgxpool.Pool
}

func NewPgxKnowledgeStore(params NewPgxKnowledgeStoreParams) *PgxKnowledgeStore {
	return &PgxKnowledgeStore{pool: params.Pool}
}
