package pgx

import (
	"context"
	"fmt"

	"github.com/newstrace/backend/pkg/index"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go"
)

// PgxVectorIndex stores chunk embeddings in the chunk_vectors table and
// serves similarity recall via pgvector cosine distance.
type PgxVectorIndex struct {
	pool *pgxpool.Pool
}

type NewPgxVectorIndexParams struct {
	Pool *pgxpool.Pool
}

func NewPgxVectorIndex(params NewPgxVectorIndexParams) *PgxVectorIndex {
	return &PgxVectorIndex{pool: params.Pool}
}

// Query returns the topK nearest chunks by cosine similarity. Cosine
// distance is mapped to a similarity score via 1 - distance.
func (i *PgxVectorIndex) Query(
	ctx context.Context,
	embedding []float32,
	topK int,
) ([]index.Match, error) {
	rows, err := i.pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $1) AS score, metadata
		FROM chunk_vectors
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgxvec.NewVector(embedding), topK)
	if err != nil {
		if isMissingRelation(err) {
			return nil, index.ErrUnavailable
		}
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	matches := []index.Match{}
	for rows.Next() {
		var match index.Match
		if err := rows.Scan(&match.ID, &match.Score, &match.Metadata); err != nil {
			return nil, fmt.Errorf("vector query scan: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector query rows: %w", err)
	}

	return matches, nil
}

// Upsert stores or replaces the embedding and metadata for a chunk.
func (i *PgxVectorIndex) Upsert(
	ctx context.Context,
	id string,
	embedding []float32,
	metadata map[string]string,
) error {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO chunk_vectors (chunk_id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
	`, id, pgxvec.NewVector(embedding), metadata)
	if err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}
