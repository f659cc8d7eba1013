package pgx

import (
	"context"
	"fmt"

	"github.com/newstrace/backend/pkg/common"

	"github.com/jackc/pgx/v5"
)

// UpsertChunks writes chunks in a single batch. Chunk identity is derived
// from (url_hash, position), so re-ingesting the same page replaces the
// existing rows instead of duplicating them.
func (s *PgxKnowledgeStore) UpsertChunks(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, url, url_hash, position, content, published_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				url          = EXCLUDED.url,
				content      = EXCLUDED.content,
				published_at = EXCLUDED.published_at
		`, chunk.ID, chunk.URL, chunk.URLHash, chunk.Position, chunk.Content, chunk.PublishedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}
	return nil
}

// ScanChunks streams every chunk to fn in insertion order, stopping early
// when fn returns false.
func (s *PgxKnowledgeStore) ScanChunks(ctx context.Context, fn func(common.Chunk) bool) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, url_hash, position, content, published_at
		FROM chunks
		ORDER BY url_hash, position
	`)
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunk common.Chunk
		err := rows.Scan(
			&chunk.ID, &chunk.URL, &chunk.URLHash,
			&chunk.Position, &chunk.Content, &chunk.PublishedAt,
		)
		if err != nil {
			return fmt.Errorf("scan chunks row: %w", err)
		}
		if !fn(chunk) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan chunks rows: %w", err)
	}
	return nil
}
