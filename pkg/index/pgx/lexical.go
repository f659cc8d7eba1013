// Package pgx provides Postgres-backed implementations of the recall
// indexes: full-text search over chunk content and pgvector similarity
// over chunk embeddings.
package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxLexicalIndex serves keyword recall from the chunks table using the
// generated tsvector column.
type PgxLexicalIndex struct {
	pool *pgxpool.Pool
}

type NewPgxLexicalIndexParams struct {
	Pool *pgxpool.Pool
}

func NewPgxLexicalIndex(params NewPgxLexicalIndexParams) *PgxLexicalIndex {
	return &PgxLexicalIndex{pool: params.Pool}
}

// Search builds a tsquery of the form (alias1 | alias2) & (term1 | term2)
// and ranks matches with ts_rank. Either group may be empty; with both
// empty the index reports ErrUnavailable so the caller can fall back.
func (i *PgxLexicalIndex) Search(
	ctx context.Context,
	aliases []string,
	terms []string,
	limit int,
) ([]index.Hit, error) {
	query := buildTsQuery(aliases, terms)
	if query == "" {
		return nil, index.ErrUnavailable
	}

	rows, err := i.pool.Query(ctx, `
		SELECT id, url, url_hash, position, content, published_at,
		       ts_rank(content_tsv, to_tsquery('simple', $1)) AS rank
		FROM chunks
		WHERE content_tsv @@ to_tsquery('simple', $1)
		ORDER BY rank DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		if isMissingRelation(err) {
			return nil, index.ErrUnavailable
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	hits := []index.Hit{}
	for rows.Next() {
		var hit index.Hit
		err := rows.Scan(
			&hit.Chunk.ID,
			&hit.Chunk.URL,
			&hit.Chunk.URLHash,
			&hit.Chunk.Position,
			&hit.Chunk.Content,
			&hit.Chunk.PublishedAt,
			&hit.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("lexical search scan: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical search rows: %w", err)
	}

	return hits, nil
}

// Index is a no-op for the Postgres implementation. The tsvector column is
// generated, so chunks become searchable the moment the store writes them.
func (i *PgxLexicalIndex) Index(ctx context.Context, chunks []common.Chunk) error {
	return nil
}

// buildTsQuery joins each group with | and the groups with &. Terms are
// lexeme-quoted so punctuation in aliases cannot break the query syntax.
func buildTsQuery(aliases []string, terms []string) string {
	groups := []string{}
	for _, group := range [][]string{aliases, terms} {
		lexemes := []string{}
		for _, t := range group {
			q := quoteLexeme(t)
			if q != "" {
				lexemes = append(lexemes, q)
			}
		}
		if len(lexemes) > 0 {
			groups = append(groups, "("+strings.Join(lexemes, " | ")+")")
		}
	}
	return strings.Join(groups, " & ")
}

func quoteLexeme(term string) string {
	term = strings.TrimSpace(term)
	term = strings.ReplaceAll(term, "'", "")
	term = strings.ReplaceAll(term, "\\", "")
	if term == "" {
		return ""
	}
	// Multi-word aliases become phrase queries.
	words := strings.Fields(term)
	for idx, w := range words {
		words[idx] = "'" + w + "'"
	}
	return strings.Join(words, " <-> ")
}

func isMissingRelation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 42P01 undefined_table
		return pgErr.Code == "42P01"
	}
	return errors.Is(err, pgx.ErrNoRows)
}
