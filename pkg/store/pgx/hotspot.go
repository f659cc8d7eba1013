package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/store"

	"github.com/jackc/pgx/v5"
)

// UpsertHotspot replaces the hotspot definition wholesale; the last write
// wins.
func (s *PgxKnowledgeStore) UpsertHotspot(ctx context.Context, hotspot common.Hotspot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hotspots (
			id, title, description, time_start, time_end,
			entities, keywords, must_include, exclude
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title        = EXCLUDED.title,
			description  = EXCLUDED.description,
			time_start   = EXCLUDED.time_start,
			time_end     = EXCLUDED.time_end,
			entities     = EXCLUDED.entities,
			keywords     = EXCLUDED.keywords,
			must_include = EXCLUDED.must_include,
			exclude      = EXCLUDED.exclude,
			updated_at   = now()
	`,
		hotspot.ID, hotspot.Title, hotspot.Description,
		hotspot.TimeStart, hotspot.TimeEnd,
		hotspot.Entities, hotspot.Keywords, hotspot.MustInclude, hotspot.Exclude,
	)
	if err != nil {
		return fmt.Errorf("upsert hotspot: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) GetHotspot(ctx context.Context, id string) (common.Hotspot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, description, time_start, time_end,
		       entities, keywords, must_include, exclude,
		       created_at, updated_at
		FROM hotspots
		WHERE id = $1
	`, id)

	hotspot, err := scanHotspot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Hotspot{}, store.ErrNotFound
		}
		return common.Hotspot{}, fmt.Errorf("get hotspot: %w", err)
	}
	return hotspot, nil
}

func (s *PgxKnowledgeStore) ListHotspots(ctx context.Context, limit int) ([]common.Hotspot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, time_start, time_end,
		       entities, keywords, must_include, exclude,
		       created_at, updated_at
		FROM hotspots
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list hotspots: %w", err)
	}
	defer rows.Close()

	hotspots := []common.Hotspot{}
	for rows.Next() {
		hotspot, err := scanHotspot(rows)
		if err != nil {
			return nil, fmt.Errorf("list hotspots scan: %w", err)
		}
		hotspots = append(hotspots, hotspot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list hotspots rows: %w", err)
	}
	return hotspots, nil
}

func scanHotspot(row pgx.Row) (common.Hotspot, error) {
	var hotspot common.Hotspot
	err := row.Scan(
		&hotspot.ID, &hotspot.Title, &hotspot.Description,
		&hotspot.TimeStart, &hotspot.TimeEnd,
		&hotspot.Entities, &hotspot.Keywords, &hotspot.MustInclude, &hotspot.Exclude,
		&hotspot.CreatedAt, &hotspot.UpdatedAt,
	)
	return hotspot, err
}
