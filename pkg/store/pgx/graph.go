package pgx

import (
	"context"
	"fmt"

	"github.com/newstrace/backend/pkg/common"
)

// Graph upserts are keyed by content-derived IDs. Replaying the same
// extraction is a no-op for nodes and an overwrite for edge weights.

func (s *PgxKnowledgeStore) UpsertEntity(ctx context.Context, entity common.Entity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entities (id, name, type, lang)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET lang = EXCLUDED.lang
	`, entity.ID, entity.Name, entity.Type, entity.Lang)
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) UpsertAlias(ctx context.Context, alias common.EntityAlias) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entity_aliases (id, entity_id, alias, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET confidence = EXCLUDED.confidence
	`, alias.ID, alias.EntityID, alias.Alias, alias.Confidence)
	if err != nil {
		return fmt.Errorf("upsert alias: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) UpsertMention(ctx context.Context, mention common.Mention) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mentions (id, chunk_id, entity_id, span)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET span = EXCLUDED.span
	`, mention.ID, mention.ChunkID, mention.EntityID, mention.Span)
	if err != nil {
		return fmt.Errorf("upsert mention: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) UpsertEvent(ctx context.Context, event common.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, chunk_id, type, summary, args, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			args      = EXCLUDED.args,
			timestamp = EXCLUDED.timestamp
	`, event.ID, event.ChunkID, event.Type, event.Summary, event.Args, event.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) UpsertEdge(ctx context.Context, edge common.Edge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO edges (id, source_id, relation, target_id, chunk_id, event_id, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			weight   = EXCLUDED.weight
	`, edge.ID, edge.SourceID, edge.Relation, edge.TargetID, edge.ChunkID, edge.EventID, edge.Weight)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

// AliasesForName returns alias strings for every entity whose canonical
// name or recorded alias matches name, case-insensitively.
func (s *PgxKnowledgeStore) AliasesForName(ctx context.Context, name string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT a.alias
		FROM entity_aliases a
		JOIN entities e ON e.id = a.entity_id
		WHERE lower(e.name) = lower($1)
		   OR a.entity_id IN (
			SELECT entity_id FROM entity_aliases WHERE lower(alias) = lower($1)
		   )
	`, name)
	if err != nil {
		return nil, fmt.Errorf("aliases for name: %w", err)
	}
	defer rows.Close()

	aliases := []string{}
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("aliases for name scan: %w", err)
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aliases for name rows: %w", err)
	}
	return aliases, nil
}

// EdgesFrom returns edges originating at any of the given entities,
// heaviest first.
func (s *PgxKnowledgeStore) EdgesFrom(ctx context.Context, entityIDs []string, limit int) ([]common.Edge, error) {
	if len(entityIDs) == 0 {
		return []common.Edge{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, source_id, relation, target_id, chunk_id, event_id, weight
		FROM edges
		WHERE source_id = ANY($1)
		ORDER BY weight DESC, id
		LIMIT $2
	`, entityIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("edges from: %w", err)
	}
	defer rows.Close()

	edges := []common.Edge{}
	for rows.Next() {
		var edge common.Edge
		err := rows.Scan(
			&edge.ID, &edge.SourceID, &edge.Relation,
			&edge.TargetID, &edge.ChunkID, &edge.EventID, &edge.Weight,
		)
		if err != nil {
			return nil, fmt.Errorf("edges from scan: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("edges from rows: %w", err)
	}
	return edges, nil
}

func (s *PgxKnowledgeStore) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	if len(ids) == 0 {
		return []common.Entity{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, lang
		FROM entities
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("entities by ids: %w", err)
	}
	defer rows.Close()

	entities := []common.Entity{}
	for rows.Next() {
		var entity common.Entity
		if err := rows.Scan(&entity.ID, &entity.Name, &entity.Type, &entity.Lang); err != nil {
			return nil, fmt.Errorf("entities by ids scan: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entities by ids rows: %w", err)
	}
	return entities, nil
}
