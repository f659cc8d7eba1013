package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/store"

	"github.com/jackc/pgx/v5"
)

const errTruncate = 500

func (s *PgxKnowledgeStore) CreateTrace(ctx context.Context, trace common.Trace) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traces (id, hotspot_id, anchor, event, aliases, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, trace.ID, trace.HotspotID, trace.Anchor, trace.Event, trace.Aliases, trace.Status)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	return nil
}

func (s *PgxKnowledgeStore) GetTrace(ctx context.Context, id string) (common.Trace, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, hotspot_id, anchor, event, aliases, status,
		       result, error, retries, created_at, updated_at
		FROM traces
		WHERE id = $1
	`, id)

	trace, err := scanTrace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.Trace{}, store.ErrNotFound
		}
		return common.Trace{}, fmt.Errorf("get trace: %w", err)
	}
	return trace, nil
}

func (s *PgxKnowledgeStore) ListTraces(ctx context.Context, hotspotID string, limit int) ([]common.Trace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, hotspot_id, anchor, event, aliases, status,
		       result, error, retries, created_at, updated_at
		FROM traces
		WHERE hotspot_id = $1 OR $1 = ''
		ORDER BY created_at DESC
		LIMIT $2
	`, hotspotID, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	traces := []common.Trace{}
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("list traces scan: %w", err)
		}
		traces = append(traces, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list traces rows: %w", err)
	}
	return traces, nil
}

func (s *PgxKnowledgeStore) MarkTraceRunning(ctx context.Context, id string) error {
	return s.setTraceStatus(ctx, id, `
		UPDATE traces
		SET status = 'running', error = '', updated_at = now()
		WHERE id = $1
	`, id)
}

func (s *PgxKnowledgeStore) MarkTraceDone(ctx context.Context, id string, result []byte) error {
	return s.setTraceStatus(ctx, id, `
		UPDATE traces
		SET status = 'done', result = $2, error = '', updated_at = now()
		WHERE id = $1
	`, id, result)
}

func (s *PgxKnowledgeStore) MarkTraceFailed(ctx context.Context, id string, errMsg string) error {
	return s.setTraceStatus(ctx, id, `
		UPDATE traces
		SET status = 'failed', error = $2, retries = retries + 1, updated_at = now()
		WHERE id = $1
	`, id, util.Truncate(errMsg, errTruncate))
}

func (s *PgxKnowledgeStore) setTraceStatus(ctx context.Context, id string, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update trace %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanTrace(row pgx.Row) (common.Trace, error) {
	var trace common.Trace
	err := row.Scan(
		&trace.ID, &trace.HotspotID, &trace.Anchor, &trace.Event,
		&trace.Aliases, &trace.Status, &trace.Result, &trace.Error,
		&trace.Retries, &trace.CreatedAt, &trace.UpdatedAt,
	)
	return trace, err
}
