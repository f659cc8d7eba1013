// Package store defines the persistence interface for hotspots, traces,
// chunks and the knowledge graph.
package store

import (
	"context"
	"errors"

	"github.com/newstrace/backend/pkg/common"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// KnowledgeStore is the persistence surface the trace pipeline, the
// ingest worker and the HTTP layer share.
//
// All graph writes are idempotent upserts keyed by content-derived IDs,
// so replaying a trace run never duplicates rows.
type KnowledgeStore interface {
	UpsertHotspot(ctx context.Context, hotspot common.Hotspot) error
	GetHotspot(ctx context.Context, id string) (common.Hotspot, error)
	ListHotspots(ctx context.Context, limit int) ([]common.Hotspot, error)

	CreateTrace(ctx context.Context, trace common.Trace) error
	GetTrace(ctx context.Context, id string) (common.Trace, error)
	ListTraces(ctx context.Context, hotspotID string, limit int) ([]common.Trace, error)

	// MarkTraceRunning transitions a trace to the running state.
	MarkTraceRunning(ctx context.Context, id string) error
	// MarkTraceDone stores the result payload and transitions to done.
	MarkTraceDone(ctx context.Context, id string, result []byte) error
	// MarkTraceFailed records a truncated error message, increments the
	// retry counter and transitions to failed.
	MarkTraceFailed(ctx context.Context, id string, errMsg string) error

	UpsertChunks(ctx context.Context, chunks []common.Chunk) error
	// ScanChunks streams all chunks to fn, stopping early when fn
	// returns false. Used by the lexical fallback scan.
	ScanChunks(ctx context.Context, fn func(common.Chunk) bool) error

	UpsertEntity(ctx context.Context, entity common.Entity) error
	UpsertAlias(ctx context.Context, alias common.EntityAlias) error
	UpsertMention(ctx context.Context, mention common.Mention) error
	UpsertEvent(ctx context.Context, event common.Event) error
	UpsertEdge(ctx context.Context, edge common.Edge) error

	// AliasesForName returns all alias strings recorded for entities
	// whose canonical name or alias matches name.
	AliasesForName(ctx context.Context, name string) ([]string, error)
	EdgesFrom(ctx context.Context, entityIDs []string, limit int) ([]common.Edge, error)
	EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error)
}
