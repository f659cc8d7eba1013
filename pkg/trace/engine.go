// Package trace implements the trace pipeline: dual-recall retrieval,
// score fusion, idempotent graph writing and result assembly.
//
// One Engine is shared by all worker deliveries; each Process call owns
// its candidates end to end and shares no in-memory state with
// concurrent runs. Safety under duplicate delivery comes from every
// graph write being an idempotent upsert on a content-derived key.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newstrace/backend/pkg/ai"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	lexicalLimit = 300
	vectorTopK   = 300
	topN         = 80

	workerParallel = 8
)

// Engine runs trace jobs against the knowledge store and the recall
// indexes. The vector index and the AI client are optional; a nil value
// disables the corresponding path and the pipeline degrades as
// documented on each stage.
type Engine struct {
	store   store.KnowledgeStore
	lexical index.Lexical
	vector  index.Vector
	ai      ai.Client

	maxParallel int
}

type NewEngineParams struct {
	Store   store.KnowledgeStore
	Lexical index.Lexical
	Vector  index.Vector
	AI      ai.Client

	// MaxParallel caps concurrent per-candidate work inside one run.
	// Zero selects the default.
	MaxParallel int
}

func NewEngine(params NewEngineParams) *Engine {
	maxParallel := params.MaxParallel
	if maxParallel <= 0 {
		maxParallel = workerParallel
	}
	return &Engine{
		store:       params.Store,
		lexical:     params.Lexical,
		vector:      params.Vector,
		ai:          params.AI,
		maxParallel: maxParallel,
	}
}

// Process runs the full pipeline for one delivered trace ID. On success
// the result payload is persisted and the trace transitions to done. On
// failure the trace is marked failed with a truncated error and the
// error is returned so the delivery layer can redeliver.
func (e *Engine) Process(ctx context.Context, traceID string) error {
	start := time.Now()

	if err := e.store.MarkTraceRunning(ctx, traceID); err != nil {
		return fmt.Errorf("trace %s not startable: %w", traceID, err)
	}

	result, err := e.run(ctx, traceID)
	if err != nil {
		logger.Error("[Trace] Run failed", "trace", traceID, "error", err)
		if markErr := e.store.MarkTraceFailed(ctx, traceID, err.Error()); markErr != nil {
			logger.Error("[Trace] Could not mark trace failed", "trace", traceID, "error", markErr)
		}
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("marshal result: %w", err)
		if markErr := e.store.MarkTraceFailed(ctx, traceID, err.Error()); markErr != nil {
			logger.Error("[Trace] Could not mark trace failed", "trace", traceID, "error", markErr)
		}
		return err
	}

	if err := e.store.MarkTraceDone(ctx, traceID, payload); err != nil {
		err = fmt.Errorf("persist result: %w", err)
		if markErr := e.store.MarkTraceFailed(ctx, traceID, err.Error()); markErr != nil {
			logger.Error("[Trace] Could not mark trace failed", "trace", traceID, "error", markErr)
		}
		return err
	}

	logger.Info("[Trace] Run complete",
		"trace", traceID,
		"evidence", len(result.Evidence),
		"duration", time.Since(start).String(),
	)
	return nil
}

func (e *Engine) run(ctx context.Context, traceID string) (*TraceResult, error) {
	start := time.Now()

	tr, err := e.store.GetTrace(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	hotspot, err := e.store.GetHotspot(ctx, tr.HotspotID)
	if err != nil {
		return nil, fmt.Errorf("load hotspot %s: %w", tr.HotspotID, err)
	}

	aliases, err := e.buildAliases(ctx, tr)
	if err != nil {
		return nil, err
	}
	terms := topicTerms(hotspot, tr.Event)

	// Both recall paths are independent and run concurrently. Neither
	// is allowed to fail the run.
	var lexicalHits, vectorHits []common.ChunkCandidate
	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		lexicalHits = e.lexicalRecall(gCtx, tr, aliases, terms)
		return nil
	})
	group.Go(func() error {
		vectorHits = e.vectorRecall(gCtx, tr, hotspot)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := mergeCandidates(lexicalHits, vectorHits)
	filtered := filterCandidates(merged, aliases, hotspot)
	top := rerank(filtered, topN)

	logger.Debug("[Trace] Recall complete",
		"trace", traceID,
		"lexical", len(lexicalHits),
		"vector", len(vectorHits),
		"merged", len(merged),
		"filtered", len(filtered),
	)

	events, anchorID, err := e.writeGraph(ctx, tr, hotspot, top)
	if err != nil {
		return nil, err
	}

	result, err := e.assemble(ctx, tr, hotspot, anchorID, top, events)
	if err != nil {
		return nil, err
	}

	result.Stats = RunStats{
		LexicalCount:  len(lexicalHits),
		VectorCount:   len(vectorHits),
		FusedCount:    len(merged),
		FilteredCount: len(filtered),
		DurationMs:    time.Since(start).Milliseconds(),
	}
	return result, nil
}
