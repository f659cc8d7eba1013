package trace

import (
	"context"
	"fmt"
	"sort"

	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/common"
)

const (
	subgraphEdgeCap      = 200
	pathBudget           = 4
	timelineCap          = 30
	syntheticTimelineCap = 8
	evidenceCap          = 20
	excerptLen           = 280
)

// TraceResult is the persisted result payload of a completed run.
type TraceResult struct {
	Anchor   string          `json:"anchor"`
	Hotspot  string          `json:"hotspot"`
	Summary  string          `json:"summary"`
	Timeline []TimelineEntry `json:"timeline"`
	Graph    GraphView       `json:"graph"`
	Evidence []EvidenceEntry `json:"evidence"`
	Stats    RunStats        `json:"stats"`
}

// TimelineEntry is one dated or undated line of the reconstructed
// narrative. Undated entries sort first.
type TimelineEntry struct {
	Timestamp string `json:"timestamp,omitempty"`
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	ChunkID   string `json:"chunk_id,omitempty"`
}

// GraphView is the anchor-centric subgraph extracted for the result.
type GraphView struct {
	Nodes []common.Entity `json:"nodes"`
	Edges []common.Edge   `json:"edges"`
	Paths []common.Edge   `json:"paths"`
}

// EvidenceEntry is one ranked supporting chunk with its score breakdown.
type EvidenceEntry struct {
	Rank      int     `json:"rank"`
	ChunkID   string  `json:"chunk_id"`
	URL       string  `json:"url"`
	Excerpt   string  `json:"excerpt"`
	Breakdown string  `json:"breakdown"`
	Score     float64 `json:"score"`
}

// RunStats reports how many candidates each stage of the run saw.
type RunStats struct {
	LexicalCount  int   `json:"lexical_count"`
	VectorCount   int   `json:"vector_count"`
	FusedCount    int   `json:"fused_count"`
	FilteredCount int   `json:"filtered_count"`
	DurationMs    int64 `json:"duration_ms"`
}

func (e *Engine) assemble(
	ctx context.Context,
	tr common.Trace,
	hotspot common.Hotspot,
	anchorID string,
	candidates []common.ChunkCandidate,
	events []common.Event,
) (*TraceResult, error) {
	graph, err := e.buildGraph(ctx, anchorID, hotspot)
	if err != nil {
		return nil, err
	}

	timeline := buildTimeline(events, candidates)
	evidence := buildEvidence(candidates)

	summary := e.generateSummary(ctx, tr.Anchor, hotspot.Title, len(timeline), len(graph.Nodes), len(evidence))

	return &TraceResult{
		Anchor:   tr.Anchor,
		Hotspot:  hotspot.Title,
		Summary:  summary,
		Timeline: timeline,
		Graph:    graph,
		Evidence: evidence,
	}, nil
}

// buildGraph fetches the anchor's heaviest outgoing edges, collects the
// distinct destination entities as nodes and highlights a small budget
// of edges whose destination is one of the hotspot's declared entities.
// With no declared entities, any edge qualifies for the budget.
func (e *Engine) buildGraph(
	ctx context.Context,
	anchorID string,
	hotspot common.Hotspot,
) (GraphView, error) {
	edges, err := e.store.EdgesFrom(ctx, []string{anchorID}, subgraphEdgeCap)
	if err != nil {
		return GraphView{}, fmt.Errorf("subgraph edges: %w", err)
	}

	declared := map[string]bool{}
	for _, name := range hotspot.Entities {
		declared[util.EntityID(name, "topic")] = true
	}

	targetIDs := []string{}
	seen := map[string]bool{}
	paths := []common.Edge{}
	for _, edge := range edges {
		if !seen[edge.TargetID] {
			seen[edge.TargetID] = true
			targetIDs = append(targetIDs, edge.TargetID)
		}
		if len(paths) < pathBudget && (len(declared) == 0 || declared[edge.TargetID]) {
			paths = append(paths, edge)
		}
	}

	nodes, err := e.store.EntitiesByIDs(ctx, targetIDs)
	if err != nil {
		return GraphView{}, fmt.Errorf("subgraph nodes: %w", err)
	}

	return GraphView{Nodes: nodes, Edges: edges, Paths: paths}, nil
}

// buildTimeline merges the run's extracted events with one synthetic
// summary line per top candidate and sorts ascending by the raw
// timestamp string. Entries without a timestamp sort first.
func buildTimeline(events []common.Event, candidates []common.ChunkCandidate) []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(events)+syntheticTimelineCap)
	for _, event := range events {
		timeline = append(timeline, TimelineEntry{
			Timestamp: event.Timestamp,
			Type:      event.Type,
			Summary:   event.Summary,
			ChunkID:   event.ChunkID,
		})
	}

	for i, candidate := range candidates {
		if i >= syntheticTimelineCap {
			break
		}
		timeline = append(timeline, TimelineEntry{
			Timestamp: candidate.PublishedAt,
			Type:      "evidence",
			Summary:   util.Truncate(candidate.Content, excerptLen),
			ChunkID:   candidate.ID,
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})

	if len(timeline) > timelineCap {
		timeline = timeline[:timelineCap]
	}
	return timeline
}

// buildEvidence renders the top candidates as the ranked evidence pack.
func buildEvidence(candidates []common.ChunkCandidate) []EvidenceEntry {
	evidence := []EvidenceEntry{}
	for i, candidate := range candidates {
		if i >= evidenceCap {
			break
		}
		evidence = append(evidence, EvidenceEntry{
			Rank:    i + 1,
			ChunkID: candidate.ID,
			URL:     candidate.URL,
			Excerpt: util.Truncate(candidate.Content, excerptLen),
			Breakdown: fmt.Sprintf(
				"lexical=%.3f vector=%.3f time=%+.1f",
				candidate.LexScore, candidate.VecScore, candidate.TimeScore,
			),
			Score: candidate.Score(),
		})
	}
	return evidence
}
