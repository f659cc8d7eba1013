package trace

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
)

func seedScenario(t *testing.T) (*fakeStore, *fakeLexical) {
	t.Helper()

	fs := newFakeStore()
	fs.hotspots["h1"] = common.Hotspot{
		ID:          "h1",
		Title:       "X",
		Description: "a developing story",
		Keywords:    []string{"Y"},
		Entities:    []string{"Y"},
		TimeStart:   "2023-01-01",
		TimeEnd:     "2023-06-01",
	}
	fs.traces["t1"] = common.Trace{
		ID:        "t1",
		HotspotID: "h1",
		Anchor:    "Miles",
		Status:    common.TraceQueued,
	}

	chunk := common.Chunk{
		ID:          "chunk-1",
		URL:         "https://example.com/article",
		URLHash:     "abcd1234",
		Position:    0,
		Content:     "Miles attended the Y summit in March and gave a statement.",
		PublishedAt: "2023-03-01",
	}
	fs.chunks = []common.Chunk{chunk}

	lexical := &fakeLexical{hits: []index.Hit{{Chunk: chunk, Score: 1.0}}}
	return fs, lexical
}

func resultOf(t *testing.T, fs *fakeStore, traceID string) TraceResult {
	t.Helper()
	tr, err := fs.GetTrace(context.Background(), traceID)
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}
	var result TraceResult
	if err := json.Unmarshal(tr.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func TestProcessEndToEnd(t *testing.T) {
	fs, lexical := seedScenario(t)
	engine := NewEngine(NewEngineParams{Store: fs, Lexical: lexical})

	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	tr, _ := fs.GetTrace(context.Background(), "t1")
	if tr.Status != common.TraceDone {
		t.Fatalf("expected done, got %s (error %q)", tr.Status, tr.Error)
	}

	if len(fs.mentions) != 1 {
		t.Errorf("expected exactly 1 mention, got %d", len(fs.mentions))
	}
	if len(fs.edges) == 0 {
		t.Error("expected at least 1 edge for the declared topic entity")
	}

	result := resultOf(t, fs, "t1")
	if len(result.Timeline) == 0 {
		t.Error("expected a non-empty timeline")
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("expected exactly 1 evidence entry, got %d", len(result.Evidence))
	}

	// One lexical hit with raw relevance 1.0 inside the time window,
	// no vector path.
	wantScore := lexicalFloor + (1-lexicalFloor)*0.5 + timeBonus
	if math.Abs(result.Evidence[0].Score-wantScore) > 1e-9 {
		t.Errorf("expected fused score %f, got %f", wantScore, result.Evidence[0].Score)
	}
	if result.Summary == "" {
		t.Error("expected a non-empty summary")
	}
}

func TestProcessIdempotent(t *testing.T) {
	fs, lexical := seedScenario(t)
	engine := NewEngine(NewEngineParams{Store: fs, Lexical: lexical})

	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	entities := map[string]common.Entity{}
	for k, v := range fs.entities {
		entities[k] = v
	}
	mentions := map[string]common.Mention{}
	for k, v := range fs.mentions {
		mentions[k] = v
	}
	events := map[string]common.Event{}
	for k, v := range fs.events {
		events[k] = v
	}
	edges := map[string]common.Edge{}
	for k, v := range fs.edges {
		edges[k] = v
	}

	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(fs.entities, entities) {
		t.Error("entity rows changed across identical runs")
	}
	if !reflect.DeepEqual(fs.mentions, mentions) {
		t.Error("mention rows changed across identical runs")
	}
	if !reflect.DeepEqual(fs.events, events) {
		t.Error("event rows changed across identical runs")
	}
	if !reflect.DeepEqual(fs.edges, edges) {
		t.Error("edge rows changed across identical runs")
	}
}

func TestProcessVectorAbsent(t *testing.T) {
	fs, lexical := seedScenario(t)
	engine := NewEngine(NewEngineParams{Store: fs, Lexical: lexical})

	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	result := resultOf(t, fs, "t1")
	if result.Stats.VectorCount != 0 {
		t.Errorf("expected vector_count 0 without a vector index, got %d", result.Stats.VectorCount)
	}
	if result.Stats.LexicalCount != 1 {
		t.Errorf("expected lexical_count 1, got %d", result.Stats.LexicalCount)
	}
}

func TestProcessWithVectorAndAI(t *testing.T) {
	fs, lexical := seedScenario(t)
	vector := newFakeVector([]index.Match{{
		ID:    "chunk-1",
		Score: 0.9,
		Metadata: map[string]string{
			"url":          "https://example.com/article",
			"url_hash":     "abcd1234",
			"position":     "0",
			"content":      "Miles attended the Y summit in March and gave a statement.",
			"published_at": "2023-03-01",
		},
	}})
	engine := NewEngine(NewEngineParams{
		Store:   fs,
		Lexical: lexical,
		Vector:  vector,
		AI:      &fakeAI{embedding: []float32{0.1, 0.2}, summary: "A cautious summary."},
	})

	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	result := resultOf(t, fs, "t1")
	if result.Stats.VectorCount != 1 {
		t.Errorf("expected vector_count 1, got %d", result.Stats.VectorCount)
	}
	if result.Stats.FusedCount != 1 {
		t.Errorf("expected both paths to merge into 1 candidate, got %d", result.Stats.FusedCount)
	}
	if result.Summary != "A cautious summary." {
		t.Errorf("expected AI summary, got %q", result.Summary)
	}

	// Graph writer backfills the vector index for the top candidate.
	if _, ok := vector.upserts["chunk-1"]; !ok {
		t.Error("expected a vector backfill upsert for chunk-1")
	}
}

func TestProcessRetryAfterFailure(t *testing.T) {
	fs, lexical := seedScenario(t)
	engine := NewEngine(NewEngineParams{Store: fs, Lexical: lexical})

	fs.failEdgesFrom = true
	if err := engine.Process(context.Background(), "t1"); err == nil {
		t.Fatal("expected the run to fail")
	}

	tr, _ := fs.GetTrace(context.Background(), "t1")
	if tr.Status != common.TraceFailed {
		t.Fatalf("expected failed, got %s", tr.Status)
	}
	if tr.Error == "" {
		t.Error("expected a persisted error message")
	}
	if tr.Retries != 1 {
		t.Errorf("expected retry counter 1, got %d", tr.Retries)
	}
	if tr.Result != nil {
		t.Error("a failed run must not persist a result payload")
	}

	// The graph writer ran before the failure; a successful retry must
	// not duplicate its rows.
	edgeCount := len(fs.edges)
	if edgeCount == 0 {
		t.Fatal("expected edges from the failed attempt")
	}

	fs.failEdgesFrom = false
	if err := engine.Process(context.Background(), "t1"); err != nil {
		t.Fatalf("retry: %v", err)
	}

	tr, _ = fs.GetTrace(context.Background(), "t1")
	if tr.Status != common.TraceDone {
		t.Fatalf("expected done after retry, got %s", tr.Status)
	}
	if len(fs.edges) != edgeCount {
		t.Errorf("retry duplicated edges: %d -> %d", edgeCount, len(fs.edges))
	}
}

func TestProcessNotFound(t *testing.T) {
	fs := newFakeStore()
	engine := NewEngine(NewEngineParams{Store: fs})

	if err := engine.Process(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown trace")
	}
}
