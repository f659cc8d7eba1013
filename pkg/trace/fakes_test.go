package trace

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/newstrace/backend/pkg/ai"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
	"github.com/newstrace/backend/pkg/store"
)

type fakeStore struct {
	mu sync.Mutex

	hotspots map[string]common.Hotspot
	traces   map[string]common.Trace
	chunks   []common.Chunk
	entities map[string]common.Entity
	aliases  map[string]common.EntityAlias
	mentions map[string]common.Mention
	events   map[string]common.Event
	edges    map[string]common.Edge

	failEdgesFrom bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hotspots: map[string]common.Hotspot{},
		traces:   map[string]common.Trace{},
		entities: map[string]common.Entity{},
		aliases:  map[string]common.EntityAlias{},
		mentions: map[string]common.Mention{},
		events:   map[string]common.Event{},
		edges:    map[string]common.Edge{},
	}
}

func (f *fakeStore) UpsertHotspot(ctx context.Context, hotspot common.Hotspot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotspots[hotspot.ID] = hotspot
	return nil
}

func (f *fakeStore) GetHotspot(ctx context.Context, id string) (common.Hotspot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hotspot, ok := f.hotspots[id]
	if !ok {
		return common.Hotspot{}, store.ErrNotFound
	}
	return hotspot, nil
}

func (f *fakeStore) ListHotspots(ctx context.Context, limit int) ([]common.Hotspot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hotspots := []common.Hotspot{}
	for _, h := range f.hotspots {
		hotspots = append(hotspots, h)
	}
	return hotspots, nil
}

func (f *fakeStore) CreateTrace(ctx context.Context, trace common.Trace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces[trace.ID] = trace
	return nil
}

func (f *fakeStore) GetTrace(ctx context.Context, id string) (common.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	trace, ok := f.traces[id]
	if !ok {
		return common.Trace{}, store.ErrNotFound
	}
	return trace, nil
}

func (f *fakeStore) ListTraces(ctx context.Context, hotspotID string, limit int) ([]common.Trace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	traces := []common.Trace{}
	for _, tr := range f.traces {
		if hotspotID == "" || tr.HotspotID == hotspotID {
			traces = append(traces, tr)
		}
	}
	return traces, nil
}

func (f *fakeStore) MarkTraceRunning(ctx context.Context, id string) error {
	return f.updateTrace(id, func(tr *common.Trace) {
		tr.Status = common.TraceRunning
		tr.Error = ""
	})
}

func (f *fakeStore) MarkTraceDone(ctx context.Context, id string, result []byte) error {
	return f.updateTrace(id, func(tr *common.Trace) {
		tr.Status = common.TraceDone
		tr.Result = json.RawMessage(result)
		tr.Error = ""
	})
}

func (f *fakeStore) MarkTraceFailed(ctx context.Context, id string, errMsg string) error {
	return f.updateTrace(id, func(tr *common.Trace) {
		tr.Status = common.TraceFailed
		tr.Error = errMsg
		tr.Retries++
	})
}

func (f *fakeStore) updateTrace(id string, fn func(*common.Trace)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	trace, ok := f.traces[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&trace)
	f.traces[id] = trace
	return nil
}

func (f *fakeStore) UpsertChunks(ctx context.Context, chunks []common.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) ScanChunks(ctx context.Context, fn func(common.Chunk) bool) error {
	f.mu.Lock()
	chunks := make([]common.Chunk, len(f.chunks))
	copy(chunks, f.chunks)
	f.mu.Unlock()

	for _, chunk := range chunks {
		if !fn(chunk) {
			return nil
		}
	}
	return nil
}

func (f *fakeStore) UpsertEntity(ctx context.Context, entity common.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[entity.ID] = entity
	return nil
}

func (f *fakeStore) UpsertAlias(ctx context.Context, alias common.EntityAlias) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[alias.ID] = alias
	return nil
}

func (f *fakeStore) UpsertMention(ctx context.Context, mention common.Mention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions[mention.ID] = mention
	return nil
}

func (f *fakeStore) UpsertEvent(ctx context.Context, event common.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = event
	return nil
}

func (f *fakeStore) UpsertEdge(ctx context.Context, edge common.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[edge.ID] = edge
	return nil
}

func (f *fakeStore) AliasesForName(ctx context.Context, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	aliases := []string{}
	for _, alias := range f.aliases {
		entity, ok := f.entities[alias.EntityID]
		if ok && strings.EqualFold(entity.Name, name) {
			aliases = append(aliases, alias.Alias)
		}
	}
	return aliases, nil
}

func (f *fakeStore) EdgesFrom(ctx context.Context, entityIDs []string, limit int) ([]common.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdgesFrom {
		return nil, errors.New("store connection reset")
	}

	edges := []common.Edge{}
	for _, edge := range f.edges {
		for _, id := range entityIDs {
			if edge.SourceID == id {
				edges = append(edges, edge)
				break
			}
		}
	}
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges, nil
}

func (f *fakeStore) EntitiesByIDs(ctx context.Context, ids []string) ([]common.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entities := []common.Entity{}
	for _, id := range ids {
		if entity, ok := f.entities[id]; ok {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

type fakeLexical struct {
	hits []index.Hit
	err  error
}

func (f *fakeLexical) Search(ctx context.Context, aliases []string, terms []string, limit int) ([]index.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeLexical) Index(ctx context.Context, chunks []common.Chunk) error {
	return nil
}

type fakeVector struct {
	mu       sync.Mutex
	matches  []index.Match
	upserts  map[string][]float32
	queryErr error
}

func newFakeVector(matches []index.Match) *fakeVector {
	return &fakeVector{matches: matches, upserts: map[string][]float32{}}
}

func (f *fakeVector) Query(ctx context.Context, embedding []float32, topK int) ([]index.Match, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeVector) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[id] = embedding
	return nil
}

type fakeAI struct {
	embedding []float32
	summary   string
	embedErr  error
	chatErr   error
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.summary, nil
}

func (f *fakeAI) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if f.chatErr != nil {
		return f.chatErr
	}
	payload, err := json.Marshal(map[string]string{"summary": f.summary})
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func (f *fakeAI) ResetMetrics() {}

func (f *fakeAI) GetMetrics() ai.ModelMetrics {
	return ai.ModelMetrics{}
}
