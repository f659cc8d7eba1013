package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
)

func TestTopicTerms(t *testing.T) {
	tests := []struct {
		name    string
		hotspot common.Hotspot
		event   string
		want    []string
	}{
		{
			name:    "event tokens plus keywords",
			hotspot: common.Hotspot{Keywords: []string{"summit"}},
			event:   "press conference",
			want:    []string{"press", "conference", "summit"},
		},
		{
			name:    "single character tokens skipped",
			hotspot: common.Hotspot{Keywords: []string{"Y", "economy"}},
			event:   "a b statement",
			want:    []string{"statement", "economy"},
		},
		{
			name:    "duplicates removed",
			hotspot: common.Hotspot{Keywords: []string{"summit"}},
			event:   "summit summit",
			want:    []string{"summit"},
		},
		{
			name: "capped at eight terms",
			hotspot: common.Hotspot{Keywords: []string{
				"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9", "t10",
			}},
			want: []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topicTerms(tt.hotspot, tt.event)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMapLexScore(t *testing.T) {
	if got := mapLexScore(0); got != lexicalFloor {
		t.Errorf("zero relevance should hit the floor, got %f", got)
	}
	if got := mapLexScore(-1); got != lexicalFloor {
		t.Errorf("negative relevance should hit the floor, got %f", got)
	}

	prev := mapLexScore(0)
	for _, relevance := range []float64{0.1, 0.5, 1, 10, 1000} {
		got := mapLexScore(relevance)
		if got <= prev {
			t.Errorf("mapLexScore not monotone at %f: %f <= %f", relevance, got, prev)
		}
		if got >= 1 {
			t.Errorf("mapLexScore out of bounds at %f: %f", relevance, got)
		}
		prev = got
	}
}

func TestLexicalRecall(t *testing.T) {
	tr := common.Trace{ID: "t1", Anchor: "Miles", Event: "press conference"}

	t.Run("index hits get mapped scores", func(t *testing.T) {
		engine := NewEngine(NewEngineParams{
			Store: newFakeStore(),
			Lexical: &fakeLexical{hits: []index.Hit{
				{Chunk: common.Chunk{ID: "a", Content: "Miles"}, Score: 1.0},
			}},
		})

		candidates := engine.lexicalRecall(context.Background(), tr, []string{"Miles"}, nil)
		if len(candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(candidates))
		}
		want := lexicalFloor + (1-lexicalFloor)*0.5
		if candidates[0].LexScore != want {
			t.Errorf("expected mapped score %f, got %f", want, candidates[0].LexScore)
		}
	})

	t.Run("unavailable index falls back to substring scan", func(t *testing.T) {
		fs := newFakeStore()
		fs.chunks = []common.Chunk{
			{ID: "a", Content: "Miles was there."},
			{ID: "b", Content: "Nothing relevant."},
			{ID: "c", Content: "A press conference was held."},
		}
		engine := NewEngine(NewEngineParams{
			Store:   fs,
			Lexical: &fakeLexical{err: index.ErrUnavailable},
		})

		candidates := engine.lexicalRecall(context.Background(), tr, []string{"Miles"}, nil)
		if len(candidates) != 2 {
			t.Fatalf("expected 2 fallback candidates, got %d", len(candidates))
		}
		for _, c := range candidates {
			if c.LexScore != fallbackLexScore {
				t.Errorf("expected flat fallback score, got %f", c.LexScore)
			}
		}
	})

	t.Run("other index errors yield empty set", func(t *testing.T) {
		engine := NewEngine(NewEngineParams{
			Store:   newFakeStore(),
			Lexical: &fakeLexical{err: errors.New("connection refused")},
		})

		candidates := engine.lexicalRecall(context.Background(), tr, []string{"Miles"}, nil)
		if len(candidates) != 0 {
			t.Fatalf("expected empty set, got %d", len(candidates))
		}
	})

	t.Run("nil index falls back", func(t *testing.T) {
		fs := newFakeStore()
		fs.chunks = []common.Chunk{{ID: "a", Content: "Miles was there."}}
		engine := NewEngine(NewEngineParams{Store: fs})

		candidates := engine.lexicalRecall(context.Background(), tr, []string{"Miles"}, nil)
		if len(candidates) != 1 {
			t.Fatalf("expected 1 fallback candidate, got %d", len(candidates))
		}
	})
}

func TestVectorRecall(t *testing.T) {
	tr := common.Trace{ID: "t1", Anchor: "Miles"}
	hotspot := common.Hotspot{Description: "a topic"}

	t.Run("candidates rebuilt from metadata", func(t *testing.T) {
		vector := newFakeVector([]index.Match{{
			ID:    "chunk-1",
			Score: 0.83,
			Metadata: map[string]string{
				"url":          "https://example.com/article",
				"url_hash":     "abcd",
				"position":     "3",
				"content":      "Miles attended.",
				"published_at": "2023-03-01",
			},
		}})
		engine := NewEngine(NewEngineParams{
			Store:  newFakeStore(),
			Vector: vector,
			AI:     &fakeAI{embedding: []float32{0.1, 0.2}},
		})

		candidates := engine.vectorRecall(context.Background(), tr, hotspot)
		if len(candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(candidates))
		}
		c := candidates[0]
		if c.ID != "chunk-1" || c.URL != "https://example.com/article" ||
			c.Position != 3 || c.Content != "Miles attended." || c.PublishedAt != "2023-03-01" {
			t.Errorf("metadata not reconstructed: %+v", c)
		}
		if c.VecScore != 0.83 {
			t.Errorf("expected vector score 0.83, got %f", c.VecScore)
		}
	})

	t.Run("nil vector index yields empty set", func(t *testing.T) {
		engine := NewEngine(NewEngineParams{
			Store: newFakeStore(),
			AI:    &fakeAI{embedding: []float32{0.1}},
		})
		if got := engine.vectorRecall(context.Background(), tr, hotspot); len(got) != 0 {
			t.Fatalf("expected empty set, got %d", len(got))
		}
	})

	t.Run("embedding failure yields empty set", func(t *testing.T) {
		engine := NewEngine(NewEngineParams{
			Store:  newFakeStore(),
			Vector: newFakeVector(nil),
			AI:     &fakeAI{embedErr: errors.New("model not loaded")},
		})
		if got := engine.vectorRecall(context.Background(), tr, hotspot); len(got) != 0 {
			t.Fatalf("expected empty set, got %d", len(got))
		}
	})

	t.Run("query failure yields empty set", func(t *testing.T) {
		vector := newFakeVector(nil)
		vector.queryErr = errors.New("index offline")
		engine := NewEngine(NewEngineParams{
			Store:  newFakeStore(),
			Vector: vector,
			AI:     &fakeAI{embedding: []float32{0.1}},
		})
		if got := engine.vectorRecall(context.Background(), tr, hotspot); len(got) != 0 {
			t.Fatalf("expected empty set, got %d", len(got))
		}
	})
}
