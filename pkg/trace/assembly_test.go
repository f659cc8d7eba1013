package trace

import (
	"math"
	"strings"
	"testing"

	"github.com/newstrace/backend/pkg/common"
)

func TestBuildTimeline(t *testing.T) {
	t.Run("sorted ascending with undated entries first", func(t *testing.T) {
		timeline := buildTimeline([]common.Event{
			{ChunkID: "a", Type: "mention", Summary: "later", Timestamp: "2023-05-01"},
			{ChunkID: "b", Type: "mention", Summary: "undated"},
			{ChunkID: "c", Type: "mention", Summary: "earlier", Timestamp: "2023-02-01"},
		}, nil)

		if len(timeline) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(timeline))
		}
		if timeline[0].Summary != "undated" || timeline[1].Summary != "earlier" || timeline[2].Summary != "later" {
			t.Errorf("unexpected order: %+v", timeline)
		}
	})

	t.Run("synthetic entries capped", func(t *testing.T) {
		candidates := make([]common.ChunkCandidate, syntheticTimelineCap+5)
		for i := range candidates {
			candidates[i] = common.ChunkCandidate{
				Chunk: common.Chunk{ID: "c", Content: "some content"},
			}
		}

		timeline := buildTimeline(nil, candidates)
		if len(timeline) != syntheticTimelineCap {
			t.Errorf("expected %d synthetic entries, got %d", syntheticTimelineCap, len(timeline))
		}
	})

	t.Run("total capped", func(t *testing.T) {
		events := make([]common.Event, timelineCap+10)
		for i := range events {
			events[i] = common.Event{ChunkID: "a", Type: "mention", Summary: "entry"}
		}

		timeline := buildTimeline(events, nil)
		if len(timeline) != timelineCap {
			t.Errorf("expected %d entries, got %d", timelineCap, len(timeline))
		}
	})
}

func TestBuildEvidence(t *testing.T) {
	t.Run("ranked with score breakdown", func(t *testing.T) {
		evidence := buildEvidence([]common.ChunkCandidate{
			{
				Chunk:     common.Chunk{ID: "a", URL: "https://example.com/1", Content: "first"},
				LexScore:  0.5,
				VecScore:  0.3,
				TimeScore: 0.2,
			},
			{
				Chunk:    common.Chunk{ID: "b", Content: "second"},
				LexScore: 0.1,
			},
		})

		if len(evidence) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(evidence))
		}
		if evidence[0].Rank != 1 || evidence[1].Rank != 2 {
			t.Errorf("ranks wrong: %d, %d", evidence[0].Rank, evidence[1].Rank)
		}
		if math.Abs(evidence[0].Score-1.0) > 1e-9 {
			t.Errorf("expected fused score 1.0, got %f", evidence[0].Score)
		}
		if !strings.Contains(evidence[0].Breakdown, "lexical=0.500") ||
			!strings.Contains(evidence[0].Breakdown, "time=+0.2") {
			t.Errorf("unexpected breakdown: %s", evidence[0].Breakdown)
		}
	})

	t.Run("excerpt bounded", func(t *testing.T) {
		long := strings.Repeat("x", excerptLen*2)
		evidence := buildEvidence([]common.ChunkCandidate{
			{Chunk: common.Chunk{ID: "a", Content: long}},
		})
		if len([]rune(evidence[0].Excerpt)) > excerptLen {
			t.Errorf("excerpt too long: %d runes", len([]rune(evidence[0].Excerpt)))
		}
	})

	t.Run("capped", func(t *testing.T) {
		candidates := make([]common.ChunkCandidate, evidenceCap+5)
		for i := range candidates {
			candidates[i] = common.ChunkCandidate{Chunk: common.Chunk{ID: "c", Content: "text"}}
		}
		if got := buildEvidence(candidates); len(got) != evidenceCap {
			t.Errorf("expected %d entries, got %d", evidenceCap, len(got))
		}
	})
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "first substantial sentence wins",
			text: "Miles attended the summit in March. He left early.",
			want: "Miles attended the summit in March.",
		},
		{
			name: "short leading sentence skipped",
			text: "Ok. The investigation continued for weeks afterward.",
			want: "The investigation continued for weeks afterward.",
		},
		{
			name: "no terminator falls back to whole text",
			text: "a headline without punctuation",
			want: "a headline without punctuation",
		},
		{
			name: "cjk terminator splits",
			text: "调查组公布了事件的初步结论。后续另行通报。",
			want: "调查组公布了事件的初步结论。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstSentence(tt.text, minSentenceLen); got != tt.want {
				t.Errorf("firstSentence(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
