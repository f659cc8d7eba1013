package ingest

import (
	"strings"
	"testing"
)

func wordCounter(text string) int {
	return len(strings.Fields(text))
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"latin terminators", "First one. Second one! Third one?", 3},
		{"cjk terminators", "第一句。第二句！", 2},
		{"newline splits", "headline\nbody text", 2},
		{"no terminator", "a single fragment", 1},
		{"empty", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %v, want %d sentences", tt.text, got, tt.want)
			}
		})
	}
}

func TestChunkText(t *testing.T) {
	t.Run("respects token budget", func(t *testing.T) {
		text := "one two three. four five six. seven eight nine."
		chunks := ChunkText(text, 6, wordCounter)

		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
		}
		for _, chunk := range chunks {
			if wordCounter(chunk) > 6 {
				t.Errorf("chunk over budget: %q", chunk)
			}
		}
	})

	t.Run("oversized sentence becomes its own chunk", func(t *testing.T) {
		text := "short. this single sentence has far more words than the budget allows."
		chunks := ChunkText(text, 3, wordCounter)

		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
		}
		if chunks[0] != "short." {
			t.Errorf("expected the short sentence first, got %q", chunks[0])
		}
	})

	t.Run("everything fits in one chunk", func(t *testing.T) {
		chunks := ChunkText("one two. three four.", 100, wordCounter)
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(chunks))
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if chunks := ChunkText("", 100, wordCounter); chunks != nil {
			t.Errorf("expected nil, got %v", chunks)
		}
	})
}
