package util

import (
	"strings"
	"testing"
)

func TestDeterministicIDs(t *testing.T) {
	tests := []struct {
		name string
		a    func() string
		b    func() string
		same bool
	}{
		{
			name: "same entity fields give same id",
			a:    func() string { return EntityID("Miles Dyson", "person") },
			b:    func() string { return EntityID("Miles Dyson", "person") },
			same: true,
		},
		{
			name: "entity name is trimmed",
			a:    func() string { return EntityID("  Miles Dyson ", "person") },
			b:    func() string { return EntityID("Miles Dyson", "person") },
			same: true,
		},
		{
			name: "different type gives different id",
			a:    func() string { return EntityID("Miles Dyson", "person") },
			b:    func() string { return EntityID("Miles Dyson", "topic") },
			same: false,
		},
		{
			name: "mention keyed by chunk and entity",
			a:    func() string { return MentionID("c1", "e1") },
			b:    func() string { return MentionID("c1", "e1") },
			same: true,
		},
		{
			name: "edge direction matters",
			a:    func() string { return EdgeID("a", "related_to", "b", "c1") },
			b:    func() string { return EdgeID("b", "related_to", "a", "c1") },
			same: false,
		},
		{
			name: "edge chunk matters",
			a:    func() string { return EdgeID("a", "related_to", "b", "c1") },
			b:    func() string { return EdgeID("a", "related_to", "b", "c2") },
			same: false,
		},
		{
			name: "chunk keyed by url hash and position",
			a:    func() string { return ChunkID("abc", 3) },
			b:    func() string { return ChunkID("abc", 3) },
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, want := tt.a(), tt.b()
			if (got == want) != tt.same {
				t.Errorf("got %q and %q, same = %v, want same = %v", got, want, got == want, tt.same)
			}
		})
	}
}

func TestDigestSeparatorAmbiguity(t *testing.T) {
	// Field boundaries must be part of the digest: ("ab","c") != ("a","bc").
	if EntityID("ab", "c") == EntityID("a", "bc") {
		t.Error("field concatenation collides across boundaries")
	}
}

func TestDigestKindPrefix(t *testing.T) {
	if MentionID("x", "y") == AliasID("x", "y") {
		t.Error("different row kinds must not share digests")
	}
}

func TestURLHashLength(t *testing.T) {
	h := URLHash("https://example.com/news/1")
	if len(h) != 16 {
		t.Errorf("URLHash length = %d, want 16", len(h))
	}
	if h != URLHash(" https://example.com/news/1 ") {
		t.Error("URLHash should trim surrounding whitespace")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short string untouched", in: "hello", max: 10, want: "hello"},
		{name: "long string gets ellipsis", in: "hello world", max: 8, want: "hello..."},
		{name: "zero max", in: "hello", max: 0, want: ""},
		{name: "tiny max", in: "hello", max: 2, want: "he"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
	if !strings.HasSuffix(Truncate(strings.Repeat("x", 600), 500), "...") {
		t.Error("truncated error messages should end with ellipsis")
	}
}
