package ingest

import (
	"net/url"
	"testing"
)

func TestScanDocument(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/articles/1")

	page := []byte(`<html><head>
		<meta property="article:published_time" content="2023-03-01T08:30:00Z">
	</head><body>
		<a href="/articles/2">next</a>
		<a href="https://news.example.com/articles/3#comments">third</a>
		<a href="https://other.example.org/away">offsite</a>
		<a href="mailto:tips@example.com">tips</a>
		<a href="/articles/2">duplicate</a>
	</body></html>`)

	publishedAt, links := scanDocument(page, base)

	if publishedAt != "2023-03-01T08:30:00Z" {
		t.Errorf("expected published time from meta tag, got %q", publishedAt)
	}

	want := []string{
		"https://news.example.com/articles/2",
		"https://news.example.com/articles/3",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d: got %q, want %q", i, links[i], want[i])
		}
	}
}

func TestScanDocumentPubdateMeta(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/")
	page := []byte(`<html><head><meta name="pubdate" content="2023-05-10"></head><body></body></html>`)

	publishedAt, _ := scanDocument(page, base)
	if publishedAt != "2023-05-10" {
		t.Errorf("expected pubdate meta value, got %q", publishedAt)
	}
}

func TestScanDocumentNoSignals(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/")
	publishedAt, links := scanDocument([]byte("<html><body><p>plain</p></body></html>"), base)
	if publishedAt != "" {
		t.Errorf("expected no published time, got %q", publishedAt)
	}
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}
