package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/net/html"
)

// Extracted is the usable part of a fetched article page.
type Extracted struct {
	Title       string
	Text        string
	PublishedAt string
	Links       []string
}

// Extract pulls the readable article text out of a page body, along
// with its publication timestamp and same-host links for the crawl
// frontier.
func Extract(body []byte, pageURL string) (Extracted, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Extracted{}, fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil {
		return Extracted{}, fmt.Errorf("parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return Extracted{}, fmt.Errorf("render article text: %w", err)
	}

	publishedAt, links := scanDocument(body, base)

	return Extracted{
		Title:       article.Title(),
		Text:        strings.TrimSpace(builder.String()),
		PublishedAt: publishedAt,
		Links:       links,
	}, nil
}

// scanDocument walks the raw HTML once, collecting the publication
// timestamp from meta tags and every same-host anchor href resolved
// against the base URL.
func scanDocument(body []byte, base *url.URL) (string, []string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}

	var publishedAt string
	seen := map[string]bool{}
	links := []string{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if publishedAt == "" {
					publishedAt = metaPublishedTime(n)
				}
			case "a":
				if link := resolveLink(n, base); link != "" && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return publishedAt, links
}

func metaPublishedTime(n *html.Node) string {
	var name, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "property", "name":
			name = strings.ToLower(attr.Val)
		case "content":
			content = attr.Val
		}
	}
	switch name {
	case "article:published_time", "pubdate", "publishdate", "og:published_time":
		return strings.TrimSpace(content)
	}
	return ""
}

func resolveLink(n *html.Node, base *url.URL) string {
	for _, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(attr.Val))
		if err != nil {
			return ""
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return ""
		}
		if resolved.Host != base.Host {
			return ""
		}
		resolved.Fragment = ""
		return resolved.String()
	}
	return ""
}
