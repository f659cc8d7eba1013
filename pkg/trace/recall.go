package trace

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
	"github.com/newstrace/backend/pkg/logger"
)

const (
	maxTopicTerms = 8
	minTermLen    = 2

	// Every lexical hit keeps a small positive score so weak matches
	// remain rankable against vector hits.
	lexicalFloor     = 0.05
	fallbackLexScore = 0.1
)

// buildAliases collects the query surface forms for the anchor: the
// anchor itself, any caller-supplied hints and any alias rows already
// recorded for the name. Order is deterministic and duplicates are
// removed case-sensitively, matching the filter gate.
func (e *Engine) buildAliases(ctx context.Context, tr common.Trace) ([]string, error) {
	known, err := e.store.AliasesForName(ctx, tr.Anchor)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	aliases := []string{}
	for _, alias := range append(append([]string{tr.Anchor}, tr.Aliases...), known...) {
		alias = strings.TrimSpace(alias)
		if alias == "" || seen[alias] {
			continue
		}
		seen[alias] = true
		aliases = append(aliases, alias)
	}
	return aliases, nil
}

// topicTerms extracts up to maxTopicTerms query tokens from the job's
// event text and the hotspot's keyword list. Single-character tokens
// carry no signal and are skipped.
func topicTerms(hotspot common.Hotspot, event string) []string {
	seen := map[string]bool{}
	terms := []string{}

	candidates := append(strings.Fields(event), hotspot.Keywords...)
	for _, term := range candidates {
		term = strings.TrimSpace(term)
		if len([]rune(term)) < minTermLen || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
		if len(terms) >= maxTopicTerms {
			break
		}
	}
	return terms
}

// lexicalRecall queries the lexical index with (aliases) AND (terms).
// It never fails the run: an unavailable index falls back to a
// substring scan over raw chunk content, and any other error yields an
// empty set.
func (e *Engine) lexicalRecall(
	ctx context.Context,
	tr common.Trace,
	aliases []string,
	terms []string,
) []common.ChunkCandidate {
	if e.lexical != nil {
		hits, err := e.lexical.Search(ctx, aliases, terms, lexicalLimit)
		if err == nil {
			candidates := make([]common.ChunkCandidate, 0, len(hits))
			for _, hit := range hits {
				candidates = append(candidates, common.ChunkCandidate{
					Chunk:    hit.Chunk,
					LexScore: mapLexScore(hit.Score),
				})
			}
			return candidates
		}
		if !errors.Is(err, index.ErrUnavailable) {
			logger.Warn("[Trace] Lexical recall degraded", "trace", tr.ID, "error", err)
			return []common.ChunkCandidate{}
		}
	}

	return e.lexicalFallback(ctx, tr)
}

// lexicalFallback scans raw chunk content for the anchor or event
// strings, assigning a flat score. A scan error is logged and yields
// whatever was collected so far.
func (e *Engine) lexicalFallback(ctx context.Context, tr common.Trace) []common.ChunkCandidate {
	candidates := []common.ChunkCandidate{}
	err := e.store.ScanChunks(ctx, func(chunk common.Chunk) bool {
		hit := strings.Contains(chunk.Content, tr.Anchor)
		if !hit && tr.Event != "" {
			hit = strings.Contains(chunk.Content, tr.Event)
		}
		if hit {
			candidates = append(candidates, common.ChunkCandidate{
				Chunk:    chunk,
				LexScore: fallbackLexScore,
			})
		}
		return len(candidates) < lexicalLimit
	})
	if err != nil {
		logger.Warn("[Trace] Lexical fallback scan degraded", "trace", tr.ID, "error", err)
	}
	return candidates
}

// mapLexScore maps an unbounded index relevance score into
// (lexicalFloor, 1.0), monotonically.
func mapLexScore(relevance float64) float64 {
	if relevance < 0 {
		relevance = 0
	}
	return lexicalFloor + (1-lexicalFloor)*relevance/(relevance+1)
}

// vectorRecall embeds the hotspot description, anchor and event into a
// single query and asks the vector index for the nearest chunks.
// Candidates are rebuilt entirely from match metadata. Any missing
// capability or failure yields an empty set.
func (e *Engine) vectorRecall(
	ctx context.Context,
	tr common.Trace,
	hotspot common.Hotspot,
) []common.ChunkCandidate {
	if e.vector == nil || e.ai == nil {
		return []common.ChunkCandidate{}
	}

	query := strings.TrimSpace(hotspot.Description + " " + tr.Anchor + " " + tr.Event)
	embedding, err := e.ai.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		logger.Warn("[Trace] Vector recall embedding degraded", "trace", tr.ID, "error", err)
		return []common.ChunkCandidate{}
	}

	matches, err := e.vector.Query(ctx, embedding, vectorTopK)
	if err != nil {
		logger.Warn("[Trace] Vector recall query degraded", "trace", tr.ID, "error", err)
		return []common.ChunkCandidate{}
	}

	candidates := make([]common.ChunkCandidate, 0, len(matches))
	for _, match := range matches {
		position, _ := strconv.Atoi(match.Metadata["position"])
		candidates = append(candidates, common.ChunkCandidate{
			Chunk: common.Chunk{
				ID:          match.ID,
				URL:         match.Metadata["url"],
				URLHash:     match.Metadata["url_hash"],
				Position:    position,
				Content:     match.Metadata["content"],
				PublishedAt: match.Metadata["published_at"],
			},
			VecScore: match.Score,
		})
	}
	return candidates
}

// chunkMetadata is the inverse of vectorRecall's reconstruction; the
// graph writer stores it alongside each backfilled embedding.
func chunkMetadata(chunk common.Chunk) map[string]string {
	return map[string]string{
		"url":          chunk.URL,
		"url_hash":     chunk.URLHash,
		"position":     strconv.Itoa(chunk.Position),
		"content":      chunk.Content,
		"published_at": chunk.PublishedAt,
	}
}
