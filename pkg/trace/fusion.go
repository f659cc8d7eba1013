package trace

import (
	"sort"
	"strings"

	"github.com/newstrace/backend/pkg/common"
)

const (
	timeBonus   = 0.2
	timePenalty = 0.2
)

// mergeCandidates unions recall results keyed by chunk ID. When the same
// chunk arrives from both paths, each sub-score keeps the maximum value
// seen and empty fields are backfilled from whichever sighting has them.
// The merge is idempotent and commutative as a set of candidates;
// iteration order preserves first sight.
func mergeCandidates(lists ...[]common.ChunkCandidate) []common.ChunkCandidate {
	byID := map[string]int{}
	merged := []common.ChunkCandidate{}

	for _, list := range lists {
		for _, candidate := range list {
			idx, ok := byID[candidate.ID]
			if !ok {
				byID[candidate.ID] = len(merged)
				merged = append(merged, candidate)
				continue
			}

			existing := &merged[idx]
			existing.LexScore = max(existing.LexScore, candidate.LexScore)
			existing.VecScore = max(existing.VecScore, candidate.VecScore)
			existing.TimeScore = max(existing.TimeScore, candidate.TimeScore)
			if existing.Content == "" {
				existing.Content = candidate.Content
			}
			if existing.URL == "" {
				existing.URL = candidate.URL
			}
			if existing.URLHash == "" {
				existing.URLHash = candidate.URLHash
			}
			if existing.PublishedAt == "" {
				existing.PublishedAt = candidate.PublishedAt
			}
			if existing.Position == 0 {
				existing.Position = candidate.Position
			}
		}
	}
	return merged
}

// filterCandidates applies the hard relevance gates and then scores time
// alignment:
//
//   - the content must contain at least one alias, case-sensitively
//   - all must-include terms must be present
//   - no exclude term may be present
//
// Survivors inside the hotspot's time window gain a fixed bonus, ones
// outside it take a fixed penalty, and candidates without a timestamp
// (or hotspots without a window) score neutrally.
func filterCandidates(
	candidates []common.ChunkCandidate,
	aliases []string,
	hotspot common.Hotspot,
) []common.ChunkCandidate {
	filtered := []common.ChunkCandidate{}

	for _, candidate := range candidates {
		if !containsAny(candidate.Content, aliases) {
			continue
		}
		if !containsAll(candidate.Content, hotspot.MustInclude) {
			continue
		}
		if containsAny(candidate.Content, hotspot.Exclude) {
			continue
		}

		candidate.TimeScore = timeScore(candidate.PublishedAt, hotspot.TimeStart, hotspot.TimeEnd)
		filtered = append(filtered, candidate)
	}
	return filtered
}

// timeScore compares the raw timestamp strings lexicographically, which
// orders correctly for ISO-8601 values.
func timeScore(publishedAt string, timeStart string, timeEnd string) float64 {
	if publishedAt == "" || (timeStart == "" && timeEnd == "") {
		return 0
	}
	if timeStart != "" && publishedAt < timeStart {
		return -timePenalty
	}
	if timeEnd != "" && publishedAt > timeEnd {
		return -timePenalty
	}
	return timeBonus
}

// rerank stably sorts by descending fused score, ties keeping relative
// recall order, and cuts to the top n. The cutoff bounds all downstream
// per-candidate work independent of corpus size.
func rerank(candidates []common.ChunkCandidate, n int) []common.ChunkCandidate {
	ranked := make([]common.ChunkCandidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func containsAny(content string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(content, term) {
			return true
		}
	}
	return false
}

func containsAll(content string, terms []string) bool {
	for _, term := range terms {
		if term != "" && !strings.Contains(content, term) {
			return false
		}
	}
	return true
}
