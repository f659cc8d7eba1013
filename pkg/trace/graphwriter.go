package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	minSentenceLen   = 12
	edgeWeightOffset = 1.0

	hintAliasConfidence = 0.8
)

// writeGraph upserts the graph rows derived from the top candidates:
// one mention per candidate, one related_to edge per declared topic
// entity per candidate, and one event extracted from the candidate
// text. Every identity is content-derived, so a rerun of the same
// trace writes the same rows.
//
// Freshly created events are returned in-memory so assembly does not
// need to read them back.
func (e *Engine) writeGraph(
	ctx context.Context,
	tr common.Trace,
	hotspot common.Hotspot,
	candidates []common.ChunkCandidate,
) ([]common.Event, string, error) {
	anchor := common.Entity{
		ID:   util.EntityID(tr.Anchor, "person"),
		Name: strings.TrimSpace(tr.Anchor),
		Type: "person",
	}
	if err := e.store.UpsertEntity(ctx, anchor); err != nil {
		return nil, "", fmt.Errorf("upsert anchor entity: %w", err)
	}
	for _, hint := range tr.Aliases {
		hint = strings.TrimSpace(hint)
		if hint == "" || hint == anchor.Name {
			continue
		}
		alias := common.EntityAlias{
			ID:         util.AliasID(anchor.ID, hint),
			EntityID:   anchor.ID,
			Alias:      hint,
			Confidence: hintAliasConfidence,
		}
		if err := e.store.UpsertAlias(ctx, alias); err != nil {
			return nil, "", fmt.Errorf("upsert alias hint: %w", err)
		}
	}

	topics := make([]common.Entity, 0, len(hotspot.Entities))
	for _, name := range hotspot.Entities {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		topics = append(topics, common.Entity{
			ID:   util.EntityID(name, "topic"),
			Name: name,
			Type: "topic",
		})
	}
	for _, topic := range topics {
		if err := e.store.UpsertEntity(ctx, topic); err != nil {
			return nil, "", fmt.Errorf("upsert topic entity: %w", err)
		}
	}

	events := make([]common.Event, 0, len(candidates))
	var eventsLock sync.Mutex

	group, gCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxParallel)

	for _, candidate := range candidates {
		group.Go(func() error {
			event, err := e.writeCandidate(gCtx, tr, anchor, topics, candidate)
			if err != nil {
				return err
			}
			eventsLock.Lock()
			events = append(events, event)
			eventsLock.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, "", err
	}

	return events, anchor.ID, nil
}

func (e *Engine) writeCandidate(
	ctx context.Context,
	tr common.Trace,
	anchor common.Entity,
	topics []common.Entity,
	candidate common.ChunkCandidate,
) (common.Event, error) {
	mention := common.Mention{
		ID:       util.MentionID(candidate.ID, anchor.ID),
		ChunkID:  candidate.ID,
		EntityID: anchor.ID,
		Span:     mentionSpan(candidate.Content, anchor.Name),
	}
	if err := e.store.UpsertMention(ctx, mention); err != nil {
		return common.Event{}, fmt.Errorf("upsert mention: %w", err)
	}

	eventType := "mention"
	if tr.Event != "" {
		eventType = "hotspot_event"
	}
	summary := firstSentence(candidate.Content, minSentenceLen)
	args, _ := json.Marshal(map[string]string{
		"anchor":     anchor.Name,
		"hotspot_id": tr.HotspotID,
	})
	event := common.Event{
		ID:        util.EventID(candidate.ID, eventType, summary),
		ChunkID:   candidate.ID,
		Type:      eventType,
		Summary:   summary,
		Args:      args,
		Timestamp: candidate.PublishedAt,
	}
	if err := e.store.UpsertEvent(ctx, event); err != nil {
		return common.Event{}, fmt.Errorf("upsert event: %w", err)
	}

	for _, topic := range topics {
		edge := common.Edge{
			ID:       util.EdgeID(anchor.ID, "related_to", topic.ID, candidate.ID),
			SourceID: anchor.ID,
			Relation: "related_to",
			TargetID: topic.ID,
			ChunkID:  candidate.ID,
			EventID:  event.ID,
			Weight:   candidate.Score() + edgeWeightOffset,
		}
		if err := e.store.UpsertEdge(ctx, edge); err != nil {
			return common.Event{}, fmt.Errorf("upsert edge: %w", err)
		}
	}

	// Lazily backfill vector coverage for future runs. Failures never
	// fail the trace.
	if e.ai != nil && e.vector != nil {
		embedding, err := e.ai.GenerateEmbedding(ctx, []byte(candidate.Content))
		if err != nil {
			logger.Debug("[Trace] Vector backfill embedding skipped", "chunk", candidate.ID, "error", err)
			return event, nil
		}
		if err := e.vector.Upsert(ctx, candidate.ID, embedding, chunkMetadata(candidate.Chunk)); err != nil {
			logger.Debug("[Trace] Vector backfill upsert skipped", "chunk", candidate.ID, "error", err)
		}
	}

	return event, nil
}

func mentionSpan(content string, name string) string {
	if idx := strings.Index(content, name); idx >= 0 {
		return fmt.Sprintf("offset:%d", idx)
	}
	return ""
}

// firstSentence returns the first sentence of text whose rune length is
// at least minLen, falling back to the whole text when none qualifies.
// Both Latin and CJK sentence terminators split.
func firstSentence(text string, minLen int) string {
	text = strings.TrimSpace(text)
	rest := text
	for rest != "" {
		cut := strings.IndexAny(rest, ".!?。！？")
		if cut < 0 {
			break
		}
		sentence := strings.TrimSpace(rest[:cut+lenAt(rest, cut)])
		if len([]rune(sentence)) >= minLen {
			return sentence
		}
		rest = strings.TrimSpace(rest[cut+lenAt(rest, cut):])
	}
	if len([]rune(rest)) >= minLen {
		return rest
	}
	return text
}

// lenAt returns the byte length of the rune starting at byte index i.
func lenAt(s string, i int) int {
	for _, r := range s[i:] {
		return len(string(r))
	}
	return 0
}
