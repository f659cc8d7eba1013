// Package ingest turns crawled article pages into indexed chunks: it
// fetches a page, archives the raw body, extracts the readable text,
// chunks it and writes it to the store and the recall indexes.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newstrace/backend/internal/storage"
	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/ai"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/index"
	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

const (
	fetchTimeout  = 30 * time.Second
	fetchRetries  = 3
	maxBodyBytes  = 8 << 20
	embedParallel = 4
	userAgent     = "newstrace-ingest/1.0"
)

// Ingestor processes one article URL end to end. The S3 client, vector
// index and AI client are optional; without them raw archival and
// vector indexing are skipped.
type Ingestor struct {
	store   store.KnowledgeStore
	lexical index.Lexical
	vector  index.Vector
	ai      ai.Client
	s3      *s3.Client

	httpClient  *http.Client
	countTokens func(string) int
}

type NewIngestorParams struct {
	Store   store.KnowledgeStore
	Lexical index.Lexical
	Vector  index.Vector
	AI      ai.Client
	S3      *s3.Client
}

func NewIngestor(params NewIngestorParams) (*Ingestor, error) {
	countTokens, err := NewTokenCounter()
	if err != nil {
		return nil, fmt.Errorf("token counter: %w", err)
	}
	return &Ingestor{
		store:       params.Store,
		lexical:     params.Lexical,
		vector:      params.Vector,
		ai:          params.AI,
		s3:          params.S3,
		httpClient:  &http.Client{Timeout: fetchTimeout},
		countTokens: countTokens,
	}, nil
}

// IngestURL fetches, archives, extracts, chunks and indexes one page.
// It returns the number of written chunks and the discovered same-host
// links for the crawl frontier. Chunk identity derives from the URL and
// the chunk position, so re-ingesting a page replaces its chunks.
func (i *Ingestor) IngestURL(ctx context.Context, pageURL string) (int, []string, error) {
	body, err := util.RetryWithContext(ctx, fetchRetries, func(ctx context.Context) ([]byte, error) {
		return i.fetch(ctx, pageURL)
	})
	if err != nil {
		return 0, nil, err
	}

	urlHash := util.URLHash(pageURL)
	if i.s3 != nil {
		if _, err := storage.PutRawArticle(ctx, i.s3, urlHash, body); err != nil {
			logger.Warn("[Ingest] Raw archive skipped", "url", pageURL, "error", err)
		}
	}

	extracted, err := Extract(body, pageURL)
	if err != nil {
		return 0, nil, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	if extracted.Text == "" {
		logger.Debug("[Ingest] No readable text", "url", pageURL)
		return 0, extracted.Links, nil
	}

	pieces := ChunkText(extracted.Text, chunkMaxTokens, i.countTokens)
	chunks := make([]common.Chunk, 0, len(pieces))
	for position, piece := range pieces {
		chunks = append(chunks, common.Chunk{
			ID:          util.ChunkID(urlHash, position),
			URL:         pageURL,
			URLHash:     urlHash,
			Position:    position,
			Content:     piece,
			PublishedAt: extracted.PublishedAt,
		})
	}

	if err := i.store.UpsertChunks(ctx, chunks); err != nil {
		return 0, nil, fmt.Errorf("store chunks for %s: %w", pageURL, err)
	}
	if i.lexical != nil {
		if err := i.lexical.Index(ctx, chunks); err != nil {
			return 0, nil, fmt.Errorf("index chunks for %s: %w", pageURL, err)
		}
	}

	i.embedChunks(ctx, chunks)

	logger.Info("[Ingest] Page ingested",
		"url", pageURL,
		"chunks", len(chunks),
		"links", len(extracted.Links),
	)
	return len(chunks), extracted.Links, nil
}

func (i *Ingestor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	return body, nil
}

// embedChunks writes chunk embeddings to the vector index, best-effort
// and bounded. Missing capability or per-chunk failures only cost
// vector coverage, never the ingest.
func (i *Ingestor) embedChunks(ctx context.Context, chunks []common.Chunk) {
	if i.ai == nil || i.vector == nil {
		return
	}

	group, gCtx := errgroup.WithContext(ctx)
	group.SetLimit(embedParallel)
	for _, chunk := range chunks {
		group.Go(func() error {
			embedding, err := i.ai.GenerateEmbedding(gCtx, []byte(chunk.Content))
			if err != nil {
				logger.Warn("[Ingest] Embedding skipped", "chunk", chunk.ID, "error", err)
				return nil
			}
			metadata := map[string]string{
				"url":          chunk.URL,
				"url_hash":     chunk.URLHash,
				"position":     fmt.Sprintf("%d", chunk.Position),
				"content":      chunk.Content,
				"published_at": chunk.PublishedAt,
			}
			if err := i.vector.Upsert(gCtx, chunk.ID, embedding, metadata); err != nil {
				logger.Warn("[Ingest] Vector upsert skipped", "chunk", chunk.ID, "error", err)
			}
			return nil
		})
	}
	_ = group.Wait()
}
