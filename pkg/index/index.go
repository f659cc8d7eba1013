// Package index defines the recall interfaces the trace pipeline queries.
//
// Two independent recall paths exist: a lexical full-text index over chunk
// content and a vector index over chunk embeddings. Both are optional at
// runtime; the pipeline degrades when either is missing.
package index

import (
	"context"
	"errors"

	"github.com/newstrace/backend/pkg/common"
)

// ErrUnavailable signals that the index backend cannot serve the request,
// for example because the full-text catalog has not been built yet. Callers
// treat it as a cue to fall back, not as a hard failure.
var ErrUnavailable = errors.New("index unavailable")

// Hit is a single lexical recall result.
type Hit struct {
	Chunk common.Chunk
	Score float64
}

// Match is a single vector recall result. The vector index only stores
// chunk identity and lightweight metadata; candidates are built from the
// metadata without a round trip to the chunk store.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Lexical is a keyword index over chunk content.
type Lexical interface {
	// Search recalls up to limit chunks matching any of the aliases and
	// any of the terms. Returns ErrUnavailable when the index cannot be
	// queried.
	Search(ctx context.Context, aliases []string, terms []string, limit int) ([]Hit, error)

	// Index makes the given chunks searchable.
	Index(ctx context.Context, chunks []common.Chunk) error
}

// Vector is a nearest-neighbour index over chunk embeddings.
type Vector interface {
	// Query returns the topK nearest chunks to the given embedding,
	// scored by similarity in [0, 1].
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)

	// Upsert stores or replaces the embedding and metadata for a chunk.
	Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]string) error
}
