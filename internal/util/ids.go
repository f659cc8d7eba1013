package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Graph rows are keyed by content-derived digests so that reprocessing the
// same inputs always lands on the same row. Each kind gets its own prefix to
// keep digests from colliding across tables.

const digestLen = 32

func digest(kind string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, f := range fields {
		h.Write([]byte{0x1f})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))[:digestLen]
}

// EntityID derives a stable identity from the canonical name and type.
func EntityID(name, entityType string) string {
	return digest("entity", strings.TrimSpace(name), entityType)
}

// AliasID derives a stable identity for an alias row of an entity.
func AliasID(entityID, alias string) string {
	return digest("alias", entityID, alias)
}

// MentionID derives a stable identity from the chunk and entity pair.
func MentionID(chunkID, entityID string) string {
	return digest("mention", chunkID, entityID)
}

// EventID derives a stable identity from the source chunk, type, and summary.
func EventID(chunkID, eventType, summary string) string {
	return digest("event", chunkID, eventType, summary)
}

// EdgeID derives a stable identity from source, relation, target, and the
// evidentiary chunk.
func EdgeID(sourceID, relation, targetID, chunkID string) string {
	return digest("edge", sourceID, relation, targetID, chunkID)
}

// ChunkID derives a stable identity from the document hash and the chunk's
// position within it, so re-ingesting a page replaces its chunks in place.
func ChunkID(urlHash string, position int) string {
	return digest("chunk", urlHash, strconv.Itoa(position))
}

// URLHash returns a short stable hash of a URL used to group chunks by
// source document.
func URLHash(url string) string {
	return digest("url", strings.TrimSpace(url))[:16]
}

// NewPublicID returns a random public identifier for rows without
// content-derived identity (hotspots, traces).
func NewPublicID() (string, error) {
	return gonanoid.New()
}
