package common

import (
	"encoding/json"
	"time"
)

// Hotspot is a named topic definition used to scope and filter a trace.
// The optional time window and term lists constrain which chunks a trace
// run will accept as evidence. Hotspots are replaced wholesale on upsert;
// the last write wins.
type Hotspot struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TimeStart   string   `json:"time_start,omitempty"`
	TimeEnd     string   `json:"time_end,omitempty"`
	Entities    []string `json:"entities,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	MustInclude []string `json:"must_include,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TraceStatus is the lifecycle state of a trace job.
type TraceStatus string

const (
	TraceQueued  TraceStatus = "queued"
	TraceRunning TraceStatus = "running"
	TraceDone    TraceStatus = "done"
	TraceFailed  TraceStatus = "failed"
)

// Trace is one reconstruction job: an anchor subject investigated against a
// hotspot. Traces are append-only history; a failed trace may be redelivered
// and retried, incrementing Retries each time.
type Trace struct {
	ID        string          `json:"id"`
	HotspotID string          `json:"hotspot_id"`
	Anchor    string          `json:"anchor"`
	Event     string          `json:"event,omitempty"`
	Aliases   []string        `json:"aliases,omitempty"`
	Status    TraceStatus     `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Retries   int             `json:"retries"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is the smallest indexed unit of article text. PublishedAt holds the
// raw timestamp representation from the source page; comparisons on it are
// plain string comparisons, which order correctly for ISO-8601 values.
type Chunk struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	URLHash     string `json:"url_hash"`
	Position    int    `json:"position"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at,omitempty"`
}

// ChunkCandidate is a chunk under consideration by one trace run, with the
// three independent sub-scores whose sum is the fusion score. Candidates are
// owned by the run that created them and never persisted.
type ChunkCandidate struct {
	Chunk

	LexScore  float64 `json:"lex_score"`
	VecScore  float64 `json:"vec_score"`
	TimeScore float64 `json:"time_score"`
}

// Score returns the fused score used for ranking.
func (c ChunkCandidate) Score() float64 {
	return c.LexScore + c.VecScore + c.TimeScore
}

// Entity is a node in the knowledge graph. Its identity is derived from
// (name, type), so re-processing the same subject is idempotent.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Lang string `json:"lang,omitempty"`
}

// EntityAlias maps an alternate surface form to an entity. Aliases expand
// recall queries and assert co-reference.
type EntityAlias struct {
	ID         string  `json:"id"`
	EntityID   string  `json:"entity_id"`
	Alias      string  `json:"alias"`
	Confidence float64 `json:"confidence"`
}

// Mention records that an entity appears in a specific chunk. Span is a
// free-form descriptor locating the occurrence within the chunk text.
type Mention struct {
	ID       string `json:"id"`
	ChunkID  string `json:"chunk_id"`
	EntityID string `json:"entity_id"`
	Span     string `json:"span,omitempty"`
}

// Event is a timestamped or undated fact extracted from a chunk.
type Event struct {
	ID        string          `json:"id"`
	ChunkID   string          `json:"chunk_id"`
	Type      string          `json:"type"`
	Summary   string          `json:"summary"`
	Args      json.RawMessage `json:"args,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Edge is a directed, weighted relation between two entities, always tied to
// the chunk it was derived from and optionally to one event. Weight ranks
// edges; it is not a probability, and reruns overwrite it.
type Edge struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Relation string  `json:"relation"`
	TargetID string  `json:"target_id"`
	ChunkID  string  `json:"chunk_id"`
	EventID  string  `json:"event_id,omitempty"`
	Weight   float64 `json:"weight"`
}
