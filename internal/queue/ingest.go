package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/newstrace/backend/internal/ingest"
	"github.com/newstrace/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ingestMaxDepth bounds how far link discovery follows the frontier
// from the seed URL.
const ingestMaxDepth = 2

// IngestJobMsg is the queue contract for an ingest job.
type IngestJobMsg struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// ProcessIngestMessage ingests one page and republishes the discovered
// links as new ingest jobs until the depth budget is spent. Malformed
// payloads are dropped without error.
func ProcessIngestMessage(
	ctx context.Context,
	ingestor *ingest.Ingestor,
	ch *amqp091.Channel,
	msg string,
) error {
	data := new(IngestJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		logger.Warn("[Queue] Dropping malformed ingest message", "err", err)
		return nil
	}
	if strings.TrimSpace(data.URL) == "" {
		logger.Warn("[Queue] Dropping ingest message without url")
		return nil
	}

	_, links, err := ingestor.IngestURL(ctx, data.URL)
	if err != nil {
		return err
	}

	if data.Depth >= ingestMaxDepth {
		return nil
	}
	for _, link := range links {
		next, err := json.Marshal(IngestJobMsg{URL: link, Depth: data.Depth + 1})
		if err != nil {
			continue
		}
		if err := PublishFIFO(ch, IngestQueue, next); err != nil {
			logger.Error("[Queue] Failed to publish discovered link", "url", link, "err", err)
		}
	}
	return nil
}
