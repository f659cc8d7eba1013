package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/trace"
)

// TraceJobMsg is the queue contract for a trace job. The only required
// field is the trace ID.
type TraceJobMsg struct {
	TraceID string `json:"trace_id"`
}

// ProcessTraceMessage handles one delivery from the trace queue.
// Malformed payloads are dropped without error so they are never
// retried; pipeline failures propagate so the caller can redeliver.
func ProcessTraceMessage(
	ctx context.Context,
	engine *trace.Engine,
	msg string,
) error {
	data := new(TraceJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		logger.Warn("[Queue] Dropping malformed trace message", "err", err)
		return nil
	}
	if strings.TrimSpace(data.TraceID) == "" {
		logger.Warn("[Queue] Dropping trace message without trace_id")
		return nil
	}

	return engine.Process(ctx, data.TraceID)
}
