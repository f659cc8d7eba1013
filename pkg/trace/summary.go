package trace

import (
	"context"
	"fmt"
	"strings"

	"github.com/newstrace/backend/pkg/logger"
)

type summaryResponse struct {
	Summary string `json:"summary" jsonschema_description:"A short, cautious narrative summary"`
}

// generateSummary produces the result's narrative sentence. The
// deterministic fallback always works; when an AI client is configured
// a prompted summary constrained to the computed counts is preferred,
// but any failure or empty output falls back silently. The summary
// never states counts beyond what the pipeline computed.
func (e *Engine) generateSummary(
	ctx context.Context,
	anchor string,
	hotspotTitle string,
	timelineCount int,
	nodeCount int,
	evidenceCount int,
) string {
	fallback := fmt.Sprintf(
		"Trace of %q in the context of %q found %d timeline entries, %d related entities and %d evidence chunks. "+
			"These findings are uncertain and should be verified against the referenced evidence.",
		anchor, hotspotTitle, timelineCount, nodeCount, evidenceCount,
	)

	if e.ai == nil {
		return fallback
	}

	prompt := fmt.Sprintf(
		"Write one short, cautious paragraph summarizing a trace of the subject %q "+
			"in the context of the topic %q. The trace found exactly %d timeline entries, "+
			"%d related entities and %d evidence chunks. Do not invent facts or counts; "+
			"note that the findings are uncertain and backed by evidence references.",
		anchor, hotspotTitle, timelineCount, nodeCount, evidenceCount,
	)

	var response summaryResponse
	err := e.ai.GenerateCompletionWithFormat(
		ctx,
		"trace_summary",
		"A cautious summary of a trace run",
		prompt,
		&response,
	)
	if err != nil {
		logger.Warn("[Trace] Summary generation degraded", "error", err)
		return fallback
	}
	if strings.TrimSpace(response.Summary) == "" {
		return fallback
	}
	return strings.TrimSpace(response.Summary)
}
