package routes

import (
	"encoding/json"
	"net/http"

	"github.com/newstrace/backend/internal/queue"
	"github.com/newstrace/backend/internal/server/middleware"
	"github.com/newstrace/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EnqueueIngestHandler schedules a page URL for crawling and indexing.
func EnqueueIngestHandler(c echo.Context) error {
	type enqueueIngestBody struct {
		URL string `json:"url" validate:"required,uri"`
	}

	type enqueueIngestResponse struct {
		Message string `json:"message"`
	}

	data := new(enqueueIngestBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueIngestResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueIngestResponse{
			Message: "Invalid request body",
		})
	}

	msg, err := json.Marshal(queue.IngestJobMsg{URL: data.URL})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, enqueueIngestResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.IngestQueue, msg); err != nil {
		logger.Error("Failed to publish ingest job", "url", data.URL, "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueIngestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, enqueueIngestResponse{
		Message: "Ingest queued",
	})
}
