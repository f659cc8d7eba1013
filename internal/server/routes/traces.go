package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newstrace/backend/internal/queue"
	"github.com/newstrace/backend/internal/server/middleware"
	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// EnqueueTraceHandler creates a trace job in the queued state and
// schedules it via the trace queue.
func EnqueueTraceHandler(c echo.Context) error {
	type enqueueTraceBody struct {
		HotspotID string   `json:"hotspot_id" validate:"required"`
		Anchor    string   `json:"anchor" validate:"required"`
		Event     string   `json:"event"`
		Aliases   []string `json:"aliases"`
	}

	type enqueueTraceResponse struct {
		Message string `json:"message"`
		TraceID string `json:"trace_id,omitempty"`
		Status  string `json:"status,omitempty"`
	}

	data := new(enqueueTraceBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueTraceResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, enqueueTraceResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetHotspot(ctx, data.HotspotID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusBadRequest, enqueueTraceResponse{
				Message: "Unknown hotspot_id",
			})
		}
		logger.Error("Failed to load hotspot", "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueTraceResponse{
			Message: "Internal server error",
		})
	}

	traceID, err := util.NewPublicID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, enqueueTraceResponse{
			Message: "Internal server error",
		})
	}

	err = st.CreateTrace(ctx, common.Trace{
		ID:        traceID,
		HotspotID: data.HotspotID,
		Anchor:    data.Anchor,
		Event:     data.Event,
		Aliases:   data.Aliases,
		Status:    common.TraceQueued,
	})
	if err != nil {
		logger.Error("Failed to create trace", "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueTraceResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.TraceJobMsg{TraceID: traceID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, enqueueTraceResponse{
			Message: "Internal server error",
		})
	}
	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.TraceQueue, msg); err != nil {
		logger.Error("Failed to publish trace job", "trace", traceID, "err", err)
		return c.JSON(http.StatusInternalServerError, enqueueTraceResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, enqueueTraceResponse{
		Message: "Trace queued",
		TraceID: traceID,
		Status:  string(common.TraceQueued),
	})
}

func GetTraceHandler(c echo.Context) error {
	type getTraceResponse struct {
		Message string        `json:"message,omitempty"`
		Trace   *common.Trace `json:"trace,omitempty"`
	}

	id := c.Param("id")
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	trace, err := st.GetTrace(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getTraceResponse{
				Message: "Trace not found",
			})
		}
		logger.Error("Failed to get trace", "err", err)
		return c.JSON(http.StatusInternalServerError, getTraceResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getTraceResponse{Trace: &trace})
}

func GetTracesHandler(c echo.Context) error {
	type getTracesResponse struct {
		Message string         `json:"message,omitempty"`
		Traces  []common.Trace `json:"traces"`
	}

	hotspotID := c.QueryParam("hotspot_id")
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	traces, err := st.ListTraces(ctx, hotspotID, 100)
	if err != nil {
		logger.Error("Failed to list traces", "err", err)
		return c.JSON(http.StatusInternalServerError, getTracesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getTracesResponse{Traces: traces})
}
