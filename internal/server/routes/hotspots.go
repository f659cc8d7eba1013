package routes

import (
	"errors"
	"net/http"

	"github.com/newstrace/backend/internal/server/middleware"
	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/common"
	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/store"

	"github.com/labstack/echo/v4"
)

// UpsertHotspotHandler creates or fully replaces a hotspot definition.
// A missing id means create; the generated id comes back in the
// response.
func UpsertHotspotHandler(c echo.Context) error {
	type upsertHotspotBody struct {
		ID          string   `json:"id"`
		Title       string   `json:"title" validate:"required"`
		Description string   `json:"description"`
		TimeStart   string   `json:"time_start"`
		TimeEnd     string   `json:"time_end"`
		Entities    []string `json:"entities"`
		Keywords    []string `json:"keywords"`
		MustInclude []string `json:"must_include"`
		Exclude     []string `json:"exclude"`
	}

	type upsertHotspotResponse struct {
		Message   string `json:"message"`
		HotspotID string `json:"hotspot_id,omitempty"`
	}

	data := new(upsertHotspotBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, upsertHotspotResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, upsertHotspotResponse{
			Message: "Invalid request body",
		})
	}

	id := data.ID
	if id == "" {
		var err error
		id, err = util.NewPublicID()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, upsertHotspotResponse{
				Message: "Internal server error",
			})
		}
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store
	err := st.UpsertHotspot(ctx, common.Hotspot{
		ID:          id,
		Title:       data.Title,
		Description: data.Description,
		TimeStart:   data.TimeStart,
		TimeEnd:     data.TimeEnd,
		Entities:    data.Entities,
		Keywords:    data.Keywords,
		MustInclude: data.MustInclude,
		Exclude:     data.Exclude,
	})
	if err != nil {
		logger.Error("Failed to upsert hotspot", "err", err)
		return c.JSON(http.StatusInternalServerError, upsertHotspotResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, upsertHotspotResponse{
		Message:   "Hotspot saved",
		HotspotID: id,
	})
}

func GetHotspotHandler(c echo.Context) error {
	type getHotspotResponse struct {
		Message string          `json:"message,omitempty"`
		Hotspot *common.Hotspot `json:"hotspot,omitempty"`
	}

	id := c.Param("id")
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	hotspot, err := st.GetHotspot(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, getHotspotResponse{
				Message: "Hotspot not found",
			})
		}
		logger.Error("Failed to get hotspot", "err", err)
		return c.JSON(http.StatusInternalServerError, getHotspotResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getHotspotResponse{Hotspot: &hotspot})
}

func GetHotspotsHandler(c echo.Context) error {
	type getHotspotsResponse struct {
		Message  string           `json:"message,omitempty"`
		Hotspots []common.Hotspot `json:"hotspots"`
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	hotspots, err := st.ListHotspots(ctx, 100)
	if err != nil {
		logger.Error("Failed to list hotspots", "err", err)
		return c.JSON(http.StatusInternalServerError, getHotspotsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getHotspotsResponse{Hotspots: hotspots})
}
