package server

import (
	"github.com/newstrace/backend/internal/server/middleware"
	"github.com/newstrace/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Hotspot routes
	apiRoutes.GET("/hotspots", routes.GetHotspotsHandler)
	apiRoutes.POST("/hotspots", routes.UpsertHotspotHandler)
	apiRoutes.PUT("/hotspots", routes.UpsertHotspotHandler)
	apiRoutes.GET("/hotspots/:id", routes.GetHotspotHandler)

	// Trace routes
	apiRoutes.GET("/traces", routes.GetTracesHandler)
	apiRoutes.POST("/traces", routes.EnqueueTraceHandler)
	apiRoutes.GET("/traces/:id", routes.GetTraceHandler)

	// Corpus routes
	apiRoutes.POST("/ingest", routes.EnqueueIngestHandler)
	apiRoutes.GET("/search", routes.SearchHandler)
}
