package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/newstrace/backend/internal/server/middleware"
	"github.com/newstrace/backend/pkg/index"
	"github.com/newstrace/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const searchLimit = 50

// SearchHandler runs a plain keyword search against the lexical index.
func SearchHandler(c echo.Context) error {
	type searchResult struct {
		ChunkID     string  `json:"chunk_id"`
		URL         string  `json:"url"`
		Content     string  `json:"content"`
		PublishedAt string  `json:"published_at,omitempty"`
		Score       float64 `json:"score"`
	}

	type searchResponse struct {
		Message string         `json:"message,omitempty"`
		Results []searchResult `json:"results"`
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Missing query parameter q",
		})
	}

	ctx := c.Request().Context()
	lexical := c.(*middleware.AppContext).App.Lexical

	hits, err := lexical.Search(ctx, nil, strings.Fields(query), searchLimit)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, searchResponse{
				Message: "Search index unavailable",
			})
		}
		logger.Error("Search failed", "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{
			Message: "Internal server error",
		})
	}

	results := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, searchResult{
			ChunkID:     hit.Chunk.ID,
			URL:         hit.Chunk.URL,
			Content:     hit.Chunk.Content,
			PublishedAt: hit.Chunk.PublishedAt,
			Score:       hit.Score,
		})
	}

	return c.JSON(http.StatusOK, searchResponse{Results: results})
}
