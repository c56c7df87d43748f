package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/refind-app/refind/internal/service"
	"github.com/refind-app/refind/internal/token"
)

// SearchHandler handles matching and diagnostics endpoints.
type SearchHandler struct {
	matcher *service.MatcherService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - matcher: matching service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(matcher *service.MatcherService) *SearchHandler {
	return &SearchHandler{matcher: matcher}
}

// SearchMatches handles GET /api/v1/search/:token.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchMatches(c *gin.Context) {
	trackingToken := c.Param("token")
	if !token.Validate(trackingToken) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid tracking token format",
		})
		return
	}

	topK := 0
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Query parameter 'top_k' must be an integer",
			})
			return
		}
		topK = parsed
	}

	result, err := h.matcher.SearchMatches(c.Request.Context(), trackingToken, topK)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrQueryImage):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Search failed: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecentMatches handles GET /api/v1/matches/recent.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) RecentMatches(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Query parameter 'limit' must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	matches, err := h.matcher.RecentMatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list recent matches: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(matches),
		"matches": matches,
	})
}

// Stats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Stats(c *gin.Context) {
	stats, err := h.matcher.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to collect stats: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ModelInfo handles GET /api/v1/model.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.matcher.ModelInfo())
}
