package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refind-app/refind/internal/service"
)

// TrackingHandler handles report lookup by tracking token.
type TrackingHandler struct {
	submissions *service.SubmissionService
}

// NewTrackingHandler creates a new tracking handler.
// Parameters:
//   - submissions: submission service instance.
// Returns:
//   - *TrackingHandler: initialized handler.
func NewTrackingHandler(submissions *service.SubmissionService) *TrackingHandler {
	return &TrackingHandler{submissions: submissions}
}

// Track handles GET /api/v1/track/:token.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrackingHandler) Track(c *gin.Context) {
	info, err := h.submissions.Track(c.Request.Context(), c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrItemNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Lookup failed: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, info)
}
