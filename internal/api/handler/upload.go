package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refind-app/refind/internal/domain"
	"github.com/refind-app/refind/internal/service"
)

// UploadHandler handles lost and found report submissions.
type UploadHandler struct {
	submissions *service.SubmissionService
}

// NewUploadHandler creates a new upload handler.
// Parameters:
//   - submissions: submission service instance.
// Returns:
//   - *UploadHandler: initialized handler.
func NewUploadHandler(submissions *service.SubmissionService) *UploadHandler {
	return &UploadHandler{submissions: submissions}
}

// ReportLost handles POST /api/v1/upload/lost.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) ReportLost(c *gin.Context) {
	h.handleUpload(c, domain.ItemTypeLost)
}

// ReportFound handles POST /api/v1/upload/found.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *UploadHandler) ReportFound(c *gin.Context) {
	h.handleUpload(c, domain.ItemTypeFound)
}

func (h *UploadHandler) handleUpload(c *gin.Context, itemType domain.ItemType) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Image file is required",
		})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read image: " + err.Error(),
		})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read image: " + err.Error(),
		})
		return
	}

	sub := &service.Submission{
		ItemType:    itemType,
		ItemName:    c.PostForm("item_name"),
		Description: c.PostForm("description"),
		Location:    c.PostForm("location"),
		ContactInfo: c.PostForm("contact_info"),
		Filename:    fileHeader.Filename,
		ImageData:   data,
	}

	result, err := h.submissions.Submit(c.Request.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields),
			errors.Is(err, service.ErrUnsupportedFormat),
			errors.Is(err, service.ErrImageTooLarge),
			errors.Is(err, service.ErrImageDecode):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Upload failed: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}
