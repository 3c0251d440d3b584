package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

type ContentHandler struct {
	logger     *logrus.Logger
	contentSvc services.ContentMetricsServiceInterface
	validator  *validator.Validate
}

func NewContentHandler(logger *logrus.Logger, contentSvc services.ContentMetricsServiceInterface) *ContentHandler {
	return &ContentHandler{
		logger:     logger,
		contentSvc: contentSvc,
		validator:  validator.New(),
	}
}

func (h *ContentHandler) Upsert(c *gin.Context) {
	var req models.ContentUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind content upsert request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid request format",
				"details": err.Error(),
			},
		})
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.WithError(err).Error("Validation failed for content upsert")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	metric, err := h.contentSvc.Upsert(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).WithField("content_id", req.ContentID).Error("Failed to upsert content")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "UPSERT_FAILED",
				"message": "Failed to upsert content metadata",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    metric,
		"message": "Content metadata upserted successfully",
	})
}

func (h *ContentHandler) Metrics(c *gin.Context) {
	contentID, err := strconv.ParseInt(c.Param("contentId"), 10, 64)
	if err != nil || contentID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_CONTENT_ID",
				"message": "Content id must be a positive integer",
			},
		})
		return
	}

	metrics, err := h.contentSvc.GetMetrics(c.Request.Context(), contentID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "CONTENT_NOT_FOUND",
				"message": "No metadata stored for this content",
			},
		})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("content_id", contentID).Error("Failed to compute content metrics")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "METRICS_FAILED",
				"message": "Failed to compute content metrics",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": metrics})
}
