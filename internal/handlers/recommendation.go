package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
	"github.com/reelist/engine/pkg/models"
)

type RecommendationHandler struct {
	logger     *logrus.Logger
	aggregator services.AggregatorInterface
	validator  *validator.Validate
}

func NewRecommendationHandler(logger *logrus.Logger, aggregator services.AggregatorInterface) *RecommendationHandler {
	return &RecommendationHandler{
		logger:     logger,
		aggregator: aggregator,
		validator:  validator.New(),
	}
}

// Recommend aggregates candidates from every configured source. Individual
// source failures surface only in the response metadata; the request itself
// fails only when the merge logic does.
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req models.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind recommendation request")
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
		h.logger.WithError(err).Error("Validation failed for recommendation request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	response, err := h.aggregator.GetRecommendations(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", req.UserID).Error("Recommendation aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "AGGREGATION_FAILED",
				"message": "Failed to aggregate recommendations",
			},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}
