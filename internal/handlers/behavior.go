package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
	"github.com/reelist/engine/pkg/models"
)

type BehaviorHandler struct {
	logger      *logrus.Logger
	behaviorSvc services.BehaviorServiceInterface
	similarity  services.SimilarityEngineInterface
	validator   *validator.Validate
}

func NewBehaviorHandler(logger *logrus.Logger, behaviorSvc services.BehaviorServiceInterface, similarity services.SimilarityEngineInterface) *BehaviorHandler {
	return &BehaviorHandler{
		logger:      logger,
		behaviorSvc: behaviorSvc,
		similarity:  similarity,
		validator:   validator.New(),
	}
}

func (h *BehaviorHandler) Record(c *gin.Context) {
	var req models.BehaviorEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Failed to bind behavior event request")
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
		h.logger.WithError(err).Error("Validation failed for behavior event")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": "Request validation failed",
				"details": err.Error(),
			},
		})
		return
	}

	if req.Action == models.ActionRated && (req.Rating == nil || *req.Rating < 0 || *req.Rating > 10) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_RATING",
				"message": "Rated events must carry a rating between 0 and 10",
			},
		})
		return
	}

	event, err := h.behaviorSvc.Record(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAction) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_ACTION",
					"message": "Unknown action kind",
					"details": err.Error(),
				},
			})
			return
		}
		h.logger.WithError(err).Error("Failed to record behavior event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "RECORD_FAILED",
				"message": "Failed to record behavior event",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data":    event,
		"message": "Behavior event recorded successfully",
	})
}

// Analytics returns the user's derived viewing statistics. A storage
// failure degrades to an empty analytics object rather than an error
// response.
func (h *BehaviorHandler) Analytics(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "User id must be a valid UUID",
			},
		})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	analytics, err := h.behaviorSvc.GetUserBehaviorAnalytics(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to compute behavior analytics")
		analytics = &models.UserBehaviorAnalytics{
			ActionCounts: make(map[models.ActionKind]int),
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": analytics})
}

func (h *BehaviorHandler) SimilarUsers(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "User id must be a valid UUID",
			},
		})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	similar, err := h.similarity.FindSimilar(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to find similar users")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "SIMILARITY_FAILED",
				"message": "Failed to find similar users",
			},
		})
		return
	}
	if similar == nil {
		similar = []models.SimilarUser{}
	}

	c.JSON(http.StatusOK, gin.H{"data": similar})
}
