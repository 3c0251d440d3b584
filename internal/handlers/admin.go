package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
)

type AdminHandler struct {
	logger      *logrus.Logger
	behaviorSvc services.BehaviorServiceInterface
}

func NewAdminHandler(logger *logrus.Logger, behaviorSvc services.BehaviorServiceInterface) *AdminHandler {
	return &AdminHandler{logger: logger, behaviorSvc: behaviorSvc}
}

// Cleanup deletes behavior events past the retention window. An external
// scheduler is expected to call this periodically.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	deleted, err := h.behaviorSvc.Cleanup(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Retention cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "CLEANUP_FAILED",
				"message": "Failed to run retention cleanup",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    gin.H{"deleted": deleted},
		"message": "Retention cleanup complete",
	})
}
