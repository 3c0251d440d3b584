package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
)

type HealthHandler struct {
	logger    *logrus.Logger
	healthSvc *services.HealthService
}

func NewHealthHandler(logger *logrus.Logger, healthSvc *services.HealthService) *HealthHandler {
	return &HealthHandler{logger: logger, healthSvc: healthSvc}
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := h.healthSvc.Check(c.Request.Context())

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
