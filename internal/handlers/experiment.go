package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/services"
)

type ExperimentHandler struct {
	logger      *logrus.Logger
	analyzerSvc services.ExperimentAnalyzerInterface
}

func NewExperimentHandler(logger *logrus.Logger, analyzerSvc services.ExperimentAnalyzerInterface) *ExperimentHandler {
	return &ExperimentHandler{logger: logger, analyzerSvc: analyzerSvc}
}

// Results reports raw per-variant conversion counts for one experiment.
// The time range defaults to the last 30 days.
func (h *ExperimentHandler) Results(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "MISSING_EXPERIMENT",
				"message": "Experiment name is required",
			},
		})
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_TIME_RANGE",
					"message": "from must be an RFC3339 timestamp",
				},
			})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_TIME_RANGE",
					"message": "to must be an RFC3339 timestamp",
				},
			})
			return
		}
		to = parsed
	}

	results, err := h.analyzerSvc.GetExperimentResults(c.Request.Context(), name, from, to)
	if err != nil {
		h.logger.WithError(err).WithField("experiment", name).Error("Failed to compute experiment results")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "ANALYSIS_FAILED",
				"message": "Failed to compute experiment results",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"experiment": name,
			"from":       from,
			"to":         to,
			"variants":   results,
		},
	})
}
