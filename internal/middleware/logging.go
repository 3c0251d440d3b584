package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger emits one structured line per handled request.
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		fields := logrus.Fields{
			"status":      param.StatusCode,
			"method":      param.Method,
			"path":        param.Path,
			"duration_ms": param.Latency.Milliseconds(),
			"client_ip":   param.ClientIP,
			"bytes":       param.BodySize,
		}
		if param.ErrorMessage != "" {
			fields["error"] = param.ErrorMessage
		}
		logger.WithFields(fields).Info("Request handled")

		return ""
	})
}

// Recovery converts handler panics into enveloped 500 responses.
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"panic":  recovered,
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Recovered from handler panic")

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Internal server error",
			},
		})
	})
}
