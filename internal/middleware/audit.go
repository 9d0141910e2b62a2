package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/models"
	"github.com/noah-isme/procedure-staffing-api/pkg/middleware/requestid"
)

// Audit writes one structured audit event per successful mutation. Failed
// requests are already covered by the access log.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("resource_id", c.Param("id")),
			zap.Int("status", status),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.Value(c)),
			zap.Duration("latency", time.Since(start)),
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
			}
		}
		logger.Info("mutation", fields...)
	}
}
