package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"article-cms/logger"
)

// RequestLogger logs one line per request and any errors handlers attached.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", append(kv, "errors", c.Errors.String())...)
			return
		}
		log.Debug("request", kv...)
	}
}
