package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shreyanshxt/FinSight/logger"
)

// requestLogger logs every request when logAll is set, otherwise only
// responses with status >= 400.
func requestLogger(logAll bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		if !logAll && status < 400 {
			return
		}
		latency := time.Since(start)
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			logger.Warn("[GIN] %d | %v | %s | %-7s %s | Error: %s", status, latency, c.ClientIP(), c.Request.Method, path, errs)
			return
		}
		logger.Info("[GIN] %d | %v | %s | %-7s %s", status, latency, c.ClientIP(), c.Request.Method, path)
	}
}

// allowAllOrigins lets the browser dashboard call the API from any origin.
func allowAllOrigins() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
