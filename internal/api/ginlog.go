package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ginLogger logs each debug API request through logrus with structured
// fields, deriving or generating an X-Request-Id and echoing it back.
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.Request.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		latency := time.Since(start).Truncate(time.Millisecond)
		status := c.Writer.Status()
		fields := log.Fields{
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"method":     c.Request.Method,
			"path":       path,
			"request_id": requestID,
		}
		msg := fmt.Sprintf("%3d | %13v | %-7s %s", status, latency, c.Request.Method, path)
		if status >= 500 {
			log.WithFields(fields).Error(msg)
		} else {
			log.WithFields(fields).Debug(msg)
		}
	}
}

// ginRecovery converts panics in handlers into 500 responses.
func ginRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", fmt.Sprint(r)).Error("debug api handler panicked")
				c.AbortWithStatus(500)
			}
		}()
		c.Next()
	}
}
