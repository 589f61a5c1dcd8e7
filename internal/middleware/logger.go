package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bikerental/internal/pkg/response"
)

// ErrorLogger recovers from panics and logs 5xx responses and c.Errors.
func ErrorLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				requestFields(log, c, start).
					WithField("stack", string(debug.Stack())).
					Errorf("panic: %v", recovered)
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}

			if len(c.Errors) == 0 {
				if c.Writer.Status() >= http.StatusInternalServerError {
					requestFields(log, c, start).Error(fmt.Sprintf("status=%d", c.Writer.Status()))
				}
				return
			}

			for _, err := range c.Errors {
				entry := requestFields(log, c, start).WithField("type", fmt.Sprintf("%v", err.Type))
				if err.Meta != nil {
					entry = entry.WithField("meta", err.Meta)
				}
				entry.Error(err.Error())
			}
		}()

		c.Next()
	}
}

// RequestLogger writes one line per request.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"request_id": GetRequestID(c),
		})
		if c.Writer.Status() >= http.StatusBadRequest {
			entry.Warn("request")
			return
		}
		entry.Info("request")
	}
}

func requestFields(log *logrus.Logger, c *gin.Context, start time.Time) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"client_ip":  c.ClientIP(),
		"user_id":    c.GetInt64(ctxUserID),
		"role":       c.GetString(ctxRole),
		"request_id": GetRequestID(c),
		"latency":    time.Since(start).String(),
	})
}
