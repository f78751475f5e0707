package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// ginRequestIDKey is the gin context key holding the request ID
const ginRequestIDKey = "request_id"

// maxRequestIDLength bounds an inbound X-Request-ID
const maxRequestIDLength = 128

// GinRequestID returns the ID assigned by AccessLog, or the inbound header
// when AccessLog did not run
func GinRequestID(c *gin.Context) string {
	if id := c.GetString(ginRequestIDKey); id != "" {
		return id
	}
	return clampRequestID(c.GetHeader(RequestIDHeader))
}

func clampRequestID(id string) string {
	if len(id) > maxRequestIDLength {
		return id[:maxRequestIDLength]
	}
	return id
}

// AccessLog tags each request with an ID (the inbound X-Request-ID when
// present), puts a request logger into the request context and writes one
// entry per request. Successful requests to quietPaths, such as health
// checks, are logged at debug.
func AccessLog(log *zap.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()

		id := clampRequestID(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ginRequestIDKey, id)
		c.Header(RequestIDHeader, id)

		ctx, reqLog := WithRequestID(c.Request.Context(), log, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		case quiet[c.Request.URL.Path]:
			level = zapcore.DebugLevel
		}
		reqLog.Log(level, "HTTP request", fields...)
	}
}

// Recovery turns a handler panic into a 500 and logs it with its stack
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			reqLog := log
			if l, ok := c.Request.Context().Value(loggerKey).(*zap.Logger); ok {
				reqLog = l
			}
			reqLog.Error("Panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}
