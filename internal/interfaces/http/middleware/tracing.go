package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// Tracing opens a server span per request, named "METHOD route". An empty
// service disables tracing.
func Tracing(service string) gin.HandlerFunc {
	if service == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(service)
}

// spanStatus gives the status description of failed responses
func spanStatus(status int) (string, bool) {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error", true
	case status == http.StatusTooManyRequests:
		return "Too Many Requests", true
	case status == http.StatusNotFound:
		return "Not Found", true
	case status >= http.StatusBadRequest:
		return "Client Error", true
	}
	return "", false
}

// MarkSpan tags the server span with the request ID and flags 4xx and 5xx
// responses as errors. It must run after Tracing and logger.AccessLog.
func MarkSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := requestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		status := c.Writer.Status()
		if desc, failed := spanStatus(status); failed {
			span.SetStatus(codes.Error, desc)
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func requestID(c *gin.Context) string {
	return logger.GinRequestID(c)
}
