package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

// BodyLimit caps request bodies at limit bytes. A declared Content-Length
// over the limit is refused with 413 before any handler runs; an
// undeclared body fails when read past the limit.
func BodyLimit(limit int64) gin.HandlerFunc {
	tooLarge := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			dto.Fail(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", requestID(c)))
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			tooLarge(c)
			return
		}
		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
