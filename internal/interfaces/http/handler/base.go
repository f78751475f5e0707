package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

// failureResponses maps platform failure kinds onto API errors
var failureResponses = map[integration.FailureKind]struct {
	code    string
	message string
}{
	integration.FailureRateLimited:           {dto.ErrCodeRateLimited, "Platform rate limit reached, retry later"},
	integration.FailureDependencyUnavailable: {dto.ErrCodeUnavailable, "A platform the request depends on is unavailable"},
}

func writeOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.OK(data))
}

// writeError answers with the status registered for code
func writeError(c *gin.Context, code, message string) {
	c.JSON(dto.StatusOf(code), dto.Fail(code, message, logger.GinRequestID(c)))
}

// writeFailure answers for err: domain errors by their code, platform
// failures by kind, anything else as an internal error. err is attached to
// the gin context for the access log.
func writeFailure(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		writeError(c, dto.APICode(domainErr.Code), domainErr.Message)
		return
	}
	if resp, ok := failureResponses[integration.ClassifyFailure(err)]; ok {
		writeError(c, resp.code, resp.message)
		return
	}
	writeError(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
