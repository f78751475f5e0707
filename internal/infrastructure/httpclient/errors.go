package httpclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/erp/catalogsync/internal/domain/integration"
)

// maxErrorBody bounds the response body kept on a StatusError
const maxErrorBody = 512

// StatusError is a non-success platform response
type StatusError struct {
	Platform   integration.PlatformCode
	Method     string
	URL        string
	StatusCode int
	Body       string
	Attempts   int
	kind       error
}

func newStatusError(platform integration.PlatformCode, req Request, resp *Response) *StatusError {
	body := string(resp.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &StatusError{
		Platform:   platform,
		Method:     req.Method,
		URL:        req.URL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Attempts:   resp.Attempts,
		kind:       kindForStatus(resp.StatusCode),
	}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return integration.ErrRateLimited
	case http.StatusUnprocessableEntity:
		return integration.ErrValidationRejected
	case http.StatusNotFound:
		return integration.ErrResourceNotFound
	default:
		return integration.ErrUnclassified
	}
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("%s: %s %s: still rate limited after %d attempts",
			e.Platform.DisplayName(), e.Method, e.URL, e.Attempts)
	}
	return fmt.Sprintf("%s: %s %s: HTTP %d: %s",
		e.Platform.DisplayName(), e.Method, e.URL, e.StatusCode, e.Body)
}

// Unwrap returns the integration sentinel matching the status
func (e *StatusError) Unwrap() error {
	return e.kind
}

// StatusCode returns the HTTP status of err when it carries one
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
