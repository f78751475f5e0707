package dto

import "net/http"

// API error codes
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeUnavailable = "ERR_UNAVAILABLE" // a platform behind the request is unreachable

	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeEmptyBatch      = "ERR_EMPTY_BATCH"
	ErrCodeBatchTooLarge   = "ERR_BATCH_TOO_LARGE"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"

	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeInvalidState = "ERR_INVALID_STATE"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

type codeSpec struct {
	status int
	// domain lists the shared.DomainError codes answered with this code
	domain []string
}

var codes = map[string]codeSpec{
	ErrCodeInternal:        {status: http.StatusInternalServerError},
	ErrCodeUnavailable:     {status: http.StatusBadGateway},
	ErrCodeValidation:      {status: http.StatusBadRequest},
	ErrCodeBadRequest:      {status: http.StatusBadRequest},
	ErrCodeInvalidInput:    {status: http.StatusBadRequest, domain: []string{"INVALID_INPUT", "INVALID_SOURCE"}},
	ErrCodeInvalidJSON:     {status: http.StatusBadRequest},
	ErrCodeEmptyBatch:      {status: http.StatusBadRequest, domain: []string{"EMPTY_BATCH"}},
	ErrCodeBatchTooLarge:   {status: http.StatusRequestEntityTooLarge, domain: []string{"BATCH_TOO_LARGE"}},
	ErrCodeRequestTooLarge: {status: http.StatusRequestEntityTooLarge},
	ErrCodeNotFound:        {status: http.StatusNotFound, domain: []string{"NOT_FOUND"}},
	ErrCodeInvalidState:    {status: http.StatusUnprocessableEntity, domain: []string{"INVALID_STATE"}},
	ErrCodeRateLimited:     {status: http.StatusTooManyRequests},
}

var fromDomain = func() map[string]string {
	m := make(map[string]string)
	for code, entry := range codes {
		for _, d := range entry.domain {
			m[d] = code
		}
	}
	return m
}()

// StatusOf returns the HTTP status answered with code, 500 when unknown
func StatusOf(code string) int {
	if entry, ok := codes[code]; ok {
		return entry.status
	}
	return http.StatusInternalServerError
}

// APICode translates a domain error code. Unknown codes pass through.
func APICode(domainCode string) string {
	if code, ok := fromDomain[domainCode]; ok {
		return code
	}
	return domainCode
}
