package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

// fieldMessages renders a failed validation tag. Slices get their own
// wording for length bounds.
var fieldMessages = map[string]func(e validator.FieldError) string{
	"required": func(validator.FieldError) string { return "This field is required" },
	"min":      lowerBound,
	"gte":      lowerBound,
	"max":      upperBound,
	"lte":      upperBound,
	"oneof":    func(e validator.FieldError) string { return "Must be one of: " + e.Param() },
	"url":      func(validator.FieldError) string { return "Invalid URL format" },
	"http_url": func(validator.FieldError) string { return "Invalid URL format" },
}

func lowerBound(e validator.FieldError) string {
	if isCollection(e) {
		return "Must contain at least " + e.Param() + " item(s)"
	}
	return "Must be at least " + e.Param()
}

func upperBound(e validator.FieldError) string {
	if isCollection(e) {
		return "Must contain at most " + e.Param() + " item(s)"
	}
	return "Must be at most " + e.Param()
}

func isCollection(e validator.FieldError) bool {
	switch e.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// SetupValidator makes gin's validator report fields by their JSON name,
// falling back to the query/form name
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(wireName)
}

func wireName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// ValidationResponse turns a binding error into an ERR_VALIDATION body.
// Errors that are not field validation failures yield no details.
func ValidationResponse(err error, requestID string) dto.Response {
	var fieldErrs validator.ValidationErrors
	errors.As(err, &fieldErrs)

	details := make([]dto.ValidationDetail, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, dto.ValidationDetail{
			Field:   fe.Field(),
			Message: describe(fe),
		})
	}
	return dto.Invalid("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 with the field failures of err
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ValidationResponse(err, requestID(c)))
}

func describe(e validator.FieldError) string {
	if render, ok := fieldMessages[e.Tag()]; ok {
		return render(e)
	}
	return "Invalid value"
}
