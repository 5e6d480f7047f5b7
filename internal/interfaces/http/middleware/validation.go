package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// SetupValidator makes gin's validator report fields by their json (or,
// failing that, form) tag name
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
}

// HandleValidationError answers 400 with one detail per rejected field
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

// FormatValidationErrors builds the validation error envelope for err
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fieldPath(fe), Message: validationMessage(fe)})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// IsValidationError reports whether err carries validator field errors
func IsValidationError(err error) bool {
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &fieldErrs)
}

// fieldPath is the namespace without the root struct, e.g. "options.padding"
func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

var tagMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
	"numeric":  "Must be numeric",
	"hexcolor": "Must be a hex color such as #ffffff",
	"oneof":    "Must be one of: %s",
	"gte":      "Must be greater than or equal to %s",
	"lte":      "Must be less than or equal to %s",
	"gt":       "Must be greater than %s",
	"lt":       "Must be less than %s",
	"datetime": "Must be a date in the format %s",
}

func validationMessage(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "min", "max":
		bound := map[string]string{"min": "at least", "max": "at most"}[tag]
		msg := "Must be " + bound + " " + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	default:
		msg, ok := tagMessages[tag]
		if !ok {
			return "Invalid value"
		}
		return strings.Replace(msg, "%s", fe.Param(), 1)
	}
}
