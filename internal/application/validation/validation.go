// Package validation checks request structs with go-playground/validator and
// turns failures into ValidationError domain errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Use JSON tag names for field names in errors
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		// Let numeric tags (gt, gte, lte...) apply to money fields
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// Detail describes one rejected field
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct validates a request and returns a ValidationError listing every bad field
func Struct(req any) error {
	err := engine().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return shared.NewValidationError("INVALID_REQUEST", "request validation failed: %v", err)
	}

	details := Details(fieldErrors)
	parts := make([]string, len(details))
	for i, d := range details {
		parts[i] = d.Field + ": " + d.Message
	}
	return shared.NewValidationError("INVALID_REQUEST", "request validation failed: %s", strings.Join(parts, "; "))
}

// Details converts validator errors to field details
func Details(errs validator.ValidationErrors) []Detail {
	details := make([]Detail, 0, len(errs))
	for _, e := range errs {
		details = append(details, Detail{Field: e.Namespace(), Message: message(e)})
	}
	return details
}

// message returns a human-readable validation message
func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "This field is required"
	case "excluded_with":
		return "Must not be set together with " + e.Param()
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "gtefield":
		return "Must not be before " + e.Param()
	default:
		return "Invalid value"
	}
}
