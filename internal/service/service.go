// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnauthenticated is returned when an operation needs a logged-in user.
var ErrUnauthenticated = errors.New("authentication required")

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ValidationError reports a rejected input. Field is the JSON name of the
// offending field when one can be singled out.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of s and converts the first failure
// into a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	return fieldError(verrs[0])
}

var layoutHints = map[string]string{
	dateLayout: "YYYY-MM-DD",
	timeLayout: "HH:MM",
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return invalid(field, "field '%s' is required", field)
	case "email":
		return invalid(field, "field '%s' must be a valid email address", field)
	case "min", "gte":
		return invalid(field, "field '%s' must be at least %s%s", field, fe.Param(), unit)
	case "max", "lte":
		return invalid(field, "field '%s' must be at most %s%s", field, fe.Param(), unit)
	case "oneof":
		return invalid(field, "field '%s' must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return invalid(field, "field '%s' must match the format %s", field, layoutHints[fe.Param()])
	default:
		return invalid(field, "field '%s' is invalid", field)
	}
}
