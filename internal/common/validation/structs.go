package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed struct tag
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// StructValidator validates tagged structs with go-playground/validator
type StructValidator struct {
	validator *validator.Validate
}

// NewStructValidator creates a validator that names fields after their yaml tag
// and knows the integration-specific tags.
func NewStructValidator() *StructValidator {
	v := validator.New()

	registerIntegrationValidators(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &StructValidator{validator: v}
}

// Struct returns every violation in s, or nil
func (sv *StructValidator) Struct(s interface{}) []FieldError {
	err := sv.validator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors []FieldError
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validationErrs {
			fieldErrors = append(fieldErrors, FieldError{
				Field:   trimNamespace(fe.Namespace()),
				Tag:     fe.Tag(),
				Param:   fe.Param(),
				Message: formatFieldError(fe),
			})
		}
	} else {
		fieldErrors = append(fieldErrors, FieldError{Field: "unknown", Tag: "error", Message: err.Error()})
	}

	return fieldErrors
}

// trimNamespace drops the root struct name so errors read like document paths
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatFieldError(fe validator.FieldError) string {
	field := trimNamespace(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("field '%s' must be greater than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, fe.Param())
	case "http_method":
		return fmt.Sprintf("field '%s' must be a valid HTTP method", field)
	case "field_path":
		return fmt.Sprintf("field '%s' must be a dotted path without empty segments", field)
	case "request_path":
		return fmt.Sprintf("field '%s' must start with '/'", field)
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, fe.Tag())
	}
}

// registerIntegrationValidators registers the tags used by integration documents
func registerIntegrationValidators(v *validator.Validate) {
	// Empty values pass; combine with required where needed
	v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		method := strings.ToUpper(fl.Field().String())
		if method == "" {
			return true
		}
		for _, valid := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"} {
			if method == valid {
				return true
			}
		}
		return false
	})

	v.RegisterValidation("field_path", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		if path == "" {
			return true
		}
		for _, segment := range strings.Split(path, ".") {
			if segment == "" {
				return false
			}
		}
		return true
	})

	v.RegisterValidation("request_path", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		return path == "" || strings.HasPrefix(path, "/")
	})
}
