package httputil

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// NumeroPattern is the protocol number format NNNN/YYYY.
var NumeroPattern = regexp.MustCompile(`^\d{4}/\d{4}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("numero_protocolo", func(fl validator.FieldLevel) bool {
		return NumeroPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("schema_name", func(fl validator.FieldLevel) bool {
		return tenant.ValidateSchemaName(fl.Field().String()) == nil
	})
	v.RegisterValidation("client_code", func(fl validator.FieldLevel) bool {
		return tenant.ValidateClientCode(fl.Field().String()) == nil
	})

	return v
}

// Validate validates a struct using go-playground/validator
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.BadRequest(err.Error())
		}
		details := make(map[string]string)

		for _, e := range validationErrors {
			details[e.Field()] = formatValidationError(e)
		}

		return errors.Validation(details)
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + e.Param() + " characters"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "oneof":
		return "must be one of: " + e.Param()
	case "numero_protocolo":
		return "must have the format NNNN/YYYY"
	case "schema_name":
		return "must start with a lowercase letter, contain only lowercase letters, digits and underscores, and not be a reserved schema"
	case "client_code":
		return "must contain only lowercase letters, digits, dashes and underscores"
	default:
		return "invalid value"
	}
}
